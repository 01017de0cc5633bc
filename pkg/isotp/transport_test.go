package isotp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	frames []Frame
}

func (f *fakeSink) SendFrame(fr Frame) error {
	f.frames = append(f.frames, fr)
	return nil
}

func testAddrs() AddressSet {
	return AddressSet{Interface: "can0", PhysSource: 0x7E0, PhysTarget: 0x7E8, FuncSource: 0x7DF}
}

func TestSingleFrameRoundTrip(t *testing.T) {
	sink := &fakeSink{}
	b := NewBinding(testAddrs(), DefaultFlowControlParams(), sink, true)

	payload := []byte{0x10, 0x03}
	require.NoError(t, b.Send(payload, false))
	require.Len(t, sink.frames, 1)
	assert.Equal(t, uint32(0x7E8), sink.frames[0].ID)
	assert.Equal(t, byte(0x02), sink.frames[0].Data[0]) // SF, len 2

	require.NoError(t, b.Deliver(0x7E0, sink.frames[0].Data))
	got, ch, ok := b.TakeReceived()
	require.True(t, ok)
	assert.Equal(t, ChannelPhysical, ch)
	assert.Equal(t, sink.frames[0].Data[1:3], got)
}

func TestSegmentedTransferAndConsecutiveFrames(t *testing.T) {
	sink := &fakeSink{}
	b := NewBinding(testAddrs(), DefaultFlowControlParams(), sink, true)

	payload := make([]byte, 20)
	for i := range payload {
		payload[i] = byte(i)
	}
	require.NoError(t, b.Send(payload, false))
	require.Len(t, sink.frames, 1)
	assert.Equal(t, byte(0x10), sink.frames[0].Data[0]&0xF0) // FF

	// Simulate flow control (continue-to-send, BS=0, STmin=0).
	require.NoError(t, b.Deliver(0x7E0, []byte{0x30, 0x00, 0x00}))

	for b.TxInProgress() {
		b.Poll()
	}

	// First Frame + ceil((20-6)/7) = 1 + 2 = 3 frames total.
	assert.Len(t, sink.frames, 3)
	assert.Equal(t, byte(0x21), sink.frames[1].Data[0]) // CF seq 1
	assert.Equal(t, byte(0x22), sink.frames[2].Data[0]) // CF seq 2
}

func TestFunctionalFrameDroppedDuringPhysicalReassembly(t *testing.T) {
	sink := &fakeSink{}
	b := NewBinding(testAddrs(), DefaultFlowControlParams(), sink, true)

	ff, err := encodeFirstFrame(20, []byte{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)
	require.NoError(t, b.Deliver(0x7E0, ff))
	assert.True(t, b.RxInProgress())

	// A functional Single Frame arrives mid-reassembly: must be dropped.
	sf, _ := encodeSingleFrame([]byte{0x3E, 0x00})
	require.NoError(t, b.Deliver(0x7DF, sf))
	_, _, ok := b.TakeReceived()
	assert.False(t, ok, "functional frame must be dropped while physical reassembly is in progress")
}

func TestReassemblyTimeoutReportsTportErr(t *testing.T) {
	sink := &fakeSink{}
	b := NewBinding(testAddrs(), DefaultFlowControlParams(), sink, true)
	b.rxTimeout = 0 // force immediate timeout

	ff, _ := encodeFirstFrame(20, []byte{1, 2, 3, 4, 5, 6})
	require.NoError(t, b.Deliver(0x7E0, ff))

	status := b.Poll()
	assert.True(t, status.Has(StatusTportErr))
	assert.False(t, b.RxInProgress())
}
