package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udsforge/udsforge/internal/uerr"
	"github.com/udsforge/udsforge/pkg/isotp"
)

// fakeTransport is a minimal, single-frame-only Transport double: it
// records the last send and lets the test queue a canned response.
type fakeTransport struct {
	sent     []byte
	queued   []byte
	inFlight bool
}

func (f *fakeTransport) Send(payload []byte, functional bool) error {
	f.sent = payload
	return nil
}
func (f *fakeTransport) Poll() isotp.Status { return 0 }
func (f *fakeTransport) TakeReceived() ([]byte, isotp.Channel, bool) {
	if f.queued == nil {
		return nil, 0, false
	}
	p := f.queued
	f.queued = nil
	return p, isotp.ChannelPhysical, true
}
func (f *fakeTransport) TxInProgress() bool { return false }

func TestSessionControlTransaction(t *testing.T) {
	tp := &fakeTransport{}
	c := New(tp, nil)

	ok, err := c.Transaction(func() error {
		if err := c.SendDiagnosticSessionControl(3); err != nil {
			return err
		}
		tp.queued = []byte{0x50, 0x03, 0x00, 0x32, 0x07, 0xD0}
		return nil
	}, "session", 1000)

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, uerr.NRCNone, c.LastNRC())
}

func TestNegativeResponseSurfacesNRC(t *testing.T) {
	tp := &fakeTransport{}
	c := New(tp, nil)

	ok, err := c.Transaction(func() error {
		if err := c.SendReadDataByIdentifier(0x0001); err != nil {
			return err
		}
		tp.queued = []byte{0x7F, 0x22, 0x31}
		return nil
	}, "rdbi", 1000)

	require.Error(t, err)
	assert.False(t, ok)
	assert.Equal(t, uerr.NRCRequestOutOfRange, c.LastNRC())
}

func TestResponseRegistryDispatch(t *testing.T) {
	tp := &fakeTransport{}
	c := New(tp, nil)

	var gotPayload []byte
	c.Registry().Register(0x62, func(payload []byte) { gotPayload = payload })

	_, err := c.Transaction(func() error {
		if err := c.SendReadDataByIdentifier(0x0001); err != nil {
			return err
		}
		tp.queued = []byte{0x62, 0x00, 0x01, 0xAA}
		return nil
	}, "rdbi", 1000)
	require.NoError(t, err)

	assert.Equal(t, []byte{0x62, 0x00, 0x01, 0xAA}, gotPayload)
}

func TestSendWhileNotIdleFails(t *testing.T) {
	tp := &fakeTransport{}
	c := New(tp, nil)
	c.state = StateAwaitResponse

	err := c.SendTesterPresent()
	assert.Error(t, err)
}

func TestTesterPresentSuppressSetsBit(t *testing.T) {
	tp := &fakeTransport{}
	c := New(tp, nil)
	c.SetOptions(OptSuppressPosResp)

	require.NoError(t, c.SendTesterPresent())
	assert.Equal(t, byte(0x80), tp.sent[1])
}

func TestWaitTransactionTimesOut(t *testing.T) {
	tp := &fakeTransport{}
	c := New(tp, nil)

	ok, err := c.Transaction(func() error {
		return c.SendTesterPresent()
	}, "tp", 5)

	assert.False(t, ok)
	assert.Error(t, err)
	assert.Equal(t, StateIdle, c.State())
}
