package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udsforge/udsforge/internal/uerr"
	"github.com/udsforge/udsforge/pkg/uds"
)

type fakeTransport struct{ sent [][]byte }

func (f *fakeTransport) Send(payload []byte, functional bool) error {
	f.sent = append(f.sent, payload)
	return nil
}
func (f *fakeTransport) TxInProgress() bool { return false }

func TestDispatchHandledTerminatesChain(t *testing.T) {
	s := New(&fakeTransport{}, nil)
	s.Register(EventTesterPresent, PriorityNormal, "testerpresent", func(ctx *RequestContext) uerr.Outcome {
		return uerr.Handled([]byte{uds.SIDTesterPresent.ResponseSID(), 0x00})
	})

	resp := s.Handle([]byte{uint8(uds.SIDTesterPresent), 0x00}, false, "tester-1")
	require.NotNil(t, resp)
	assert.Equal(t, []byte{0x7E, 0x00}, resp)
}

func TestDispatchFallsThroughNotMine(t *testing.T) {
	s := New(&fakeTransport{}, nil)
	var secondCalled bool
	s.Register(EventReadDataByIdentifier, PriorityHigh, "extended", func(ctx *RequestContext) uerr.Outcome {
		return uerr.NotMine()
	})
	s.Register(EventReadDataByIdentifier, PriorityNormal, "general", func(ctx *RequestContext) uerr.Outcome {
		secondCalled = true
		return uerr.Handled([]byte{0x62, 0x00, 0x01, 0xAA})
	})

	resp := s.Handle([]byte{uint8(uds.SIDReadDataByIdentifier), 0x00, 0x01}, false, "tester-1")
	assert.True(t, secondCalled)
	assert.Equal(t, []byte{0x62, 0x00, 0x01, 0xAA}, resp)
}

func TestDispatchEmptyChainYieldsServiceNotSupported(t *testing.T) {
	s := New(&fakeTransport{}, nil)
	resp := s.Handle([]byte{uint8(uds.SIDReadDataByIdentifier), 0x00, 0x01}, false, "tester-1")
	require.Len(t, resp, 3)
	assert.Equal(t, byte(0x7F), resp[0])
	assert.Equal(t, uint8(uerr.NRCServiceNotSupported), resp[2])
}

func TestDispatchUnknownSIDYieldsServiceNotSupported(t *testing.T) {
	s := New(&fakeTransport{}, nil)
	resp := s.Handle([]byte{0x99}, false, "tester-1")
	require.Len(t, resp, 3)
	assert.Equal(t, uint8(uerr.NRCServiceNotSupported), resp[2])
}

func TestDispatchErrorTerminatesChain(t *testing.T) {
	s := New(&fakeTransport{}, nil)
	s.Register(EventECUReset, PriorityNormal, "ecureset", func(ctx *RequestContext) uerr.Outcome {
		return uerr.Err(uerr.NRCConditionsNotCorrect)
	})
	resp := s.Handle([]byte{uint8(uds.SIDECUReset), 0x01}, false, "tester-1")
	require.Len(t, resp, 3)
	assert.Equal(t, uint8(uerr.NRCConditionsNotCorrect), resp[2])
}

func TestObserverOnlyChainStaysSilent(t *testing.T) {
	s := New(&fakeTransport{}, nil)
	var observed bool
	s.Register(EventTesterPresent, PriorityLowest, "metrics", func(ctx *RequestContext) uerr.Outcome {
		observed = true
		return uerr.NotMine().Observe()
	})
	resp := s.Handle([]byte{uint8(uds.SIDTesterPresent), 0x80}, false, "tester-1")
	assert.True(t, observed)
	assert.Nil(t, resp)
}

func TestSecurityAccessSubFunctionParitySelectsEvent(t *testing.T) {
	s := New(&fakeTransport{}, nil)
	var gotSeed, gotKey bool
	s.Register(EventSecurityRequestSeed, PriorityNormal, "seed", func(ctx *RequestContext) uerr.Outcome {
		gotSeed = true
		return uerr.Handled([]byte{0x67, 0x01, 0xAA, 0xBB})
	})
	s.Register(EventSecurityValidateKey, PriorityNormal, "key", func(ctx *RequestContext) uerr.Outcome {
		gotKey = true
		return uerr.Handled([]byte{0x67, 0x02})
	})

	s.Handle([]byte{uint8(uds.SIDSecurityAccess), 0x01}, false, "tester-1")
	assert.True(t, gotSeed)

	s.Handle([]byte{uint8(uds.SIDSecurityAccess), 0x02, 0x01, 0x02}, false, "tester-1")
	assert.True(t, gotKey)
}

func TestPriorityOrderingRunsHighestFirst(t *testing.T) {
	s := New(&fakeTransport{}, nil)
	var order []string
	s.Register(EventTesterPresent, PriorityLow, "low", func(ctx *RequestContext) uerr.Outcome {
		order = append(order, "low")
		return uerr.NotMine()
	})
	s.Register(EventTesterPresent, PriorityHighest, "highest", func(ctx *RequestContext) uerr.Outcome {
		order = append(order, "highest")
		return uerr.NotMine()
	})
	s.Register(EventTesterPresent, PriorityNormal, "normal", func(ctx *RequestContext) uerr.Outcome {
		order = append(order, "normal")
		return uerr.NotMine().Observe()
	})

	s.Handle([]byte{uint8(uds.SIDTesterPresent), 0x00}, false, "tester-1")
	assert.Equal(t, []string{"highest", "normal", "low"}, order)
}
