package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udsforge/udsforge/pkg/uds"
	"github.com/udsforge/udsforge/pkg/uds/server"
)

func TestIOControlShortTermAdjustmentSetsOverride(t *testing.T) {
	reg := NewIOControlRegistry()
	reg.RegisterNode(0x0001, func(action uds.IOControlAction, data []byte) ([]byte, error) {
		return []byte{0xAA}, nil
	})
	s := server.New(&fakeTransport{}, nil)
	RegisterIOControl(s, reg)

	resp := s.Handle([]byte{uint8(uds.SIDIOControlByIdentifier), 0x00, 0x01, uint8(uds.IOShortTermAdjustment), 0xFF}, false, "tester-1")
	assert.Equal(t, []byte{0x6F, 0x00, 0x01, uint8(uds.IOShortTermAdjustment), 0xAA}, resp)
	assert.True(t, reg.nodes[0x0001].overridden)
}

func TestIOControlReturnControlClearsOverride(t *testing.T) {
	reg := NewIOControlRegistry()
	reg.RegisterNode(0x0001, func(action uds.IOControlAction, data []byte) ([]byte, error) {
		return nil, nil
	})
	reg.nodes[0x0001].overridden = true
	s := server.New(&fakeTransport{}, nil)
	RegisterIOControl(s, reg)

	s.Handle([]byte{uint8(uds.SIDIOControlByIdentifier), 0x00, 0x01, uint8(uds.IOReturnControlToECU)}, false, "tester-1")
	assert.False(t, reg.nodes[0x0001].overridden)
}

func TestIOControlUnknownDIDYieldsRequestOutOfRange(t *testing.T) {
	reg := NewIOControlRegistry()
	s := server.New(&fakeTransport{}, nil)
	RegisterIOControl(s, reg)

	resp := s.Handle([]byte{uint8(uds.SIDIOControlByIdentifier), 0x00, 0x01, uint8(uds.IOReturnControlToECU)}, false, "tester-1")
	require.Len(t, resp, 3)
	assert.Equal(t, uint8(0x31), resp[2])
}

func TestIOControlSessionTimeoutClearsAllOverrides(t *testing.T) {
	reg := NewIOControlRegistry()
	reg.RegisterNode(0x0001, func(action uds.IOControlAction, data []byte) ([]byte, error) { return nil, nil })
	reg.nodes[0x0001].overridden = true

	s := server.New(&fakeTransport{}, nil)
	RegisterIOControlSessionTimeout(s, reg)

	s.Session = uds.SessionExtended
	s.PollSessionTimeout()
	assert.False(t, reg.nodes[0x0001].overridden)
}
