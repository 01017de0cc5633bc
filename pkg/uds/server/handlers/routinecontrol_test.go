package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udsforge/udsforge/internal/security"
	"github.com/udsforge/udsforge/pkg/uds"
	"github.com/udsforge/udsforge/pkg/uds/server"
)

func TestRoutineControlRunsCommandAndReturnsOutput(t *testing.T) {
	s := server.New(&fakeTransport{}, nil)
	RegisterRoutineControl(s, ConsoleRoutineConfig{RoutineID: 0xF000}, nil)

	payload := append([]byte{uint8(uds.SIDRoutineControl), 0x01, 0xF0, 0x00}, []byte("echo hi")...)
	resp := s.Handle(payload, false, "tester-1")
	require.NotNil(t, resp)
	assert.Equal(t, byte(0x71), resp[0])
	assert.Equal(t, byte(0x01), resp[1])
	assert.Contains(t, string(resp[4:]), "hi")
}

func TestRoutineControlWrongRoutineIDYieldsServiceNotSupported(t *testing.T) {
	s := server.New(&fakeTransport{}, nil)
	RegisterRoutineControl(s, ConsoleRoutineConfig{RoutineID: 0xF000}, nil)

	payload := append([]byte{uint8(uds.SIDRoutineControl), 0x01, 0x12, 0x34}, []byte("echo hi")...)
	resp := s.Handle(payload, false, "tester-1")
	require.Len(t, resp, 3)
	assert.Equal(t, uint8(0x11), resp[2])
}

func TestRoutineControlRequiresMinSession(t *testing.T) {
	s := server.New(&fakeTransport{}, nil)
	RegisterRoutineControl(s, ConsoleRoutineConfig{RoutineID: 0xF000, MinSession: uds.SessionExtended}, nil)

	payload := append([]byte{uint8(uds.SIDRoutineControl), 0x01, 0xF0, 0x00}, []byte("echo hi")...)
	resp := s.Handle(payload, false, "tester-1")
	require.Len(t, resp, 3)
	assert.Equal(t, uint8(0x22), resp[2])
}

func TestRoutineControlRequiresSecurityUnlock(t *testing.T) {
	sec := security.NewInstance(security.XORAlgorithm{Secret: []byte{0xAA}}, 2)
	s := server.New(&fakeTransport{}, nil)
	RegisterRoutineControl(s, ConsoleRoutineConfig{RoutineID: 0xF000, MinSecurityLevel: 1}, sec)

	payload := append([]byte{uint8(uds.SIDRoutineControl), 0x01, 0xF0, 0x00}, []byte("echo hi")...)
	resp := s.Handle(payload, false, "tester-1")
	require.Len(t, resp, 3)
	assert.Equal(t, uint8(0x33), resp[2])
}
