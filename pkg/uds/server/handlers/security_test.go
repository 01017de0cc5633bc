package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udsforge/udsforge/internal/security"
	"github.com/udsforge/udsforge/pkg/uds"
	"github.com/udsforge/udsforge/pkg/uds/server"
)

func newTestSecurity() *security.Instance {
	return security.NewInstance(security.XORAlgorithm{Secret: []byte{0xAA}}, 2)
}

func TestSecurityAccessRequestSeedThenValidateKeyUnlocks(t *testing.T) {
	sec := newTestSecurity()
	s := server.New(&fakeTransport{}, nil)
	RegisterSecurityAccess(s, sec, 0x01, nil, nil)

	seedResp := s.Handle([]byte{uint8(uds.SIDSecurityAccess), 0x01}, false, "tester-1")
	require.Len(t, seedResp, 4)
	assert.Equal(t, byte(0x67), seedResp[0])
	seed := seedResp[2:]

	key := security.XORAlgorithm{Secret: []byte{0xAA}}.ComputeKey(0x01, seed)
	keyReq := append([]byte{uint8(uds.SIDSecurityAccess), 0x02}, key...)
	keyResp := s.Handle(keyReq, false, "tester-1")
	assert.Equal(t, []byte{0x67, 0x02}, keyResp)
	assert.True(t, sec.IsUnlocked(0x01))
}

func TestSecurityAccessValidateKeyWithoutSeedYieldsSequenceError(t *testing.T) {
	sec := newTestSecurity()
	s := server.New(&fakeTransport{}, nil)
	RegisterSecurityAccess(s, sec, 0x01, nil, nil)

	resp := s.Handle([]byte{uint8(uds.SIDSecurityAccess), 0x02, 0x00, 0x00}, false, "tester-1")
	require.Len(t, resp, 3)
	assert.Equal(t, uint8(0x24), resp[2])
}

func TestSecurityAccessWrongKeyYieldsInvalidKey(t *testing.T) {
	sec := newTestSecurity()
	s := server.New(&fakeTransport{}, nil)
	RegisterSecurityAccess(s, sec, 0x01, nil, nil)

	s.Handle([]byte{uint8(uds.SIDSecurityAccess), 0x01}, false, "tester-1")
	resp := s.Handle([]byte{uint8(uds.SIDSecurityAccess), 0x02, 0xFF, 0xFF}, false, "tester-1")
	require.Len(t, resp, 3)
	assert.Equal(t, uint8(0x35), resp[2])
}

func TestSecurityAccessMismatchedLevelYieldsServiceNotSupported(t *testing.T) {
	sec := newTestSecurity()
	s := server.New(&fakeTransport{}, nil)
	RegisterSecurityAccess(s, sec, 0x01, nil, nil)

	resp := s.Handle([]byte{uint8(uds.SIDSecurityAccess), 0x03}, false, "tester-1")
	require.Len(t, resp, 3)
	assert.Equal(t, uint8(0x11), resp[2])
}
