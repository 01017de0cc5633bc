package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerifyRoundTrips(t *testing.T) {
	s, err := NewService(Config{Secret: "0123456789abcdef0123456789abcdef"})
	require.NoError(t, err)

	token, err := s.IssueUnlockAttestation("tester-1", 3)
	require.NoError(t, err)

	claims, err := s.VerifyAttestation(token)
	require.NoError(t, err)
	assert.Equal(t, "tester-1", claims.ClientAddr)
	assert.Equal(t, uint8(3), claims.Level)
}

func TestShortSecretRejected(t *testing.T) {
	_, err := NewService(Config{Secret: "tooshort"})
	assert.ErrorIs(t, err, ErrInvalidSecretLength)
}

func TestExpiredAttestationFailsVerification(t *testing.T) {
	s, err := NewService(Config{Secret: "0123456789abcdef0123456789abcdef", TTL: time.Millisecond})
	require.NoError(t, err)

	token, err := s.IssueUnlockAttestation("tester-1", 1)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	_, err = s.VerifyAttestation(token)
	assert.Error(t, err)
}

func TestTamperedTokenFailsVerification(t *testing.T) {
	s, err := NewService(Config{Secret: "0123456789abcdef0123456789abcdef"})
	require.NoError(t, err)

	other, err := NewService(Config{Secret: "fedcba9876543210fedcba9876543210"})
	require.NoError(t, err)

	token, err := s.IssueUnlockAttestation("tester-1", 1)
	require.NoError(t, err)

	_, err = other.VerifyAttestation(token)
	assert.Error(t, err)
}
