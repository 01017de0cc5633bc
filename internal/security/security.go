// Package security implements the SecurityAccess (SID 0x27) seed/key
// challenge: a pluggable Algorithm behind a single-use seed and the
// unlock bookkeeping the server's 0x27 handler drives (spec §4.4 "0x27",
// §9 "Security algorithm plug-point").
package security

import (
	"crypto/rand"
)

// Algorithm computes the expected key for a given seed and level. Real
// deployments supply their own implementation (HSM call, vendor
// algorithm, etc.); Instance only ever calls this interface.
type Algorithm interface {
	ComputeKey(level uint8, seed []byte) []byte
}

// XORAlgorithm is the default Algorithm: it XORs the seed against a
// fixed-length secret, repeating the secret as needed. It exists so the
// rest of the stack (server, client, shell) has something to exercise
// out of the box; it is not a real automotive security algorithm and
// must be replaced by a vendor Algorithm before any real use (spec §9
// "Security algorithm plug-point").
type XORAlgorithm struct {
	Secret []byte
}

func (x XORAlgorithm) ComputeKey(level uint8, seed []byte) []byte {
	key := make([]byte, len(seed))
	for i := range seed {
		key[i] = seed[i] ^ x.Secret[i%len(x.Secret)] ^ level
	}
	return key
}

// Instance tracks one security session's state: the algorithm in use,
// the outstanding seed (if any), and the unlocked level (spec §4.4
// "0x27" state machine).
type Instance struct {
	algo     Algorithm
	seedSize int

	outstandingLevel uint8
	outstandingSeed  []byte
	unlockedLevel    uint8
}

// NewInstance constructs an Instance. seedSize controls how many random
// bytes RequestSeed generates per challenge (commonly 2 or 4).
func NewInstance(algo Algorithm, seedSize int) *Instance {
	return &Instance{algo: algo, seedSize: seedSize}
}

// UnlockedLevel returns the currently unlocked security level, 0 if
// locked.
func (i *Instance) UnlockedLevel() uint8 { return i.unlockedLevel }

// IsUnlocked reports whether level is currently satisfied: either
// exactly unlocked, or a higher level is (spec §4.4 "0x27" "already
// unlocked" rule).
func (i *Instance) IsUnlocked(level uint8) bool {
	return i.unlockedLevel != 0 && i.unlockedLevel >= level
}

// RequestSeed produces a seed for the odd sub-function request-seed
// level. Per spec §9's Open Question decision, if the requested level is
// already unlocked the server returns an all-zero seed of the same
// length instead of a fresh challenge, signalling "already unlocked"
// without a separate response format.
func (i *Instance) RequestSeed(level uint8) []byte {
	if i.IsUnlocked(level) {
		return make([]byte, i.seedSize)
	}

	seed := make([]byte, i.seedSize)
	_, _ = rand.Read(seed)
	i.outstandingLevel = level
	i.outstandingSeed = seed
	return seed
}

// HasOutstandingChallenge reports whether a seed was issued for level
// and not yet consumed. The 0x27 handler uses this to distinguish
// RequestSequenceError (no outstanding seed) from InvalidKey (wrong key
// against a real outstanding seed) before calling ValidateKey (spec §4.4
// "0x27" "Requires current_seed ≠ 0").
func (i *Instance) HasOutstandingChallenge(level uint8) bool {
	return i.outstandingSeed != nil && i.outstandingLevel == level
}

// ValidateKey checks a submitted key against the outstanding seed for
// level. The seed is single-use: whether the key is accepted or
// rejected, the outstanding challenge is cleared so a replay of the same
// key can never succeed twice (spec §4.4 "0x27" "single-use seed").
func (i *Instance) ValidateKey(level uint8, key []byte) bool {
	if i.outstandingSeed == nil || i.outstandingLevel != level {
		return false
	}
	expected := i.algo.ComputeKey(level, i.outstandingSeed)
	i.outstandingSeed = nil
	i.outstandingLevel = 0

	if !constantTimeEqual(expected, key) {
		return false
	}
	i.unlockedLevel = level
	return true
}

// Lock resets the instance to locked, clearing any outstanding
// challenge (spec §4.6 "session timeout" effect on security state).
func (i *Instance) Lock() {
	i.unlockedLevel = 0
	i.outstandingSeed = nil
	i.outstandingLevel = 0
}

func constantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var diff byte
	for idx := range a {
		diff |= a[idx] ^ b[idx]
	}
	return diff == 0
}
