// Package audit issues JWT-signed attestations whenever a client
// successfully unlocks a SecurityAccess level, giving downstream
// systems a verifiable, tamper-evident record that an unlock happened
// without having to trust the server's own logs (spec "SUPPLEMENTED
// FEATURES" 2. audit attestations via JWT).
package audit

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidSecretLength matches the teacher stack's JWT service
// convention of refusing short HMAC secrets outright.
var ErrInvalidSecretLength = errors.New("audit: secret must be at least 32 characters")

// UnlockClaims is the attestation body for one SecurityAccess unlock
// event.
type UnlockClaims struct {
	jwt.RegisteredClaims

	ClientAddr string `json:"client_addr"`
	Level      uint8  `json:"level"`
}

// Service signs and verifies unlock attestations.
type Service struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// Config configures a Service.
type Config struct {
	Secret string
	Issuer string
	TTL    time.Duration
}

// NewService constructs a Service. Issuer defaults to "udsforge" and TTL
// to 24h when left zero.
func NewService(cfg Config) (*Service, error) {
	if len(cfg.Secret) < 32 {
		return nil, ErrInvalidSecretLength
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "udsforge"
	}
	if cfg.TTL == 0 {
		cfg.TTL = 24 * time.Hour
	}
	return &Service{secret: []byte(cfg.Secret), issuer: cfg.Issuer, ttl: cfg.TTL}, nil
}

// IssueUnlockAttestation signs a token certifying that clientAddr
// unlocked level at the current time.
func (s *Service) IssueUnlockAttestation(clientAddr string, level uint8) (string, error) {
	now := time.Now()
	claims := &UnlockClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   clientAddr,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		ClientAddr: clientAddr,
		Level:      level,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("audit: sign attestation: %w", err)
	}
	return signed, nil
}

// VerifyAttestation parses and validates a previously issued token.
func (s *Service) VerifyAttestation(tokenString string) (*UnlockClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &UnlockClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("audit: unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("audit: verify attestation: %w", err)
	}

	claims, ok := token.Claims.(*UnlockClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("audit: invalid attestation")
	}
	return claims, nil
}
