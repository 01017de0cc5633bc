package handlers

import (
	"strconv"

	"github.com/udsforge/udsforge/internal/audit"
	"github.com/udsforge/udsforge/internal/logger"
	"github.com/udsforge/udsforge/internal/metrics"
	"github.com/udsforge/udsforge/internal/security"
	"github.com/udsforge/udsforge/internal/uerr"
	"github.com/udsforge/udsforge/pkg/uds"
	"github.com/udsforge/udsforge/pkg/uds/server"
)

// RegisterSecurityAccess wires one SecurityAccess (spec §4.4 "0x27")
// instance into the server at requestLevel (the odd request-seed
// sub-function; requestLevel+1 is the paired validate-key
// sub-function). Multiple instances can be registered for distinct
// levels: a sub-function mismatch returns NotMine so the chain tries
// the next instance, and a level no instance claims ends the chain with
// ServiceNotSupported.
//
// auditSvc and m are both optional: a nil audit.Service skips
// attestation issuance, and a nil *metrics.Metrics is a no-op per its
// own nil-receiver guards.
func RegisterSecurityAccess(s *server.Server, sec *security.Instance, requestLevel uint8, auditSvc *audit.Service, m *metrics.Metrics) {
	validateLevel := requestLevel + 1

	s.Register(server.EventSecurityRequestSeed, server.PriorityNormal, "security-requestseed", func(ctx *server.RequestContext) uerr.Outcome {
		if len(ctx.Payload) < 2 {
			return uerr.Err(uerr.NRCIncorrectMessageLength)
		}
		if ctx.Payload[1] != requestLevel {
			return uerr.NotMine()
		}

		seed := sec.RequestSeed(requestLevel)
		body := append([]byte{uds.SIDSecurityAccess.ResponseSID(), requestLevel}, seed...)
		return uerr.Handled(body)
	})

	s.Register(server.EventSecurityValidateKey, server.PriorityNormal, "security-validatekey", func(ctx *server.RequestContext) uerr.Outcome {
		if len(ctx.Payload) < 2 {
			return uerr.Err(uerr.NRCIncorrectMessageLength)
		}
		if ctx.Payload[1] != validateLevel {
			return uerr.NotMine()
		}

		key := ctx.Payload[2:]
		if !sec.HasOutstandingChallenge(requestLevel) {
			return uerr.Err(uerr.NRCRequestSequenceError)
		}
		if !sec.ValidateKey(requestLevel, key) {
			return uerr.Err(uerr.NRCInvalidKey)
		}

		m.RecordUnlock(strconv.Itoa(int(requestLevel)))
		if auditSvc != nil {
			if _, err := auditSvc.IssueUnlockAttestation(ctx.ClientAddr, requestLevel); err != nil {
				logger.Warn("security: issue unlock attestation failed", "error", err)
			}
		}

		return uerr.Handled([]byte{uds.SIDSecurityAccess.ResponseSID(), validateLevel})
	})
}
