// Package handlers implements the server's per-SID chain-of-
// responsibility handlers (spec §6, §4.4). Each file registers one
// service's handlers into a *server.Server at construction time; none of
// them import each other, only the shared server/uerr/uds packages.
package handlers

import (
	"github.com/udsforge/udsforge/internal/security"
	"github.com/udsforge/udsforge/internal/uerr"
	"github.com/udsforge/udsforge/pkg/uds"
	"github.com/udsforge/udsforge/pkg/uds/server"
)

// RegisterSessionControl wires the SID 0x10 DiagnosticSessionControl
// handler. It accepts default/programming/extended sub-functions,
// applies P2/P2Star timing to the positive response, and touches the S3
// session timer (spec §6 "0x10").
func RegisterSessionControl(s *server.Server) {
	s.Register(server.EventSessionControl, server.PriorityNormal, "sessioncontrol", func(ctx *server.RequestContext) uerr.Outcome {
		if len(ctx.Payload) < 2 {
			return uerr.Err(uerr.NRCIncorrectMessageLength)
		}
		session := uds.SessionType(ctx.Payload[1] &^ 0x80)
		switch session {
		case uds.SessionDefault, uds.SessionProgramming, uds.SessionExtended:
		default:
			return uerr.NotMine()
		}

		ctx.Server.Session = session
		ctx.Server.TouchSession()

		suppressResp := ctx.Payload[1]&0x80 != 0
		if suppressResp {
			return uerr.Handled(nil)
		}

		body := []byte{
			uds.SIDDiagnosticSessionControl.ResponseSID(),
			uint8(session),
			byte(ctx.Server.P2 >> 8), byte(ctx.Server.P2),
			byte(ctx.Server.P2Star / 10 >> 8), byte(ctx.Server.P2Star / 10),
		}
		return uerr.Handled(body)
	})
}

// RegisterSessionTimeout wires the internal EventSessionTimeout handler:
// when the S3 timer lapses in a non-default session, the server reverts
// to the default session, locks security, and restores both
// communication channels (spec §4.6 "timing parameters" session
// timeout).
func RegisterSessionTimeout(s *server.Server, sec *security.Instance) {
	s.Register(server.EventSessionTimeout, server.PriorityNormal, "sessiontimeout", func(ctx *server.RequestContext) uerr.Outcome {
		ctx.Server.Session = uds.SessionDefault
		ctx.Server.NormalComm = server.CommEnableRxTx
		ctx.Server.NMComm = server.CommEnableRxTx
		if sec != nil {
			sec.Lock()
			ctx.Server.SecurityLevel = 0
		}
		return uerr.Handled(nil).Observe()
	})
}
