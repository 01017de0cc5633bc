package handlers

import (
	"github.com/udsforge/udsforge/internal/uerr"
	"github.com/udsforge/udsforge/pkg/uds"
	"github.com/udsforge/udsforge/pkg/uds/server"
)

// suppressPosRespBit marks a TesterPresent (or any session-keeping
// request) as not wanting a response (spec §4.4 "0x3E").
const suppressPosRespBit = 0x80

// RegisterTesterPresent wires the SID 0x3E handler: it only touches the
// session timer and, unless suppressed, echoes the sub-function back
// (spec §4.4 "0x3E").
func RegisterTesterPresent(s *server.Server) {
	s.Register(server.EventTesterPresent, server.PriorityNormal, "testerpresent", func(ctx *server.RequestContext) uerr.Outcome {
		if len(ctx.Payload) < 2 {
			return uerr.Err(uerr.NRCIncorrectMessageLength)
		}
		ctx.Server.TouchSession()

		subfn := ctx.Payload[1]
		if subfn&suppressPosRespBit != 0 {
			return uerr.Handled(nil)
		}
		return uerr.Handled([]byte{uds.SIDTesterPresent.ResponseSID(), subfn &^ suppressPosRespBit})
	})
}
