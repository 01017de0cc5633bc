package handlers

import (
	"time"

	"github.com/udsforge/udsforge/internal/uerr"
	"github.com/udsforge/udsforge/pkg/uds"
	"github.com/udsforge/udsforge/pkg/uds/server"
)

// PowerDownTime is the delay (spec §6 "0x11" power-down delay) the
// server waits after acknowledging a reset before actually firing
// EventScheduledReset.
const PowerDownTime = 500 * time.Millisecond

// ResetFunc performs the actual reset side effect (process restart,
// state reload, etc.) once the power-down delay elapses. The default
// no-op lets the dispatcher/tests exercise the protocol without tearing
// down the process.
type ResetFunc func(reset uds.ResetType)

// RegisterECUReset wires the SID 0x11 ECUReset handler. It accepts
// hard/keyOff/soft sub-functions, immediately acknowledges, and arms a
// scheduled reset after PowerDownTime (spec §6 "0x11").
func RegisterECUReset(s *server.Server, onReset ResetFunc) {
	s.Register(server.EventECUReset, server.PriorityNormal, "ecureset", func(ctx *server.RequestContext) uerr.Outcome {
		if len(ctx.Payload) < 2 {
			return uerr.Err(uerr.NRCIncorrectMessageLength)
		}
		reset := uds.ResetType(ctx.Payload[1] &^ 0x80)
		switch reset {
		case uds.ResetHard, uds.ResetKeyOff, uds.ResetSoft:
		default:
			return uerr.NotMine()
		}

		ctx.Server.ArmScheduledReset(uint8(reset), PowerDownTime)

		if ctx.Payload[1]&0x80 != 0 {
			return uerr.Handled(nil)
		}
		return uerr.Handled([]byte{uds.SIDECUReset.ResponseSID(), uint8(reset)})
	})

	s.Register(server.EventScheduledReset, server.PriorityNormal, "scheduledreset", func(ctx *server.RequestContext) uerr.Outcome {
		if onReset != nil {
			onReset(uds.ResetType(ctx.Server.PendingResetKind))
		}
		return uerr.Handled(nil).Observe()
	})
}
