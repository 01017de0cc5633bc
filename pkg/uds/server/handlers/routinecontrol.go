package handlers

import (
	"encoding/binary"
	"strings"

	"github.com/udsforge/udsforge/internal/console"
	"github.com/udsforge/udsforge/internal/security"
	"github.com/udsforge/udsforge/internal/uerr"
	"github.com/udsforge/udsforge/pkg/uds"
	"github.com/udsforge/udsforge/pkg/uds/server"
)

// routineStartSubfunction is the only RoutineControl sub-function this
// server supports: StartRoutine (spec §4.4 "0x31").
const routineStartSubfunction = 0x01

// ConsoleRoutineConfig configures the remote-console RoutineControl
// handler (spec §4.4 "0x31 RoutineControl (remote console)").
type ConsoleRoutineConfig struct {
	// RoutineID is the RID the client must request; default 0xF000.
	RoutineID uint16
	// MinSession is the minimum session the caller must be in.
	MinSession uds.SessionType
	// MinSecurityLevel is the minimum unlocked security level required,
	// 0 meaning no security gate.
	MinSecurityLevel uint8
	// BufferSize is the console capture buffer size; 0 uses
	// console.DefaultBufferSize.
	BufferSize int
}

// RegisterRoutineControl wires the SID 0x31 remote-console handler. sec
// may be nil if MinSecurityLevel is 0.
func RegisterRoutineControl(s *server.Server, cfg ConsoleRoutineConfig, sec *security.Instance) {
	routineID := cfg.RoutineID
	if routineID == 0 {
		routineID = 0xF000
	}

	s.Register(server.EventRoutineControl, server.PriorityNormal, "routinecontrol", func(ctx *server.RequestContext) uerr.Outcome {
		if len(ctx.Payload) < 3 {
			return uerr.Err(uerr.NRCIncorrectMessageLength)
		}
		subfn := ctx.Payload[1]
		rid := binary.BigEndian.Uint16(ctx.Payload[2:4])
		if subfn != routineStartSubfunction || rid != routineID {
			return uerr.NotMine()
		}

		if cfg.MinSession != 0 && ctx.Server.Session < cfg.MinSession {
			return uerr.Err(uerr.NRCConditionsNotCorrect)
		}
		if cfg.MinSecurityLevel != 0 && (sec == nil || !sec.IsUnlocked(cfg.MinSecurityLevel)) {
			return uerr.Err(uerr.NRCSecurityAccessDenied)
		}

		command := string(ctx.Payload[4:])
		fields := strings.Fields(command)
		if len(fields) == 0 {
			return uerr.Err(uerr.NRCRequestOutOfRange)
		}

		capture := console.NewCaptureSession(cfg.BufferSize)
		_ = capture.Run(fields[0], fields[1:]...)

		body := []byte{uds.SIDRoutineControl.ResponseSID(), subfn, byte(rid >> 8), byte(rid)}
		body = append(body, capture.Output()...)
		return uerr.Handled(body)
	})
}
