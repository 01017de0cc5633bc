package handlers

import (
	"github.com/udsforge/udsforge/internal/uerr"
	"github.com/udsforge/udsforge/pkg/uds"
	"github.com/udsforge/udsforge/pkg/uds/server"
)

// commScope is the third request byte selecting which communication
// channel(s) a CommunicationControl request targets (spec §4.4 "0x28"
// "Scope byte").
type commScope uint8

const (
	commScopeNormal commScope = 0x01
	commScopeNM     commScope = 0x02
	commScopeBoth   commScope = 0x03
)

// RegisterCommunicationControl wires the SID 0x28 CommunicationControl
// handler. Global sub-functions 0x00-0x03 are always accepted;
// node-scoped 0x04/0x05 only take effect when the request's node id
// matches nodeID, and are silently positive-acked otherwise (spec §4.4
// "0x28").
func RegisterCommunicationControl(s *server.Server, nodeID uint8) {
	s.Register(server.EventCommunicationControl, server.PriorityNormal, "commcontrol", func(ctx *server.RequestContext) uerr.Outcome {
		if len(ctx.Payload) < 3 {
			return uerr.Err(uerr.NRCIncorrectMessageLength)
		}
		ctrl := ctx.Payload[1]
		scope := commScope(ctx.Payload[2])

		var target server.CommState
		switch ctrl {
		case 0x00:
			target = server.CommEnableRxTx
		case 0x01:
			target = server.CommEnableRxDisableTx
		case 0x02:
			target = server.CommDisableRxEnableTx
		case 0x03:
			target = server.CommDisableRxTx
		case 0x04, 0x05:
			if len(ctx.Payload) < 4 {
				return uerr.Err(uerr.NRCIncorrectMessageLength)
			}
			if ctx.Payload[3] != nodeID {
				// Not addressed to us: positively acked, no state change.
				return uerr.Handled([]byte{uds.SIDCommunicationControl.ResponseSID(), ctrl})
			}
			if ctrl == 0x04 {
				target = server.CommEnableRxDisableTx
			} else {
				target = server.CommDisableRxEnableTx
			}
		default:
			return uerr.Err(uerr.NRCRequestOutOfRange)
		}

		if scope == commScopeNormal || scope == commScopeBoth {
			ctx.Server.NormalComm = target
		}
		if scope == commScopeNM || scope == commScopeBoth {
			ctx.Server.NMComm = target
		}

		return uerr.Handled([]byte{uds.SIDCommunicationControl.ResponseSID(), ctrl})
	})
}
