package handlers

import (
	"encoding/binary"
	"sync"

	"github.com/udsforge/udsforge/internal/uerr"
	"github.com/udsforge/udsforge/pkg/uds"
	"github.com/udsforge/udsforge/pkg/uds/server"
)

// IOValueFunc performs the actual IO effect for one DID: it receives the
// requested action and any state/mask bytes from the request and
// returns the state bytes to echo back in the positive response (spec
// §4.4 "0x2F").
type IOValueFunc func(action uds.IOControlAction, data []byte) ([]byte, error)

type ioNode struct {
	handler    IOValueFunc
	overridden bool
}

// IOControlRegistry holds the IO nodes a server exposes through SID
// 0x2F (spec §3 "IO node"). It is safe for concurrent use, though the
// server's single-threaded consumer loop never actually contends on it.
type IOControlRegistry struct {
	mu    sync.Mutex
	nodes map[uint16]*ioNode
}

// NewIOControlRegistry constructs an empty registry.
func NewIOControlRegistry() *IOControlRegistry {
	return &IOControlRegistry{nodes: make(map[uint16]*ioNode)}
}

// RegisterNode binds an IOValueFunc to did.
func (r *IOControlRegistry) RegisterNode(did uint16, fn IOValueFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodes[did] = &ioNode{handler: fn}
}

// ResetAllOverridden clears every node's override flag, invoked on
// session-timeout (spec §4.4 "0x2F" "On session-timeout, every
// overridden node receives an implicit ReturnControl").
func (r *IOControlRegistry) ResetAllOverridden() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.nodes {
		n.overridden = false
	}
}

// RegisterIOControl wires the SID 0x2F IOControlByIdentifier handler
// against reg.
func RegisterIOControl(s *server.Server, reg *IOControlRegistry) {
	s.Register(server.EventIOControl, server.PriorityNormal, "iocontrol", func(ctx *server.RequestContext) uerr.Outcome {
		if len(ctx.Payload) < 3 {
			return uerr.Err(uerr.NRCIncorrectMessageLength)
		}
		did := binary.BigEndian.Uint16(ctx.Payload[1:3])
		action := uds.IOControlAction(ctx.Payload[3])
		data := ctx.Payload[4:]

		reg.mu.Lock()
		node, ok := reg.nodes[did]
		reg.mu.Unlock()
		if !ok {
			return uerr.Err(uerr.NRCRequestOutOfRange)
		}

		state, err := node.handler(action, data)
		if err != nil {
			return uerr.Err(uerr.NRCConditionsNotCorrect)
		}

		reg.mu.Lock()
		switch action {
		case uds.IOShortTermAdjustment, uds.IOFreezeCurrentState:
			node.overridden = true
		case uds.IOReturnControlToECU, uds.IOResetToDefault:
			node.overridden = false
		}
		reg.mu.Unlock()

		body := []byte{uds.SIDIOControlByIdentifier.ResponseSID(), byte(did >> 8), byte(did), byte(action)}
		body = append(body, state...)
		return uerr.Handled(body)
	})
}

// RegisterIOControlSessionTimeout wires the session-timeout side effect
// of 0x2F: every overridden IO node is implicitly returned to ECU
// control (spec §4.4 "0x2F" session-timeout clause).
func RegisterIOControlSessionTimeout(s *server.Server, reg *IOControlRegistry) {
	s.Register(server.EventSessionTimeout, server.PriorityLow, "iocontrol-timeout", func(ctx *server.RequestContext) uerr.Outcome {
		reg.ResetAllOverridden()
		return uerr.Handled(nil).Observe()
	})
}
