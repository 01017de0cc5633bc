package server

import (
	"sort"

	"github.com/udsforge/udsforge/internal/uerr"
)

// Priority buckets a handler registers under. Lower values run first.
// Handlers within the same bucket run in registration order (spec §4.3
// "chain ordering").
const (
	PriorityHighest uint8 = 0
	PriorityHigh    uint8 = 64
	PriorityNormal  uint8 = 128
	PriorityLow     uint8 = 192
	PriorityLowest  uint8 = 255
)

// Handler processes one request and reports what happened. It returns
// uerr.NotMine() when the request does not match its sub-function or
// data identifier, letting the chain fall through to the next handler
// (spec §4.3 "three-way outcome"); there is no magic sentinel value
// shared with a real NRC.
type Handler func(ctx *RequestContext) uerr.Outcome

// ServiceNode is one link in an event's handler chain.
type ServiceNode struct {
	event    EventKind
	priority uint8
	name     string
	handler  Handler
}

// RequestContext carries everything a handler needs to process one
// request: the raw request payload (SID included), the owning server
// (for session/security/comm-control state), and the originating
// channel/address (spec §4.3, §4.6).
type RequestContext struct {
	Server     *Server
	Event      EventKind
	Payload    []byte
	Functional bool
	ClientAddr string
	TxID       string
}

// dispatcher holds the per-event ordered chains. It is not safe for
// concurrent registration, but registration only happens at startup
// before the server's single-threaded loop begins (spec §5 "Server").
type dispatcher struct {
	chains map[EventKind][]ServiceNode
}

func newDispatcher() *dispatcher {
	return &dispatcher{chains: make(map[EventKind][]ServiceNode)}
}

// Register appends a handler to event's chain and keeps the chain
// sorted by priority (stable, so same-priority handlers keep
// registration order per spec §4.3).
func (d *dispatcher) Register(event EventKind, priority uint8, name string, h Handler) {
	d.chains[event] = append(d.chains[event], ServiceNode{
		event:    event,
		priority: priority,
		name:     name,
		handler:  h,
	})
	chain := d.chains[event]
	sort.SliceStable(chain, func(i, j int) bool { return chain[i].priority < chain[j].priority })
}

// dispatchResult is what Dispatch reports back to the server loop.
type dispatchResult struct {
	outcome   uerr.Outcome
	handledBy string
	observers []string
}

// Dispatch runs ctx.Event's chain in priority order (spec §4.3 steps 1-3):
//  1. Every Observer-marked handler runs regardless of outcome, purely
//     for side effects (metrics, audit, console echo); its returned
//     body/NRC is discarded.
//  2. Non-observer handlers run in order until one returns Handled or
//     Err; that terminates the chain.
//  3. If every handler returns NotMine, Dispatch itself reports NotMine
//     so the caller can fall back to a default NRC (ServiceNotSupported
//     or SubFunctionNotSupported, chosen by the caller).
func (d *dispatcher) Dispatch(ctx *RequestContext) dispatchResult {
	chain := d.chains[ctx.Event]
	result := dispatchResult{outcome: uerr.NotMine()}

	for _, node := range chain {
		out := node.handler(ctx)
		if out.IsObserver() {
			result.observers = append(result.observers, node.name)
			continue
		}
		if out.IsNotMine() {
			continue
		}
		result.outcome = out
		result.handledBy = node.name
		return result
	}
	return result
}
