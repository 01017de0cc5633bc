package uerr

// Outcome is the three-way result a dispatcher handler returns (spec §4.3,
// §9 "Chain sentinel"). It deliberately does not reuse a magic negative
// number alongside NRC values: CONTINUE lives as its own case, not a
// lookalike NRC.
type Outcome struct {
	kind     outcomeKind
	body     []byte
	nrc      NRC
	observer bool
}

type outcomeKind int

const (
	kindHandled outcomeKind = iota
	kindNotMine
	kindError
)

// Handled signals the handler produced a positive (or 0x78 pending) response
// body; the dispatcher stops iterating the chain and returns it.
func Handled(body []byte) Outcome {
	return Outcome{kind: kindHandled, body: body}
}

// NotMine signals "this handler doesn't recognise the request" — the
// dispatcher chain tries the next handler. Equivalent to a handler wanting
// to return RequestOutOfRange/SubFunctionNotSupported as a triage signal
// rather than a final answer (spec §4.3 step 2).
func NotMine() Outcome {
	return Outcome{kind: kindNotMine}
}

// Err signals the handler recognised the request and rejects it outright;
// the dispatcher stops and returns this NRC.
func Err(nrc NRC) Outcome {
	return Outcome{kind: kindError, nrc: nrc}
}

// Observe marks an outcome (normally NotMine) as having "handled" the event
// in an observer capacity: later handlers still run, but if the chain ends
// without a positive responder, the dispatcher reports success instead of
// ServiceNotSupported (spec §4.3 step 3, §9 "Observer handler").
func (o Outcome) Observe() Outcome {
	o.observer = true
	return o
}

// IsHandled reports whether this outcome terminates the chain with a body.
func (o Outcome) IsHandled() bool { return o.kind == kindHandled }

// IsNotMine reports whether the dispatcher should try the next handler.
func (o Outcome) IsNotMine() bool { return o.kind == kindNotMine }

// IsError reports whether this outcome terminates the chain with an NRC.
func (o Outcome) IsError() bool { return o.kind == kindError }

// IsObserver reports whether a NotMine outcome counts as "at least one
// handler engaged" for end-of-chain triage.
func (o Outcome) IsObserver() bool { return o.observer }

// Body returns the positive response body of a Handled outcome.
func (o Outcome) Body() []byte { return o.body }

// NRCode returns the negative response code of an Err outcome.
func (o Outcome) NRCode() NRC { return o.nrc }
