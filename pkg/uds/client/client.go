// Package client implements the UDS client (tester) core: request
// encoding, response decoding, transaction state, and the single funnel
// (wait_transaction) every service call drains through (spec §4.2, §4.5).
package client

import (
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/udsforge/udsforge/internal/logger"
	"github.com/udsforge/udsforge/internal/uerr"
	"github.com/udsforge/udsforge/pkg/isotp"
)

// State is one of the client's four states (spec §3 "UDS client entity").
type State int

const (
	StateIdle State = iota
	StateSending
	StateAwaitSendComplete
	StateAwaitResponse
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateSending:
		return "Sending"
	case StateAwaitSendComplete:
		return "AwaitSendComplete"
	case StateAwaitResponse:
		return "AwaitResponse"
	default:
		return "unknown"
	}
}

// Options is the client options bitset (spec §3).
type Options uint8

const (
	// OptSuppressPosResp requests the server skip the positive response
	// (used by TesterPresent heartbeats, spec §4.4 "0x3E").
	OptSuppressPosResp Options = 1 << iota
)

// Transport is the subset of *isotp.Binding the client core depends on,
// narrowed so tests can fake it.
type Transport interface {
	Send(payload []byte, functional bool) error
	Poll() isotp.Status
	TakeReceived() ([]byte, isotp.Channel, bool)
	TxInProgress() bool
}

// Client is the UDS client (tester) entity (spec §3). It owns one
// transport binding and allows exactly one outstanding transaction at a
// time; there is no internal locking because nothing here is ever called
// concurrently (spec §5 "Client").
type Client struct {
	transport Transport
	sink      EventSink
	registry  *ResponseRegistry
	options   Options

	state            State
	responseReceived bool
	lastResponse     []byte
	lastNRC          uerr.NRC
	sendStarted      time.Time
	txID             string
}

// New constructs a Client bound to the given transport.
func New(transport Transport, sink EventSink) *Client {
	if sink == nil {
		sink = NopEventSink
	}
	return &Client{
		transport: transport,
		sink:      sink,
		registry:  NewResponseRegistry(),
		state:     StateIdle,
	}
}

// Registry exposes the response registry so services can subscribe their
// decoders at startup (spec §4.7).
func (c *Client) Registry() *ResponseRegistry { return c.registry }

// SetOptions replaces the client's options bitset.
func (c *Client) SetOptions(o Options) { c.options = o }

// GetOptions returns the current options bitset.
func (c *Client) GetOptions() Options { return c.options }

// State returns the client's current state.
func (c *Client) State() State { return c.state }

// LastNRC returns the NRC captured by the most recently completed
// transaction; uerr.NRCNone means the last transaction was positive.
func (c *Client) LastNRC() uerr.NRC { return c.lastNRC }

// LastResponse returns the full payload of the most recently received
// response frame.
func (c *Client) LastResponse() []byte { return c.lastResponse }

// Prepare clears the response-received flag and last NRC ahead of a new
// request (spec §4.2 "prepare()"). Also mints a fresh transaction id used
// only for log correlation.
func (c *Client) Prepare() {
	c.responseReceived = false
	c.lastNRC = uerr.NRCNone
	c.lastResponse = nil
	c.txID = xid.New().String()
}

// rawSend encodes are done by callers (send_<service> helpers); rawSend
// transitions Idle -> Sending and hands the payload to the transport.
func (c *Client) rawSend(payload []byte, functional bool) error {
	if c.state != StateIdle {
		return fmt.Errorf("uds client: send while not idle (state=%s)", c.state)
	}
	c.state = StateSending
	if err := c.transport.Send(payload, functional); err != nil {
		c.state = StateIdle
		return err
	}
	c.sendStarted = time.Now()
	if !c.transport.TxInProgress() {
		// Single Frame requests complete transmission synchronously.
		c.state = StateAwaitSendComplete
		c.sink.OnEvent(Event{Kind: EventSendComplete})
		c.state = StateAwaitResponse
	} else {
		c.state = StateAwaitSendComplete
	}
	return nil
}

// Poll advances protocol state (spec §4.2 "poll()"). It must be called
// frequently by the owner's loop; it never blocks.
func (c *Client) Poll() {
	status := c.transport.Poll()

	if c.state == StateAwaitSendComplete && !c.transport.TxInProgress() {
		c.state = StateAwaitResponse
		c.sink.OnEvent(Event{Kind: EventSendComplete})
	}

	if status.Has(isotp.StatusTportErr) {
		c.lastNRC = uerr.NRCNonNRCError
		c.sink.OnEvent(Event{Kind: EventErr, ErrKind: uint32(status)})
		c.state = StateIdle
		return
	}

	payload, _, ok := c.transport.TakeReceived()
	if !ok {
		return
	}

	c.lastResponse = payload
	if sid, nrc, isNeg := func() (uint8, uint8, bool) {
		if len(payload) == 3 && payload[0] == 0x7F {
			return payload[1], payload[2], true
		}
		return 0, 0, false
	}(); isNeg {
		c.lastNRC = uerr.NRC(nrc)
		logger.Warn("negative response", logger.KeyRSID, sid, logger.KeyNRC, nrc)
	} else {
		c.lastNRC = uerr.NRCNone
	}

	c.responseReceived = true
	c.state = StateIdle
	c.sink.OnEvent(Event{Kind: EventResponseReceived})
	c.registry.Dispatch(payload)
	c.sink.OnEvent(Event{Kind: EventIdle})
}

// WaitTransaction is the single funnel every transaction drains through
// (spec §4.2 "wait_transaction"). sendErr is the error (if any) the
// send_<service> call itself returned synchronously.
func (c *Client) WaitTransaction(sendErr error, label string, timeoutMs int) (bool, error) {
	if sendErr != nil {
		c.state = StateIdle
		return false, fmt.Errorf("uds client: %s: send failed: %w", label, sendErr)
	}

	deadline := time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
	for {
		c.Poll()
		if c.responseReceived {
			if c.lastNRC != uerr.NRCNone {
				return false, fmt.Errorf("uds client: %s: %s", label, c.lastNRC)
			}
			return true, nil
		}
		if time.Now().After(deadline) {
			c.state = StateIdle
			return false, fmt.Errorf("uds client: %s: timeout after %dms", label, timeoutMs)
		}
		time.Sleep(time.Millisecond)
	}
}

// Transaction is the single public form every service call should use:
// prepare -> invoke send -> wait (spec §4.5).
func (c *Client) Transaction(send func() error, label string, timeoutMs int) (bool, error) {
	c.Prepare()
	err := send()
	return c.WaitTransaction(err, label, timeoutMs)
}

// DefaultTimeoutMs is the fixed default transaction timeout (spec §4.5).
const DefaultTimeoutMs = 1000
