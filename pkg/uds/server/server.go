package server

import (
	"context"
	"time"

	"github.com/rs/xid"

	"github.com/udsforge/udsforge/internal/logger"
	"github.com/udsforge/udsforge/internal/telemetry"
	"github.com/udsforge/udsforge/internal/uerr"
	"github.com/udsforge/udsforge/pkg/uds"
)

// CommState is one of the four values a communication channel
// (Normal or Network Management) can be put into by SID 0x28 (spec §4.4
// "0x28").
type CommState uint8

const (
	CommEnableRxTx        CommState = iota // default at boot
	CommEnableRxDisableTx
	CommDisableRxEnableTx
	CommDisableRxTx
)

// Transport is the subset of *isotp.Binding the server core depends on.
type Transport interface {
	Send(payload []byte, functional bool) error
	TxInProgress() bool
}

// Server is the UDS server (ECU) entity (spec §5 "Server"). It is driven
// by a single-threaded loop (Poll) and holds every piece of session,
// security and communication-control state the spec names. Handlers
// registered through Register mutate this state directly; they run with
// no additional locking because Poll is never reentered concurrently.
type Server struct {
	transport Transport
	sink      EventSink
	disp      *dispatcher

	Session       uds.SessionType
	SecurityLevel uint8

	// P2/P2Star are the server's response-pending timings in
	// milliseconds (spec §4.6 "timing parameters").
	P2     int
	P2Star int

	NormalComm CommState
	NMComm     CommState

	sessionTimer     time.Time
	sessionTimeoutMs int

	// pendingReset, when non-zero, is the scheduled wall-clock time a
	// previously ack'd ECUReset should fire EventScheduledReset (spec
	// §6 "0x11" power-down delay).
	pendingReset     time.Time
	resetArmed       bool
	PendingResetKind uint8

	clientAddr string
}

// EventSink observes every request the server processes, independent of
// outcome; used for metrics/audit wiring (spec §4.6).
type EventSink interface {
	OnRequest(event EventKind, outcome uerr.Outcome)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(EventKind, uerr.Outcome)

func (f EventSinkFunc) OnRequest(e EventKind, o uerr.Outcome) { f(e, o) }

var nopSink EventSink = EventSinkFunc(func(EventKind, uerr.Outcome) {})

// New constructs a Server in the default session (spec §4.6 "boot
// state"): default session, security locked, both comm channels fully
// enabled, P2/P2Star at their ISO 14229-1 defaults.
func New(transport Transport, sink EventSink) *Server {
	if sink == nil {
		sink = nopSink
	}
	return &Server{
		transport:        transport,
		sink:             sink,
		disp:             newDispatcher(),
		Session:          uds.SessionDefault,
		SecurityLevel:    0,
		P2:               50,
		P2Star:           5000,
		NormalComm:       CommEnableRxTx,
		NMComm:           CommEnableRxTx,
		sessionTimeoutMs: 5000,
	}
}

// Register binds a handler into event's chain at the given priority
// (spec §4.3). Handlers for 0x10/0x11/0x22/0x27/0x28/0x2E/0x2F/0x31/
// 0x36/0x37/0x38/0x3E live in the handlers package and call this during
// server construction.
func (s *Server) Register(event EventKind, priority uint8, name string, h Handler) {
	s.disp.Register(event, priority, name, h)
}

// eventForSID maps a request SID to its dispatcher event. Sub-function
// disambiguation for 0x27 (request-seed vs validate-key) happens in
// Handle, since it depends on payload content, not just the SID.
func eventForSID(sid uint8) (EventKind, bool) {
	switch uds.SID(sid) {
	case uds.SIDDiagnosticSessionControl:
		return EventSessionControl, true
	case uds.SIDECUReset:
		return EventECUReset, true
	case uds.SIDReadDataByIdentifier:
		return EventReadDataByIdentifier, true
	case uds.SIDWriteDataByIdentifier:
		return EventWriteDataByIdentifier, true
	case uds.SIDCommunicationControl:
		return EventCommunicationControl, true
	case uds.SIDIOControlByIdentifier:
		return EventIOControl, true
	case uds.SIDRoutineControl:
		return EventRoutineControl, true
	case uds.SIDTransferData:
		return EventTransferData, true
	case uds.SIDRequestTransferExit:
		return EventRequestTransferExit, true
	case uds.SIDRequestFileTransfer:
		return EventRequestFileTransfer, true
	case uds.SIDTesterPresent:
		return EventTesterPresent, true
	default:
		return 0, false
	}
}

// Handle processes one fully reassembled request PDU and returns the
// response frame to send back (spec §4.3 "request processing"). It never
// blocks; response-pending (0x78) repetition is the caller's
// responsibility (the loop keeps calling Handle/Poll until a handler
// resolves).
func (s *Server) Handle(payload []byte, functional bool, clientAddr string) []byte {
	if len(payload) == 0 {
		return nil
	}
	sid := payload[0]

	// SID 0x27 splits into two events by sub-function parity (spec
	// §4.4 "0x27"): odd = request seed, even = validate key.
	var event EventKind
	if uds.SID(sid) == uds.SIDSecurityAccess {
		if len(payload) < 2 {
			return negativeResponse(sid, uerr.NRCIncorrectMessageLength)
		}
		if payload[1]%2 == 1 {
			event = EventSecurityRequestSeed
		} else {
			event = EventSecurityValidateKey
		}
	} else {
		ev, ok := eventForSID(sid)
		if !ok {
			return negativeResponse(sid, uerr.NRCServiceNotSupported)
		}
		event = ev
	}

	ctx := &RequestContext{
		Server:     s,
		Event:      event,
		Payload:    payload,
		Functional: functional,
		ClientAddr: clientAddr,
		TxID:       xid.New().String(),
	}

	lc := logger.NewLogContext(clientAddr).WithEvent(event.String(), sid).WithTx(ctx.TxID)
	logCtx := logger.WithContext(context.Background(), lc)

	spanCtx, span := telemetry.StartRequestSpan(logCtx, ctx.TxID, sid, clientAddr, functional)
	span.SetAttributes(telemetry.Event(event.String()))
	defer span.End()

	result := s.disp.Dispatch(ctx)
	s.sink.OnRequest(event, result.outcome)

	switch {
	case result.outcome.IsHandled():
		logger.InfoCtx(logCtx, "request handled", logger.KeyEvent, result.handledBy)
		return result.outcome.Body()
	case result.outcome.IsError():
		nrc := result.outcome.NRCode()
		logger.WarnCtx(logCtx, "request rejected", logger.KeyNRC, uint8(nrc))
		span.SetAttributes(telemetry.NRC(uint8(nrc)))
		telemetry.RecordError(spanCtx, nrc)
		return negativeResponse(sid, uint8(nrc))
	default:
		// NotMine at chain end: if at least one observer engaged, the
		// spec treats that as "the event was acknowledged" and we stay
		// silent rather than NRC (spec §4.3 step 3). Otherwise the
		// service genuinely has no handler for this sub-function/DID.
		if len(result.observers) > 0 {
			return nil
		}
		span.SetAttributes(telemetry.NRC(uint8(uerr.NRCServiceNotSupported)))
		return negativeResponse(sid, uerr.NRCServiceNotSupported)
	}
}

func negativeResponse(sid uint8, nrc uint8) []byte {
	return []byte{0x7F, sid, nrc}
}

// ArmScheduledReset records that a reset of the given kind was accepted
// and should fire EventScheduledReset after delay (spec §6 "0x11"
// power-down delay).
func (s *Server) ArmScheduledReset(kind uint8, delay time.Duration) {
	s.PendingResetKind = kind
	s.pendingReset = time.Now().Add(delay)
	s.resetArmed = true
}

// PollScheduledReset checks whether an armed reset's delay has elapsed
// and, if so, dispatches EventScheduledReset exactly once.
func (s *Server) PollScheduledReset() []byte {
	if !s.resetArmed || time.Now().Before(s.pendingReset) {
		return nil
	}
	s.resetArmed = false
	ctx := &RequestContext{Server: s, Event: EventScheduledReset, TxID: xid.New().String()}
	result := s.disp.Dispatch(ctx)
	s.sink.OnRequest(EventScheduledReset, result.outcome)
	if result.outcome.IsHandled() {
		return result.outcome.Body()
	}
	return nil
}

// TouchSession resets the S3 session-timeout timer; callers invoke this
// on every request that the spec counts as session-keeping activity
// (spec §4.6).
func (s *Server) TouchSession() {
	s.sessionTimer = time.Now()
}

// PollSessionTimeout checks whether the session has gone quiet past the
// S3 deadline and, if so, dispatches EventSessionTimeout so handlers can
// revert session/security/comm state to their defaults.
func (s *Server) PollSessionTimeout() {
	if s.Session == uds.SessionDefault {
		return
	}
	if time.Since(s.sessionTimer) < time.Duration(s.sessionTimeoutMs)*time.Millisecond {
		return
	}
	ctx := &RequestContext{Server: s, Event: EventSessionTimeout, TxID: xid.New().String()}
	result := s.disp.Dispatch(ctx)
	s.sink.OnRequest(EventSessionTimeout, result.outcome)
	s.TouchSession()
}
