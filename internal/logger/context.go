package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds request/transaction-scoped logging context.
type LogContext struct {
	TxID          string    // client transaction id (rs/xid), empty on the server side
	Event         string    // dispatcher event kind (SessionControl, RDBI, ...)
	SID           uint8     // UDS service identifier of the current request
	Session       string    // server session type: default, programming, extended
	SecurityLevel uint8     // server security level (0 = locked)
	ClientAddr    string    // peer address, when the transport binding reports one
	StartTime     time.Time // for duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext with the given client address.
func NewLogContext(clientAddr string) *LogContext {
	return &LogContext{
		ClientAddr: clientAddr,
		StartTime:  time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	clone := *lc
	return &clone
}

// WithEvent returns a copy with the dispatcher event kind set
func (lc *LogContext) WithEvent(event string, sid uint8) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Event = event
		clone.SID = sid
	}
	return clone
}

// WithSession returns a copy with session/security state set
func (lc *LogContext) WithSession(session string, securityLevel uint8) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Session = session
		clone.SecurityLevel = securityLevel
	}
	return clone
}

// WithTx returns a copy with the client transaction id set
func (lc *LogContext) WithTx(txID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TxID = txID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
