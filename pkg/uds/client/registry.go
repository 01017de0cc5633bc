package client

// ResponseHandler processes one response frame dispatched by SID (spec
// §4.7). It receives the full receive buffer, SID byte included.
type ResponseHandler func(payload []byte)

// ResponseRegistry is an append-only mapping from response SID (the first
// payload byte) to a single handler. Registering the same SID twice
// overwrites the previous entry (spec §4.7).
type ResponseRegistry struct {
	handlers map[byte]ResponseHandler
}

// NewResponseRegistry returns an empty registry.
func NewResponseRegistry() *ResponseRegistry {
	return &ResponseRegistry{handlers: make(map[byte]ResponseHandler)}
}

// Register binds handler to the given response SID, overwriting any
// existing binding.
func (r *ResponseRegistry) Register(sid byte, handler ResponseHandler) {
	r.handlers[sid] = handler
}

// Dispatch invokes the handler bound to payload's first byte, if any. It
// reports whether a handler was found.
func (r *ResponseRegistry) Dispatch(payload []byte) bool {
	if len(payload) == 0 {
		return false
	}
	h, ok := r.handlers[payload[0]]
	if !ok {
		return false
	}
	h(payload)
	return true
}
