package logger

// Standard field keys for structured logging across the UDS client and server.
// Use these keys consistently so log lines can be aggregated and queried.
const (
	// ========================================================================
	// Transaction / dispatch identity
	// ========================================================================
	KeyTxID  = "tx_id"  // client transaction id (rs/xid)
	KeyEvent = "event"  // dispatcher event kind (SessionControl, RDBI, ...)
	KeySID   = "sid"    // UDS service identifier
	KeyRSID  = "rsid"   // response service identifier (SID + 0x40)
	KeyNRC   = "nrc"    // negative response code

	// ========================================================================
	// Session / security state
	// ========================================================================
	KeySession       = "session"        // default, programming, extended
	KeySecurityLevel = "security_level" // 0 = locked
	KeyP2            = "p2_ms"
	KeyP2Star        = "p2_star_ms"

	// ========================================================================
	// Addressing
	// ========================================================================
	KeyClientAddr = "client_addr"
	KeyPhysSrc    = "phys_source"
	KeyPhysDst    = "phys_target"
	KeyFuncSrc    = "func_source"
	KeyFunctional = "is_functional"

	// ========================================================================
	// Data identifiers
	// ========================================================================
	KeyDID = "did"
	KeyRID = "rid"

	// ========================================================================
	// File transfer
	// ========================================================================
	KeyPath       = "path"
	KeyMode       = "mode" // Idle, Writing, Reading
	KeyTotalSize  = "total_size"
	KeyCurrentPos = "current_pos"
	KeyCRC        = "crc32"
	KeySeq        = "sequence"
	KeyBlockLen   = "block_len"

	// ========================================================================
	// Heartbeat / liveness
	// ========================================================================
	KeyFailCount  = "heartbeat_fail_count"
	KeyThreshold  = "heartbeat_threshold"
	KeyDurationMs = "duration_ms"
)
