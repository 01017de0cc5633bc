package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureOutput redirects logger output to a buffer for testing.
func captureOutput() (*bytes.Buffer, func()) {
	buf := new(bytes.Buffer)

	mu.Lock()
	originalOutput := output
	originalColor := useColor
	output = buf
	useColor = false
	mu.Unlock()

	reconfigure()

	cleanup := func() {
		mu.Lock()
		output = originalOutput
		useColor = originalColor
		mu.Unlock()
		reconfigure()
	}

	return buf, cleanup
}

func TestLevelFiltering(t *testing.T) {
	t.Run("DebugLevelShowsAllMessages", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("DEBUG")

		Debug("debug message")
		Info("info message")
		Warn("warn message")
		Error("error message")

		out := buf.String()
		assert.Contains(t, out, "debug message")
		assert.Contains(t, out, "info message")
		assert.Contains(t, out, "warn message")
		assert.Contains(t, out, "error message")
	})

	t.Run("WarnLevelHidesDebugAndInfo", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("WARN")

		Debug("debug message")
		Info("info message")
		Warn("warn message")

		out := buf.String()
		assert.NotContains(t, out, "debug message")
		assert.NotContains(t, out, "info message")
		assert.Contains(t, out, "warn message")

		SetLevel("INFO")
	})
}

func TestJSONFormat(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetFormat("json")
	defer SetFormat("text")

	Info("dispatch complete", KeyEvent, "RDBI", KeyNRC, 0)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "dispatch complete", entry["msg"])
	assert.Equal(t, "RDBI", entry[KeyEvent])
}

func TestContextLogging(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()
	SetFormat("json")
	defer SetFormat("text")

	lc := NewLogContext("can0")
	lc = lc.WithEvent("SecurityValidateKey", 0x27)
	lc = lc.WithSession("extended", 1)
	ctx := WithContext(context.Background(), lc)

	InfoCtx(ctx, "validated key")

	out := buf.String()
	assert.True(t, strings.Contains(out, "validated key"))
	assert.True(t, strings.Contains(out, KeyEvent))
	assert.True(t, strings.Contains(out, KeySession))
}

func TestLogContextClone(t *testing.T) {
	lc := &LogContext{TxID: "tx-1", Event: "RDBI", ClientAddr: "can0"}
	clone := lc.Clone()
	require.NotNil(t, clone)

	assert.Equal(t, lc.TxID, clone.TxID)
	assert.Equal(t, lc.Event, clone.Event)

	clone.Event = "WDBI"
	assert.Equal(t, "RDBI", lc.Event) // original unchanged
}

func TestWithEventAndSession(t *testing.T) {
	lc := NewLogContext("can0")

	withEvent := lc.WithEvent("RDBI", 0x22)
	assert.Equal(t, "RDBI", withEvent.Event)
	assert.Equal(t, uint8(0x22), withEvent.SID)
	assert.Equal(t, "", lc.Event) // original unchanged

	withSession := lc.WithSession("programming", 3)
	assert.Equal(t, "programming", withSession.Session)
	assert.Equal(t, uint8(3), withSession.SecurityLevel)
}

func TestFromContextNil(t *testing.T) {
	assert.Nil(t, FromContext(nil))
	assert.Nil(t, FromContext(context.Background()))
}
