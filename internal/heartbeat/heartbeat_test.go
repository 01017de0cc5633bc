package heartbeat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestThresholdTriggersDisconnectCallback(t *testing.T) {
	var downCalls int
	m := New(3, func() { downCalls++ })

	assert.False(t, m.Increment(IncrementTimeout))
	assert.False(t, m.Increment(IncrementTimeout))
	assert.True(t, m.Increment(IncrementTimeout))
	assert.False(t, m.Connected())
	assert.Equal(t, 1, downCalls)
}

func TestClearResetsCounterAndReconnects(t *testing.T) {
	var downCalls int
	m := New(3, func() { downCalls++ })

	m.Increment(IncrementTransportErr)
	m.Increment(IncrementTransportErr)
	m.Clear(ClearPositiveResponse)
	assert.Equal(t, 0, m.Failures())
	assert.True(t, m.Connected())

	m.Increment(IncrementTransportErr)
	m.Increment(IncrementTransportErr)
	assert.True(t, m.Connected())
}

func TestDisconnectCallbackFiresOnlyOnce(t *testing.T) {
	var downCalls int
	m := New(1, func() { downCalls++ })

	m.Increment(IncrementNegativeResponse)
	m.Increment(IncrementNegativeResponse)
	assert.Equal(t, 1, downCalls)
}

func TestDefaultThresholdUsedWhenZero(t *testing.T) {
	m := New(0, nil)
	for i := 0; i < DefaultThreshold-1; i++ {
		assert.False(t, m.Increment(IncrementTimeout))
	}
	assert.True(t, m.Increment(IncrementTimeout))
}
