package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReconnectDelaySchedule(t *testing.T) {
	want := []time.Duration{
		2 * time.Second,  // attempt 1
		4 * time.Second,  // attempt 2
		8 * time.Second,  // attempt 3
		16 * time.Second, // attempt 4
		30 * time.Second, // attempt 5, capped
		30 * time.Second, // stays capped
	}
	for i, d := range want {
		assert.Equal(t, d, reconnectDelay(i+1), "attempt %d", i+1)
	}
}

func TestReconnectDelayNonDecreasing(t *testing.T) {
	prev := time.Duration(0)
	for attempt := 1; attempt <= 20; attempt++ {
		d := reconnectDelay(attempt)
		assert.GreaterOrEqual(t, d, prev, "attempt %d", attempt)
		assert.LessOrEqual(t, d, maxReconnectDelay)
		prev = d
	}
}

func TestReconnectDelayClampsBadInput(t *testing.T) {
	assert.Equal(t, 2*time.Second, reconnectDelay(0))
	assert.Equal(t, 2*time.Second, reconnectDelay(-3))
}
