package realtime

import "time"

const (
	baseReconnectDelay = 1 * time.Second
	maxReconnectDelay  = 30 * time.Second
)

// reconnectDelay returns the wait before reconnect attempt n (1-indexed):
// min(30s, 2^n seconds). Attempts are unbounded; the cap keeps long-lived
// sessions retrying at a steady rate.
func reconnectDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := baseReconnectDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= maxReconnectDelay {
			return maxReconnectDelay
		}
	}
	return d
}
