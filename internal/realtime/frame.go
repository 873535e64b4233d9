package realtime

import (
	"encoding/json"
	"fmt"
)

// Frame types exchanged with the broker over the websocket.
const (
	FrameSubscribe    = "subscribe"
	FrameSubscribed   = "subscribed"
	FrameNotification = "notification"
	FrameError        = "error"
)

// Frame is the JSON wire envelope for broker messages.
type Frame struct {
	Type    string          `json:"type"`
	Channel string          `json:"channel,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Message string          `json:"message,omitempty"`
}

// UserChannel returns the per-user notification queue name.
func UserChannel(userID string) string {
	return fmt.Sprintf("/user/%s/queue/notifications", userID)
}
