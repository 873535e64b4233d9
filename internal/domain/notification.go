package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Notification types
const (
	TypeAlert          = "ALERT"
	TypeMessage        = "MESSAGE"
	TypeProjectRequest = "PROJECT_REQUEST"
)

// Decision statuses for actionable notifications. CANCELLED is distinct
// from PENDING: PENDING always means "awaiting a decision".
const (
	StatusPending   = "PENDING"
	StatusAccepted  = "ACCEPTED"
	StatusRejected  = "REJECTED"
	StatusCancelled = "CANCELLED"
)

// Keys the backend may embed in Notification.Data for actionable entries.
const (
	DataKeyActionURL    = "actionUrl"
	DataKeyActionMethod = "actionMethod"
	DataKeyStatus       = "status"
)

type Notification struct {
	ID        string    `json:"id"`
	UserID    uuid.UUID `json:"user_id,omitempty"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Body      string    `json:"body,omitempty"`
	Data      Map       `json:"data,omitempty"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// Map alias for the opaque JSON payload
type Map map[string]interface{}

// Clone returns a copy safe for snapshot/rollback: the Data map is copied
// so later stamps on the live entry do not leak into the snapshot.
func (n Notification) Clone() Notification {
	if n.Data != nil {
		data := make(Map, len(n.Data))
		for k, v := range n.Data {
			data[k] = v
		}
		n.Data = data
	}
	return n
}

// IsActionable reports whether the entry represents a request awaiting a
// decision rather than a plain alert.
func (n Notification) IsActionable() bool {
	return n.Type == TypeProjectRequest
}

type NotificationRepository interface {
	CreateNotification(ctx context.Context, n *Notification) error
	GetNotifications(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Notification, error)
	MarkNotificationRead(ctx context.Context, userID uuid.UUID, id string) (*Notification, error)
	UpdateNotificationStatus(ctx context.Context, userID uuid.UUID, id, status string) (*Notification, error)
}
