package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/brainmap/realtime/internal/domain"
)

// MemoryRepository is the in-memory domain.NotificationRepository used by
// brokerd when no database is configured, and by tests.
type MemoryRepository struct {
	mu    sync.RWMutex
	byID  map[string]*domain.Notification
	order []string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[string]*domain.Notification)}
}

func (r *MemoryRepository) CreateNotification(_ context.Context, n *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := n.Clone()
	r.byID[n.ID] = &clone
	r.order = append(r.order, n.ID)
	return nil
}

func (r *MemoryRepository) GetNotifications(_ context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var notifs []*domain.Notification
	for _, id := range r.order {
		n := r.byID[id]
		if n.UserID != userID {
			continue
		}
		clone := n.Clone()
		notifs = append(notifs, &clone)
	}

	sort.SliceStable(notifs, func(i, j int) bool {
		return notifs[i].CreatedAt.After(notifs[j].CreatedAt)
	})

	if offset >= len(notifs) {
		return nil, nil
	}
	notifs = notifs[offset:]
	if limit > 0 && limit < len(notifs) {
		notifs = notifs[:limit]
	}
	return notifs, nil
}

func (r *MemoryRepository) MarkNotificationRead(_ context.Context, userID uuid.UUID, id string) (*domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.byID[id]
	if !ok || n.UserID != userID {
		return nil, domain.ErrNotificationNotFound
	}
	n.IsRead = true
	clone := n.Clone()
	return &clone, nil
}

func (r *MemoryRepository) UpdateNotificationStatus(_ context.Context, userID uuid.UUID, id, status string) (*domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.byID[id]
	if !ok || n.UserID != userID {
		return nil, domain.ErrNotificationNotFound
	}
	n.IsRead = true
	if n.Data == nil {
		n.Data = domain.Map{}
	}
	n.Data[domain.DataKeyStatus] = status
	clone := n.Clone()
	return &clone, nil
}
