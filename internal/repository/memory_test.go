package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brainmap/realtime/internal/domain"
)

func seed(t *testing.T, r *MemoryRepository, userID uuid.UUID, id string, createdAt time.Time) {
	t.Helper()
	require.NoError(t, r.CreateNotification(context.Background(), &domain.Notification{
		ID:        id,
		UserID:    userID,
		Type:      domain.TypeAlert,
		Title:     "n-" + id,
		CreatedAt: createdAt,
	}))
}

func TestMemoryGetNotificationsFiltersAndSorts(t *testing.T) {
	r := NewMemoryRepository()
	userID := uuid.New()
	otherID := uuid.New()
	base := time.Now()

	seed(t, r, userID, "old", base.Add(-2*time.Hour))
	seed(t, r, userID, "new", base)
	seed(t, r, otherID, "other", base)

	got, err := r.GetNotifications(context.Background(), userID, 10, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "new", got[0].ID)
	assert.Equal(t, "old", got[1].ID)
}

func TestMemoryLimitOffset(t *testing.T) {
	r := NewMemoryRepository()
	userID := uuid.New()
	base := time.Now()
	for i := 0; i < 5; i++ {
		seed(t, r, userID, string(rune('a'+i)), base.Add(time.Duration(i)*time.Minute))
	}

	got, err := r.GetNotifications(context.Background(), userID, 2, 1)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "d", got[0].ID)
	assert.Equal(t, "c", got[1].ID)

	got, err = r.GetNotifications(context.Background(), userID, 10, 99)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryMarkNotificationRead(t *testing.T) {
	r := NewMemoryRepository()
	userID := uuid.New()
	seed(t, r, userID, "a", time.Now())

	n, err := r.MarkNotificationRead(context.Background(), userID, "a")
	require.NoError(t, err)
	assert.True(t, n.IsRead)

	_, err = r.MarkNotificationRead(context.Background(), userID, "missing")
	assert.ErrorIs(t, err, domain.ErrNotificationNotFound)

	// a different user cannot touch the entry
	_, err = r.MarkNotificationRead(context.Background(), uuid.New(), "a")
	assert.ErrorIs(t, err, domain.ErrNotificationNotFound)
}

func TestMemoryUpdateNotificationStatus(t *testing.T) {
	r := NewMemoryRepository()
	userID := uuid.New()
	seed(t, r, userID, "req", time.Now())

	n, err := r.UpdateNotificationStatus(context.Background(), userID, "req", domain.StatusAccepted)
	require.NoError(t, err)
	assert.True(t, n.IsRead)
	assert.Equal(t, domain.StatusAccepted, n.Data[domain.DataKeyStatus])
}

func TestMemoryReturnsCopies(t *testing.T) {
	r := NewMemoryRepository()
	userID := uuid.New()
	seed(t, r, userID, "a", time.Now())

	got, err := r.GetNotifications(context.Background(), userID, 10, 0)
	require.NoError(t, err)
	got[0].Title = "mutated"

	again, err := r.GetNotifications(context.Background(), userID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, "n-a", again[0].Title)
}
