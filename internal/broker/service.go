package broker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brainmap/realtime/internal/domain"
	"github.com/brainmap/realtime/internal/realtime"
)

// Service sits between the REST handlers and the repository, and pushes
// every change to the owner's live sessions through the hub.
type Service struct {
	repo   domain.NotificationRepository
	hub    *Hub
	logger *zap.Logger
}

func NewService(repo domain.NotificationRepository, hub *Hub, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, hub: hub, logger: logger}
}

func (s *Service) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.GetNotifications(ctx, userID, limit, offset)
}

func (s *Service) MarkRead(ctx context.Context, userID uuid.UUID, id string) (*domain.Notification, error) {
	return s.repo.MarkNotificationRead(ctx, userID, id)
}

// Respond stamps a decision on an actionable notification and marks it
// read.
func (s *Service) Respond(ctx context.Context, userID uuid.UUID, id, status string) (*domain.Notification, error) {
	switch status {
	case domain.StatusAccepted, domain.StatusRejected, domain.StatusCancelled, domain.StatusPending:
	default:
		return nil, domain.ErrInvalidStatus
	}
	return s.repo.UpdateNotificationStatus(ctx, userID, id, status)
}

// Publish persists a notification and pushes it to the recipient's live
// sessions.
func (s *Service) Publish(ctx context.Context, n *domain.Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	if err := s.repo.CreateNotification(ctx, n); err != nil {
		return err
	}

	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	s.hub.SendToUser(n.UserID, realtime.Frame{
		Type:    realtime.FrameNotification,
		Channel: realtime.UserChannel(n.UserID.String()),
		Payload: payload,
	})

	s.logger.Debug("notification published",
		zap.String("id", n.ID), zap.String("user_id", n.UserID.String()))
	return nil
}
