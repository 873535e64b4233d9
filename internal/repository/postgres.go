package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brainmap/realtime/internal/domain"
)

// PostgresRepository implements domain.NotificationRepository using
// PostgreSQL
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CreateNotification persists a new notification
func (r *PostgresRepository) CreateNotification(ctx context.Context, n *domain.Notification) error {
	query := `
		INSERT INTO notifications (id, user_id, type, title, body, data, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Exec(ctx, query,
		n.ID,
		n.UserID,
		n.Type,
		n.Title,
		n.Body,
		n.Data,
		n.IsRead,
		n.CreatedAt,
	)
	return err
}

// GetNotifications returns a user's notifications, newest first
func (r *PostgresRepository) GetNotifications(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Notification, error) {
	query := `
		SELECT id, user_id, type, title, body, data, is_read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifs []*domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifs = append(notifs, n)
	}
	return notifs, rows.Err()
}

// MarkNotificationRead flags a notification read and returns the updated
// row
func (r *PostgresRepository) MarkNotificationRead(ctx context.Context, userID uuid.UUID, id string) (*domain.Notification, error) {
	query := `
		UPDATE notifications
		SET is_read = TRUE
		WHERE id = $1 AND user_id = $2
		RETURNING id, user_id, type, title, body, data, is_read, created_at
	`
	row := r.db.QueryRow(ctx, query, id, userID)
	return scanNotificationRow(row)
}

// UpdateNotificationStatus stamps a decision status into the opaque data
// payload and marks the entry read
func (r *PostgresRepository) UpdateNotificationStatus(ctx context.Context, userID uuid.UUID, id, status string) (*domain.Notification, error) {
	query := `
		UPDATE notifications
		SET is_read = TRUE,
		    data = jsonb_set(COALESCE(data, '{}'::jsonb), '{status}', to_jsonb($3::text))
		WHERE id = $1 AND user_id = $2
		RETURNING id, user_id, type, title, body, data, is_read, created_at
	`
	row := r.db.QueryRow(ctx, query, id, userID, status)
	return scanNotificationRow(row)
}

func scanNotificationRow(row pgx.Row) (*domain.Notification, error) {
	var n domain.Notification
	err := row.Scan(
		&n.ID,
		&n.UserID,
		&n.Type,
		&n.Title,
		&n.Body,
		&n.Data,
		&n.IsRead,
		&n.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotificationNotFound
		}
		return nil, err
	}
	return &n, nil
}

func scanNotification(rows pgx.Rows) (*domain.Notification, error) {
	var n domain.Notification
	err := rows.Scan(
		&n.ID,
		&n.UserID,
		&n.Type,
		&n.Title,
		&n.Body,
		&n.Data,
		&n.IsRead,
		&n.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &n, nil
}
