package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/staynest/staynest-backend/store"
	"github.com/staynest/staynest-backend/types"
)

// DB is the subset of pgxpool.Pool the stores need. Satisfied by
// *pgxpool.Pool and by pgxmock in tests.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Ensure pgNotificationStore implements store.NotificationStore.
var _ store.NotificationStore = (*pgNotificationStore)(nil)

type pgNotificationStore struct {
	db DB
}

// NewNotificationStore creates a new PostgreSQL notification store.
func NewNotificationStore(db DB) store.NotificationStore {
	return &pgNotificationStore{db: db}
}

// Create inserts a new notification. ID and CreatedAt are assigned by the
// database and written back into n.
func (s *pgNotificationStore) Create(ctx context.Context, n *types.Notification) error {
	query := `INSERT INTO notifications (user_id, title, body, type, is_read, created_at, action_url, action_label)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	          RETURNING id, created_at`

	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	err := s.db.QueryRow(ctx, query,
		n.UserID,
		n.Title,
		n.Body,
		n.Type,
		n.IsRead,
		n.CreatedAt,
		n.ActionURL,
		n.ActionLabel,
	).Scan(&n.ID, &n.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// GetByID retrieves a notification by its ID.
func (s *pgNotificationStore) GetByID(ctx context.Context, id int64) (*types.Notification, error) {
	query := `SELECT id, user_id, title, body, type, is_read, created_at, action_url, action_label
	          FROM notifications
	          WHERE id = $1`

	n := &types.Notification{}
	err := s.db.QueryRow(ctx, query, id).Scan(
		&n.ID, &n.UserID, &n.Title, &n.Body, &n.Type, &n.IsRead, &n.CreatedAt, &n.ActionURL, &n.ActionLabel,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("notification %d not found: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get notification by id: %w", err)
	}
	return n, nil
}

// GetByUser retrieves notifications for a user with pagination and status filtering.
func (s *pgNotificationStore) GetByUser(ctx context.Context, userID uuid.UUID, limit, offset int, status *bool) ([]types.Notification, error) {
	baseQuery := `SELECT id, user_id, title, body, type, is_read, created_at, action_url, action_label
	              FROM notifications
	              WHERE user_id = $1`
	args := []any{userID}
	argCount := 1

	if status != nil {
		argCount++
		baseQuery += fmt.Sprintf(" AND is_read = $%d", argCount)
		args = append(args, *status)
	}

	argCount++
	baseQuery += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", argCount)
	args = append(args, limit)

	argCount++
	baseQuery += fmt.Sprintf(" OFFSET $%d", argCount)
	args = append(args, offset)

	rows, err := s.db.Query(ctx, baseQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications by user: %w", err)
	}
	defer rows.Close()

	return scanNotifications(rows)
}

// GetUnread retrieves all unread notifications for a user, newest first.
func (s *pgNotificationStore) GetUnread(ctx context.Context, userID uuid.UUID) ([]types.Notification, error) {
	query := `SELECT id, user_id, title, body, type, is_read, created_at, action_url, action_label
	          FROM notifications
	          WHERE user_id = $1 AND is_read = FALSE
	          ORDER BY created_at DESC`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query unread notifications: %w", err)
	}
	defer rows.Close()

	return scanNotifications(rows)
}

// GetUnreadCount retrieves the count of unread notifications for a user.
func (s *pgNotificationStore) GetUnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	query := `SELECT COUNT(*)
	          FROM notifications
	          WHERE user_id = $1 AND is_read = FALSE`

	var count int64
	err := s.db.QueryRow(ctx, query, userID).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get unread notification count: %w", err)
	}

	return count, nil
}

// MarkRead marks a single notification as read for a specific user.
// The false -> true transition is the only mutation allowed; marking an
// already-read notification is a no-op, not an error.
func (s *pgNotificationStore) MarkRead(ctx context.Context, id int64, userID uuid.UUID) error {
	query := `UPDATE notifications
	          SET is_read = TRUE
	          WHERE id = $1 AND user_id = $2 AND is_read = FALSE`

	cmdTag, err := s.db.Exec(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification as read: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		// Distinguish missing, foreign, and already-read.
		ownerCheckQuery := `SELECT user_id FROM notifications WHERE id = $1`
		var ownerID uuid.UUID
		if ownerErr := s.db.QueryRow(ctx, ownerCheckQuery, id).Scan(&ownerID); ownerErr != nil {
			if errors.Is(ownerErr, pgx.ErrNoRows) {
				return fmt.Errorf("cannot mark notification %d as read: %w", id, store.ErrNotFound)
			}
			return fmt.Errorf("failed to check notification owner: %w", ownerErr)
		}
		if ownerID != userID {
			return fmt.Errorf("user %s not authorized to mark notification %d as read: %w", userID, id, store.ErrForbidden)
		}
		// Owner is correct and RowsAffected is 0: it was already read.
	}

	return nil
}

// MarkAllRead marks all unread notifications as read for a specific user.
func (s *pgNotificationStore) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	query := `UPDATE notifications
	          SET is_read = TRUE
	          WHERE user_id = $1 AND is_read = FALSE`

	cmdTag, err := s.db.Exec(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark all notifications as read: %w", err)
	}

	return cmdTag.RowsAffected(), nil
}

func scanNotifications(rows pgx.Rows) ([]types.Notification, error) {
	notifications := []types.Notification{}
	for rows.Next() {
		var n types.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Body, &n.Type, &n.IsRead, &n.CreatedAt, &n.ActionURL, &n.ActionLabel); err != nil {
			return nil, fmt.Errorf("failed to scan notification row: %w", err)
		}
		notifications = append(notifications, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration for notifications: %w", err)
	}

	return notifications, nil
}
