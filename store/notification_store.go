package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/staynest/staynest-backend/types"
)

// NotificationStore defines the durable read-state contract for notifications.
// Implementations are expected to be transactionally consistent; callers treat
// them as a black box.
type NotificationStore interface {
	// Create persists a new notification, assigning ID and CreatedAt.
	Create(ctx context.Context, notification *types.Notification) error
	GetByID(ctx context.Context, id int64) (*types.Notification, error)
	// GetByUser retrieves notifications for a user ordered by creation date
	// descending, with pagination and optional read-status filtering.
	GetByUser(ctx context.Context, userID uuid.UUID, limit, offset int, status *bool) ([]types.Notification, error)
	// GetUnread retrieves all unread notifications for a user, newest first.
	GetUnread(ctx context.Context, userID uuid.UUID) ([]types.Notification, error)
	GetUnreadCount(ctx context.Context, userID uuid.UUID) (int64, error)
	// MarkRead marks one notification read. Returns ErrNotFound if the id does
	// not exist and ErrForbidden if it belongs to another user. Marking an
	// already-read notification is not an error.
	MarkRead(ctx context.Context, id int64, userID uuid.UUID) error
	// MarkAllRead marks every unread notification for the user as read and
	// returns the number of rows affected.
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
}
