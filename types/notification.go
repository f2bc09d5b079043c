package types

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType is the category of a notification.
type NotificationType string

const (
	NotificationTypeSystem  NotificationType = "system"
	NotificationTypeBooking NotificationType = "booking"
	NotificationTypeReview  NotificationType = "review"
	NotificationTypeMessage NotificationType = "message"
)

// Valid reports whether t is one of the known notification categories.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationTypeSystem, NotificationTypeBooking, NotificationTypeReview, NotificationTypeMessage:
		return true
	}
	return false
}

// Notification is a durable user notification. ID, UserID and CreatedAt are
// immutable after creation; IsRead only ever transitions false -> true.
type Notification struct {
	ID          int64            `json:"id" db:"id"`
	UserID      uuid.UUID        `json:"userId" db:"user_id"`
	Title       string           `json:"title" db:"title"`
	Body        string           `json:"body" db:"body"`
	Type        NotificationType `json:"type" db:"type"`
	IsRead      bool             `json:"isRead" db:"is_read"`
	CreatedAt   time.Time        `json:"createdAt" db:"created_at"`
	ActionURL   *string          `json:"actionUrl,omitempty" db:"action_url"`
	ActionLabel *string          `json:"actionLabel,omitempty" db:"action_label"`
}

// CreateNotificationRequest is the input for creating a notification from a
// domain action (new booking, new review, incoming message, system notice).
type CreateNotificationRequest struct {
	UserID      uuid.UUID        `json:"userId" binding:"required"`
	Title       string           `json:"title" binding:"required"`
	Body        string           `json:"body" binding:"required"`
	Type        NotificationType `json:"type" binding:"required"`
	ActionURL   *string          `json:"actionUrl,omitempty"`
	ActionLabel *string          `json:"actionLabel,omitempty"`
}
