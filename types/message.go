package types

import (
	"time"

	"github.com/google/uuid"
)

// Message is a durable direct message between two users.
type Message struct {
	ID         int64     `json:"id" db:"id"`
	SenderID   uuid.UUID `json:"senderId" db:"sender_id"`
	ReceiverID uuid.UUID `json:"receiverId" db:"receiver_id"`
	Content    string    `json:"content" db:"content"`
	IsRead     bool      `json:"isRead" db:"is_read"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
}

// SendMessageRequest is the input for sending a direct message.
type SendMessageRequest struct {
	ReceiverID uuid.UUID `json:"receiverId" binding:"required"`
	Content    string    `json:"content" binding:"required"`
}
