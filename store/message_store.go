package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/staynest/staynest-backend/types"
)

// MessageStore defines the durable read-state contract for direct messages.
type MessageStore interface {
	// Create persists a new message, assigning ID and CreatedAt.
	Create(ctx context.Context, message *types.Message) error
	// GetConversation returns all messages between two users, oldest first.
	GetConversation(ctx context.Context, userA, userB uuid.UUID) ([]types.Message, error)
	// GetUnread returns unread messages addressed to the receiver, newest first.
	GetUnread(ctx context.Context, receiverID uuid.UUID) ([]types.Message, error)
	// MarkRead marks one message read. Only the receiver may mark a message
	// read; ErrForbidden otherwise, ErrNotFound if the id does not exist.
	MarkRead(ctx context.Context, id int64, receiverID uuid.UUID) error
	// MarkConversationRead marks all unread messages from sender to receiver
	// as read and returns the number of rows affected.
	MarkConversationRead(ctx context.Context, senderID, receiverID uuid.UUID) (int64, error)
}
