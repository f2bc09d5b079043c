package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/staynest/staynest-backend/errors"
	"github.com/staynest/staynest-backend/internal/delivery"
	"github.com/staynest/staynest-backend/logger"
	"github.com/staynest/staynest-backend/store"
	"github.com/staynest/staynest-backend/types"
)

const maxMessageLength = 4000

// MessageService owns direct-message lifecycle. Like notifications, a message
// is durable before any push goes out, and push failures never surface to the
// sender.
type MessageService struct {
	store        store.MessageStore
	notification *NotificationService
	publisher    delivery.Publisher
	pool         *WorkerPool
	log          *zap.SugaredLogger
}

// NewMessageService creates a message service. notificationService may be nil
// to disable the companion notification on new messages.
func NewMessageService(
	messageStore store.MessageStore,
	notificationService *NotificationService,
	publisher delivery.Publisher,
	pool *WorkerPool,
) *MessageService {
	return &MessageService{
		store:        messageStore,
		notification: notificationService,
		publisher:    publisher,
		pool:         pool,
		log:          logger.GetLogger().Named("message_service"),
	}
}

// Send persists a message from senderID and pushes it to the receiver's live
// connections. The sender's other open sessions receive the same event so the
// conversation stays consistent across tabs. A companion notification is
// created for the receiver when the notification service is wired.
func (s *MessageService) Send(ctx context.Context, senderID uuid.UUID, req types.SendMessageRequest) (*types.Message, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, apperrors.ValidationFailed("invalid message", "content is required")
	}
	if len(content) > maxMessageLength {
		return nil, apperrors.ValidationFailed("invalid message", fmt.Sprintf("content exceeds %d characters", maxMessageLength))
	}
	if senderID == req.ReceiverID {
		return nil, apperrors.ValidationFailed("invalid message", "cannot send a message to yourself")
	}

	message := &types.Message{
		SenderID:   senderID,
		ReceiverID: req.ReceiverID,
		Content:    content,
	}

	if err := s.store.Create(ctx, message); err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	s.pushMessageAsync("message-created", types.EventTypeMessageCreated, req.ReceiverID, message)
	s.pushMessageAsync("message-created-echo", types.EventTypeMessageCreated, senderID, message)

	if s.notification != nil {
		if _, err := s.notification.Create(ctx, types.CreateNotificationRequest{
			UserID: req.ReceiverID,
			Title:  "New message",
			Body:   truncate(content, 140),
			Type:   types.NotificationTypeMessage,
		}); err != nil {
			s.log.Warnw("Failed to create companion notification for message",
				"messageID", message.ID,
				"receiverID", req.ReceiverID,
				"error", err)
		}
	}

	return message, nil
}

// GetConversation returns all messages between the two users, oldest first.
func (s *MessageService) GetConversation(ctx context.Context, userA, userB uuid.UUID) ([]types.Message, error) {
	return s.store.GetConversation(ctx, userA, userB)
}

// GetUnread returns unread messages addressed to the user, newest first.
func (s *MessageService) GetUnread(ctx context.Context, receiverID uuid.UUID) ([]types.Message, error) {
	return s.store.GetUnread(ctx, receiverID)
}

// MarkRead marks one message read on behalf of its receiver and pushes a read
// receipt to the receiver's other live sessions.
func (s *MessageService) MarkRead(ctx context.Context, id int64, receiverID uuid.UUID) error {
	if err := s.store.MarkRead(ctx, id, receiverID); err != nil {
		return err
	}

	s.pushMessageAsync("message-read", types.EventTypeMessageRead, receiverID, types.ReadReceiptPayload{
		RecordID: id,
		ReaderID: receiverID.String(),
	})

	return nil
}

// MarkConversationRead marks every unread message from senderID to receiverID
// as read and returns the number affected. Read receipts go both to the
// receiver's other sessions and to the sender, so the sender sees the
// conversation was read.
func (s *MessageService) MarkConversationRead(ctx context.Context, senderID, receiverID uuid.UUID) (int64, error) {
	affected, err := s.store.MarkConversationRead(ctx, senderID, receiverID)
	if err != nil {
		return 0, err
	}

	if affected > 0 {
		receipt := types.ReadReceiptPayload{
			ReaderID: receiverID.String(),
			All:      true,
		}
		s.pushMessageAsync("conversation-read", types.EventTypeMessageRead, receiverID, receipt)
		s.pushMessageAsync("conversation-read-receipt", types.EventTypeMessageRead, senderID, receipt)
	}

	return affected, nil
}

// pushMessageAsync wraps the shared push helper with uuid recipients.
func (s *MessageService) pushMessageAsync(name string, eventType types.EventType, recipientID uuid.UUID, payload interface{}) {
	pushViaPool(s.pool, s.publisher, s.log, name, eventType, recipientID.String(), payload)
}

// truncate shortens s to at most n bytes, appending an ellipsis when cut.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
