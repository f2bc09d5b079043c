package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	apperrors "github.com/staynest/staynest-backend/errors"
	"github.com/staynest/staynest-backend/internal/delivery"
	"github.com/staynest/staynest-backend/logger"
	"github.com/staynest/staynest-backend/store"
	"github.com/staynest/staynest-backend/types"
)

// unreadCountKey is the Redis key holding a user's cached unread notification count.
func unreadCountKey(userID uuid.UUID) string {
	return fmt.Sprintf("unread_count:notifications:%s", userID)
}

// NotificationService owns notification lifecycle: durable persistence first,
// then best-effort push to the recipient's live connections. Push side effects
// run asynchronously on the worker pool and never fail the triggering call.
type NotificationService struct {
	store     store.NotificationStore
	publisher delivery.Publisher
	pool      *WorkerPool
	redis     *redis.Client
	cacheTTL  time.Duration
	log       *zap.SugaredLogger
}

// NewNotificationService creates a notification service. redisClient may be
// nil, in which case unread counts are always read from the store.
func NewNotificationService(
	notificationStore store.NotificationStore,
	publisher delivery.Publisher,
	pool *WorkerPool,
	redisClient *redis.Client,
	cacheTTL time.Duration,
) *NotificationService {
	return &NotificationService{
		store:     notificationStore,
		publisher: publisher,
		pool:      pool,
		redis:     redisClient,
		cacheTTL:  cacheTTL,
		log:       logger.GetLogger().Named("notification_service"),
	}
}

// Create persists a notification and pushes it to the recipient's live
// connections. Persistence failures are returned to the caller; push delivery
// is fire-and-forget.
func (s *NotificationService) Create(ctx context.Context, req types.CreateNotificationRequest) (*types.Notification, error) {
	if !req.Type.Valid() {
		return nil, apperrors.ValidationFailed("invalid notification type", string(req.Type))
	}

	notification := &types.Notification{
		UserID:      req.UserID,
		Title:       req.Title,
		Body:        req.Body,
		Type:        req.Type,
		ActionURL:   req.ActionURL,
		ActionLabel: req.ActionLabel,
	}

	if err := s.store.Create(ctx, notification); err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}

	s.invalidateUnreadCount(ctx, req.UserID)
	s.pushAsync("notification-created", types.EventTypeNotificationCreated, req.UserID.String(), notification)

	return notification, nil
}

// GetForUser returns the user's notifications newest first, paginated, with an
// optional read-status filter.
func (s *NotificationService) GetForUser(ctx context.Context, userID uuid.UUID, limit, offset int, status *bool) ([]types.Notification, error) {
	return s.store.GetByUser(ctx, userID, limit, offset, status)
}

// GetUnread returns all unread notifications for the user, newest first.
func (s *NotificationService) GetUnread(ctx context.Context, userID uuid.UUID) ([]types.Notification, error) {
	return s.store.GetUnread(ctx, userID)
}

// GetUnreadCount returns the user's unread notification count, served from the
// Redis cache when fresh. Cache failures fall through to the store.
func (s *NotificationService) GetUnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	if s.redis != nil {
		cached, err := s.redis.Get(ctx, unreadCountKey(userID)).Result()
		if err == nil {
			if count, parseErr := strconv.ParseInt(cached, 10, 64); parseErr == nil {
				return count, nil
			}
		} else if err != redis.Nil {
			s.log.Warnw("Unread count cache read failed",
				"userID", userID,
				"error", err)
		}
	}

	count, err := s.store.GetUnreadCount(ctx, userID)
	if err != nil {
		return 0, err
	}

	if s.redis != nil {
		if err := s.redis.Set(ctx, unreadCountKey(userID), count, s.cacheTTL).Err(); err != nil {
			s.log.Warnw("Unread count cache write failed",
				"userID", userID,
				"error", err)
		}
	}

	return count, nil
}

// MarkRead marks one notification read on behalf of userID and pushes a read
// receipt to the user's other live sessions so their badges reconcile.
func (s *NotificationService) MarkRead(ctx context.Context, id int64, userID uuid.UUID) error {
	if err := s.store.MarkRead(ctx, id, userID); err != nil {
		return err
	}

	s.invalidateUnreadCount(ctx, userID)
	s.pushAsync("notification-read", types.EventTypeNotificationRead, userID.String(), types.ReadReceiptPayload{
		RecordID: id,
		ReaderID: userID.String(),
	})

	return nil
}

// MarkAllRead marks every unread notification for userID as read and returns
// the number affected. A read receipt with the All flag is pushed to the
// user's live sessions.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	affected, err := s.store.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, err
	}

	s.invalidateUnreadCount(ctx, userID)
	if affected > 0 {
		s.pushAsync("notification-read-all", types.EventTypeNotificationRead, userID.String(), types.ReadReceiptPayload{
			ReaderID: userID.String(),
			All:      true,
		})
	}

	return affected, nil
}

// invalidateUnreadCount drops the cached count after any write that changes it.
func (s *NotificationService) invalidateUnreadCount(ctx context.Context, userID uuid.UUID) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, unreadCountKey(userID)).Err(); err != nil {
		s.log.Warnw("Unread count cache invalidation failed",
			"userID", userID,
			"error", err)
	}
}

// pushAsync submits a push delivery job to the worker pool. A full queue or a
// downstream publish failure is logged and swallowed.
func (s *NotificationService) pushAsync(name string, eventType types.EventType, recipientID string, payload interface{}) {
	pushViaPool(s.pool, s.publisher, s.log, name, eventType, recipientID, payload)
}
