// Package handlers contains the gin HTTP handlers for the REST surface.
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/staynest/staynest-backend/errors"
	"github.com/staynest/staynest-backend/logger"
	"github.com/staynest/staynest-backend/middleware"
	"github.com/staynest/staynest-backend/services"
	"github.com/staynest/staynest-backend/store"
	"github.com/staynest/staynest-backend/types"
)

// NotificationHandler handles HTTP requests related to notifications.
type NotificationHandler struct {
	service *services.NotificationService
	log     *zap.SugaredLogger
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(service *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{
		service: service,
		log:     logger.GetLogger().Named("notification_handler"),
	}
}

// getUserIDFromContext extracts the authenticated user's ID set by the auth
// middleware. Attaches an error and aborts when missing or malformed.
func getUserIDFromContext(c *gin.Context) (uuid.UUID, bool) {
	raw := c.GetString(string(middleware.UserIDKey))
	if raw == "" {
		_ = c.Error(apperrors.Unauthorized("missing_auth", "Authentication required"))
		c.Abort()
		return uuid.Nil, false
	}

	userID, err := uuid.Parse(raw)
	if err != nil {
		_ = c.Error(apperrors.Unauthorized("invalid_auth", "Invalid user identity"))
		c.Abort()
		return uuid.Nil, false
	}
	return userID, true
}

// attachStoreError maps store sentinel errors onto HTTP-aware app errors.
func attachStoreError(c *gin.Context, err error, entity string, id interface{}) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		_ = c.Error(apperrors.NotFound(entity, id))
	case errors.Is(err, store.ErrForbidden):
		_ = c.Error(apperrors.Forbidden("Access denied", "this record belongs to another user"))
	default:
		_ = c.Error(apperrors.NewDatabaseError(err))
	}
	c.Abort()
}

// CreateNotification creates a notification for a user and pushes it to their
// live sessions. Intended for internal callers (booking, review and system
// flows).
func (h *NotificationHandler) CreateNotification(c *gin.Context) {
	var req types.CreateNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.ValidationFailed("Invalid request body", err.Error()))
		c.Abort()
		return
	}

	notification, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			_ = c.Error(appErr)
		} else {
			_ = c.Error(apperrors.NewDatabaseError(err))
		}
		c.Abort()
		return
	}

	c.JSON(http.StatusCreated, notification)
}

// GetNotifications returns the authenticated user's notifications, newest
// first, with limit/offset pagination and an optional status filter
// ("read" or "unread").
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 20
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	var status *bool
	switch c.Query("status") {
	case "":
	case "read":
		v := true
		status = &v
	case "unread":
		v := false
		status = &v
	default:
		_ = c.Error(apperrors.ValidationFailed("Invalid status parameter", "use 'read' or 'unread'"))
		c.Abort()
		return
	}

	notifications, err := h.service.GetForUser(c.Request.Context(), userID, limit, offset, status)
	if err != nil {
		h.log.Errorw("Failed to get notifications", "userID", userID, "error", err)
		_ = c.Error(apperrors.NewDatabaseError(err))
		c.Abort()
		return
	}

	c.JSON(http.StatusOK, notifications)
}

// GetUnreadNotifications returns all unread notifications for the user.
func (h *NotificationHandler) GetUnreadNotifications(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	notifications, err := h.service.GetUnread(c.Request.Context(), userID)
	if err != nil {
		h.log.Errorw("Failed to get unread notifications", "userID", userID, "error", err)
		_ = c.Error(apperrors.NewDatabaseError(err))
		c.Abort()
		return
	}

	c.JSON(http.StatusOK, notifications)
}

// GetUnreadCount returns the user's unread notification count for badges.
func (h *NotificationHandler) GetUnreadCount(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	count, err := h.service.GetUnreadCount(c.Request.Context(), userID)
	if err != nil {
		h.log.Errorw("Failed to get unread count", "userID", userID, "error", err)
		_ = c.Error(apperrors.NewDatabaseError(err))
		c.Abort()
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": count})
}

// MarkNotificationRead marks one notification read for the authenticated user.
func (h *NotificationHandler) MarkNotificationRead(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(c.Param("notificationId"), 10, 64)
	if err != nil {
		_ = c.Error(apperrors.ValidationFailed("Invalid notification ID", c.Param("notificationId")))
		c.Abort()
		return
	}

	if err := h.service.MarkRead(c.Request.Context(), id, userID); err != nil {
		attachStoreError(c, err, "Notification", id)
		return
	}

	c.Status(http.StatusNoContent)
}

// MarkAllNotificationsRead marks every unread notification for the user as read.
func (h *NotificationHandler) MarkAllNotificationsRead(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	affected, err := h.service.MarkAllRead(c.Request.Context(), userID)
	if err != nil {
		h.log.Errorw("Failed to mark all notifications read", "userID", userID, "error", err)
		_ = c.Error(apperrors.NewDatabaseError(err))
		c.Abort()
		return
	}

	c.JSON(http.StatusOK, gin.H{"updated": affected})
}
