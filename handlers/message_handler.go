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
	"github.com/staynest/staynest-backend/services"
	"github.com/staynest/staynest-backend/types"
)

// MessageHandler handles HTTP requests related to direct messages.
type MessageHandler struct {
	service *services.MessageService
	log     *zap.SugaredLogger
}

// NewMessageHandler creates a new MessageHandler.
func NewMessageHandler(service *services.MessageService) *MessageHandler {
	return &MessageHandler{
		service: service,
		log:     logger.GetLogger().Named("message_handler"),
	}
}

// SendMessage sends a direct message from the authenticated user.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	senderID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	var req types.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.ValidationFailed("Invalid request body", err.Error()))
		c.Abort()
		return
	}

	message, err := h.service.Send(c.Request.Context(), senderID, req)
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			_ = c.Error(appErr)
		} else {
			h.log.Errorw("Failed to send message", "senderID", senderID, "error", err)
			_ = c.Error(apperrors.NewDatabaseError(err))
		}
		c.Abort()
		return
	}

	c.JSON(http.StatusCreated, message)
}

// GetConversation returns the full conversation between the authenticated
// user and the user in the path, oldest first.
func (h *MessageHandler) GetConversation(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	otherID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		_ = c.Error(apperrors.ValidationFailed("Invalid user ID", c.Param("userId")))
		c.Abort()
		return
	}

	messages, err := h.service.GetConversation(c.Request.Context(), userID, otherID)
	if err != nil {
		h.log.Errorw("Failed to get conversation", "userID", userID, "otherID", otherID, "error", err)
		_ = c.Error(apperrors.NewDatabaseError(err))
		c.Abort()
		return
	}

	c.JSON(http.StatusOK, messages)
}

// GetUnreadMessages returns unread messages addressed to the user.
func (h *MessageHandler) GetUnreadMessages(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	messages, err := h.service.GetUnread(c.Request.Context(), userID)
	if err != nil {
		h.log.Errorw("Failed to get unread messages", "userID", userID, "error", err)
		_ = c.Error(apperrors.NewDatabaseError(err))
		c.Abort()
		return
	}

	c.JSON(http.StatusOK, messages)
}

// MarkMessageRead marks one message read. Only the receiver may do this.
func (h *MessageHandler) MarkMessageRead(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(c.Param("messageId"), 10, 64)
	if err != nil {
		_ = c.Error(apperrors.ValidationFailed("Invalid message ID", c.Param("messageId")))
		c.Abort()
		return
	}

	if err := h.service.MarkRead(c.Request.Context(), id, userID); err != nil {
		attachStoreError(c, err, "Message", id)
		return
	}

	c.Status(http.StatusNoContent)
}

// MarkConversationRead marks all messages from the user in the path to the
// authenticated user as read.
func (h *MessageHandler) MarkConversationRead(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	senderID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		_ = c.Error(apperrors.ValidationFailed("Invalid user ID", c.Param("userId")))
		c.Abort()
		return
	}

	affected, err := h.service.MarkConversationRead(c.Request.Context(), senderID, userID)
	if err != nil {
		h.log.Errorw("Failed to mark conversation read", "userID", userID, "senderID", senderID, "error", err)
		_ = c.Error(apperrors.NewDatabaseError(err))
		c.Abort()
		return
	}

	c.JSON(http.StatusOK, gin.H{"updated": affected})
}
