package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-live/message-service/internal/domain"
	"github.com/weiawesome/wes-io-live/message-service/internal/service"
	"github.com/weiawesome/wes-io-live/pkg/log"
	"github.com/weiawesome/wes-io-live/pkg/middleware"
	"github.com/weiawesome/wes-io-live/pkg/response"
)

// Handler handles HTTP requests for message service.
type Handler struct {
	svc            service.MessageService
	authMiddleware *middleware.AuthMiddleware
	rateLimit      gin.HandlerFunc
}

// NewHandler creates a new HTTP handler. rateLimit guards message creation.
func NewHandler(svc service.MessageService, authMiddleware *middleware.AuthMiddleware, rateLimit gin.HandlerFunc) *Handler {
	return &Handler{
		svc:            svc,
		authMiddleware: authMiddleware,
		rateLimit:      rateLimit,
	}
}

// RegisterRoutes registers all routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	api.Use(h.authMiddleware.RequireAuth())
	{
		messages := api.Group("/messages")
		{
			messages.POST("", h.rateLimit, h.CreateMessage)
			messages.GET("", h.ListMessages)
			messages.GET("/unread", h.UnreadMessages)
			messages.POST("/read", h.MarkMessagesRead)
			messages.GET("/:id", h.GetMessage)
			messages.PUT("/:id", h.EditMessage)
			messages.POST("/:id/read", h.MarkMessageRead)
			messages.GET("/:id/thread", h.GetThread)
		}

		api.GET("/conversations", h.ListConversations)

		notifications := api.Group("/notifications")
		{
			notifications.GET("", h.ListNotifications)
			notifications.POST("/:id/read", h.MarkNotificationRead)
		}

		api.DELETE("/actors/:id", h.RemoveActor)
	}
}

func actorFrom(c *gin.Context) domain.Actor {
	return domain.Actor{
		ID:       middleware.GetUserID(c),
		Username: middleware.GetUsername(c),
		Role:     domain.ParseRole(middleware.GetRole(c)),
	}
}

// CreateMessage handles POST /api/v1/messages.
func (h *Handler) CreateMessage(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	var req domain.CreateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("invalid create message request")
		response.BadRequest(c, err.Error())
		return
	}

	msg, err := h.svc.CreateMessage(ctx, actorFrom(c), &req)
	if err != nil {
		h.fail(c, err, "failed to create message")
		return
	}

	response.Created(c, msg)
}

// ListMessages handles GET /api/v1/messages.
func (h *Handler) ListMessages(c *gin.Context) {
	payload, err := h.svc.ListMessages(c.Request.Context(), actorFrom(c))
	if err != nil {
		h.fail(c, err, "failed to list messages")
		return
	}
	response.Raw(c, payload)
}

// UnreadMessages handles GET /api/v1/messages/unread.
func (h *Handler) UnreadMessages(c *gin.Context) {
	unread, err := h.svc.UnreadFor(c.Request.Context(), actorFrom(c))
	if err != nil {
		h.fail(c, err, "failed to list unread messages")
		return
	}
	response.Success(c, unread)
}

// MarkMessagesRead handles POST /api/v1/messages/read.
func (h *Handler) MarkMessagesRead(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	var req domain.MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("invalid mark read request")
		response.BadRequest(c, err.Error())
		return
	}

	updated, err := h.svc.MarkMessagesRead(ctx, actorFrom(c), req.IDs)
	if err != nil {
		h.fail(c, err, "failed to mark messages read")
		return
	}
	response.Success(c, domain.MarkReadResponse{Updated: updated})
}

// GetMessage handles GET /api/v1/messages/:id.
func (h *Handler) GetMessage(c *gin.Context) {
	msg, err := h.svc.GetMessage(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		h.fail(c, err, "failed to get message")
		return
	}
	response.Success(c, msg)
}

// EditMessage handles PUT /api/v1/messages/:id.
func (h *Handler) EditMessage(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	var req domain.EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("invalid edit message request")
		response.BadRequest(c, err.Error())
		return
	}

	msg, err := h.svc.EditMessage(ctx, actorFrom(c), c.Param("id"), &req)
	if err != nil {
		h.fail(c, err, "failed to edit message")
		return
	}
	response.Success(c, msg)
}

// MarkMessageRead handles POST /api/v1/messages/:id/read.
func (h *Handler) MarkMessageRead(c *gin.Context) {
	if err := h.svc.MarkMessageRead(c.Request.Context(), actorFrom(c), c.Param("id")); err != nil {
		h.fail(c, err, "failed to mark message read")
		return
	}
	response.Success(c, gin.H{"message": "message marked read"})
}

// GetThread handles GET /api/v1/messages/:id/thread.
func (h *Handler) GetThread(c *gin.Context) {
	payload, err := h.svc.GetThread(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		h.fail(c, err, "failed to get thread")
		return
	}
	response.Raw(c, payload)
}

// ListConversations handles GET /api/v1/conversations.
func (h *Handler) ListConversations(c *gin.Context) {
	payload, err := h.svc.ListConversations(c.Request.Context(), actorFrom(c))
	if err != nil {
		h.fail(c, err, "failed to list conversations")
		return
	}
	response.Raw(c, payload)
}

// ListNotifications handles GET /api/v1/notifications?unread=true.
func (h *Handler) ListNotifications(c *gin.Context) {
	unreadOnly := false
	if raw := c.Query("unread"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			response.BadRequest(c, "unread must be a boolean")
			return
		}
		unreadOnly = v
	}

	notifications, err := h.svc.ListNotifications(c.Request.Context(), actorFrom(c), unreadOnly)
	if err != nil {
		h.fail(c, err, "failed to list notifications")
		return
	}
	response.Success(c, notifications)
}

// MarkNotificationRead handles POST /api/v1/notifications/:id/read.
func (h *Handler) MarkNotificationRead(c *gin.Context) {
	if err := h.svc.MarkNotificationRead(c.Request.Context(), actorFrom(c), c.Param("id")); err != nil {
		h.fail(c, err, "failed to mark notification read")
		return
	}
	response.Success(c, gin.H{"message": "notification marked read"})
}

// RemoveActor handles DELETE /api/v1/actors/:id.
func (h *Handler) RemoveActor(c *gin.Context) {
	result, err := h.svc.RemoveActor(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		h.fail(c, err, "failed to remove actor")
		return
	}
	response.Success(c, result)
}

// fail maps service errors to responses. Anything unrecognised is a 500
// with internalMsg; the cause is logged but not exposed.
func (h *Handler) fail(c *gin.Context, err error, internalMsg string) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		response.BadRequest(c, err.Error())
	case errors.Is(err, service.ErrMessageNotFound):
		response.NotFound(c, "message not found")
	case errors.Is(err, service.ErrNotificationNotFound):
		response.NotFound(c, "notification not found")
	case errors.Is(err, service.ErrForbidden):
		response.Forbidden(c, err.Error())
	case errors.Is(err, service.ErrConflict):
		response.Conflict(c, "message was modified concurrently, reload and retry")
	default:
		l := log.Ctx(c.Request.Context())
		l.Error().Err(err).Msg(internalMsg)
		_ = c.Error(err)
		response.InternalError(c, internalMsg)
	}
}
