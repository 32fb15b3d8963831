package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/visicontrol/visicontrol/internal/realtime"
	"github.com/visicontrol/visicontrol/internal/services"
	"github.com/visicontrol/visicontrol/pkg/errors"
	"github.com/visicontrol/visicontrol/pkg/logger"
	"github.com/visicontrol/visicontrol/pkg/response"
)

// NotificationHandlerConfig carries the deployment facts the handler depends on.
type NotificationHandlerConfig struct {
	// Production disables the manual reminder trigger.
	Production     bool
	AllowedOrigins []string
}

// NotificationHandler exposes HTTP endpoints for notifications and the live stream.
type NotificationHandler struct {
	service    *services.NotificationService
	hub        *realtime.Hub
	upgrader   *websocket.Upgrader
	production bool
	log        *zap.Logger
}

// NewNotificationHandler constructs a notification handler.
func NewNotificationHandler(service *services.NotificationService, hub *realtime.Hub, cfg NotificationHandlerConfig) *NotificationHandler {
	return &NotificationHandler{
		service:    service,
		hub:        hub,
		upgrader:   realtime.NewUpgrader(cfg.AllowedOrigins),
		production: cfg.Production,
		log:        logger.WithModule("realtime"),
	}
}

type markReadRequest struct {
	IDs []string `json:"ids" validate:"omitempty,max=500,dive,uuid"`
}

// Stream opens a server-sent event stream for the authenticated user.
func (h *NotificationHandler) Stream(c *gin.Context) {
	userID := currentActor(c).UserID
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	transport, err := realtime.NewSSETransport(c.Writer)
	if err != nil {
		response.Error(c, errors.ErrInternalServer.WithInternal(err))
		return
	}

	if err := h.hub.Serve(requestContext(c), userID, transport); err != nil {
		h.log.Debug("sse stream closed", zap.String("user_id", userID), zap.Error(err))
	}
}

// WebSocket upgrades the request and serves the user's events as JSON frames.
func (h *NotificationHandler) WebSocket(c *gin.Context) {
	userID := currentActor(c).UserID
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	transport, err := realtime.UpgradeWebSocket(h.upgrader, c.Writer, c.Request)
	if err != nil {
		// the upgrader already replied to the client
		h.log.Debug("websocket upgrade failed", zap.String("user_id", userID), zap.Error(err))
		return
	}

	if err := h.hub.Serve(requestContext(c), userID, transport); err != nil {
		h.log.Debug("websocket stream closed", zap.String("user_id", userID), zap.Error(err))
	}
}

// List returns the most recent notifications of the current user.
func (h *NotificationHandler) List(c *gin.Context) {
	limits := h.service.Limits()
	items, err := h.service.List(requestContext(c), services.ListNotificationsInput{
		UserID:     currentActor(c).UserID,
		OnlyUnread: parseBoolQuery(c, "onlyUnread"),
		Limit:      limits.Clamp(parseIntQuery(c, "limit", limits.Default)),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"items": items})
}

// UnreadCount reports how many notifications the current user has not read.
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	count, err := h.service.CountUnread(requestContext(c), currentActor(c).UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"count": count})
}

// MarkRead flags the given notifications as read. A missing body or an empty
// list is a no-op.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	var req markReadRequest
	if !bindOptional(c, &req) {
		return
	}

	updated, err := h.service.MarkRead(requestContext(c), currentActor(c).UserID, req.IDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"updated": updated})
}

// RunReminders triggers one reminder pass outside the schedule.
func (h *NotificationHandler) RunReminders(c *gin.Context) {
	if h.production {
		response.Error(c, errors.ErrForbidden)
		return
	}

	stats, err := h.service.GenerateDueReminders(requestContext(c))
	if err != nil && stats.Failed == 0 {
		response.Error(c, err)
		return
	}
	if err != nil {
		h.log.Warn("reminder run finished with failures", zap.Int("failed", stats.Failed), zap.Error(err))
	}
	response.OK(c, gin.H{"candidates": stats.Candidates, "inserted": stats.Inserted})
}
