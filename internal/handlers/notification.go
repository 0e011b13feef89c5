package handlers

import (
	"github.com/bugdesk/bugdesk/internal/middleware"
	"github.com/bugdesk/bugdesk/internal/services"
	"github.com/bugdesk/bugdesk/pkg/response"
	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	notificationService *services.NotificationService
}

func NewNotificationHandler(notificationService *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

// List returns the caller's notifications, newest first
// GET /api/notifications?unread=true
func (h *NotificationHandler) List(c *gin.Context) {
	items, err := h.notificationService.ListForUser(middleware.GetUserID(c), c.Query("unread") == "true")
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, items)
}

// GET /api/notifications/unread-count
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	count, err := h.notificationService.UnreadCount(middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"count": count})
}

// PUT /api/notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	n, err := h.notificationService.MarkRead(id, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, n)
}

// PUT /api/notifications/read/all
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	if err := h.notificationService.MarkAllRead(middleware.GetUserID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "all notifications marked as read")
}

// DELETE /api/notifications
func (h *NotificationHandler) ClearAll(c *gin.Context) {
	if err := h.notificationService.ClearAll(middleware.GetUserID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "notifications cleared")
}
