package handlers

import (
	"github.com/gin-gonic/gin"

	"agrolink/api/internal/services"
)

// NotificationHandler handles /notifications requests.
type NotificationHandler struct {
	notificationService services.INotificationService
}

func NewNotificationHandler(notificationService services.INotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

// List handles GET /notifications?unreadOnly=&limit=&skip=
func (h *NotificationHandler) List(c *gin.Context) {
	actor, authed := currentActor(c)
	if !authed {
		return
	}
	notifications, err := h.notificationService.List(c.Request.Context(), actor.ID,
		c.Query("unreadOnly") == "true", queryInt(c, "limit", 50), queryInt(c, "skip", 0))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"notifications": notifications})
}

// UnreadCount handles GET /notifications/unread-count
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	actor, authed := currentActor(c)
	if !authed {
		return
	}
	count, err := h.notificationService.UnreadCount(c.Request.Context(), actor.ID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"unreadCount": count})
}

// MarkRead handles PUT /notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	actor, authed := currentActor(c)
	if !authed {
		return
	}
	notificationID, valid := pathID(c, "id")
	if !valid {
		return
	}
	if err := h.notificationService.MarkRead(c.Request.Context(), notificationID, actor.ID); err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"message": "Notification marked as read"})
}

// MarkAllRead handles PUT /notifications/read-all
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	actor, authed := currentActor(c)
	if !authed {
		return
	}
	count, err := h.notificationService.MarkAllRead(c.Request.Context(), actor.ID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"updated": count})
}

// Delete handles DELETE /notifications/:id
func (h *NotificationHandler) Delete(c *gin.Context) {
	actor, authed := currentActor(c)
	if !authed {
		return
	}
	notificationID, valid := pathID(c, "id")
	if !valid {
		return
	}
	if err := h.notificationService.Delete(c.Request.Context(), notificationID, actor.ID); err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"message": "Notification deleted"})
}

// Create handles POST /notifications (admin only).
func (h *NotificationHandler) Create(c *gin.Context) {
	var in services.NotificationInput
	if !bindJSON(c, &in) {
		return
	}
	notification, err := h.notificationService.Create(c.Request.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, gin.H{"notification": notification})
}
