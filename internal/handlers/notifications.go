package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/mentorhub/internal/services"
	"github.com/charlesng35/mentorhub/pkg/response"
)

const (
	defaultNotificationLimit = 25
	maxNotificationLimit     = 100
)

// NotificationHandler exposes HTTP endpoints for in-app notifications.
type NotificationHandler struct {
	service *services.NotificationService
}

// NewNotificationHandler constructs a notification handler.
func NewNotificationHandler(service *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{service: service}
}

type notificationListPayload struct {
	Items       []services.NotificationDTO `json:"items"`
	UnreadCount int64                      `json:"unread_count"`
}

// List returns notifications for the current user, newest first, with the unread count.
func (h *NotificationHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	limit := parseIntQuery(c, "limit", defaultNotificationLimit)
	if limit <= 0 || limit > maxNotificationLimit {
		limit = defaultNotificationLimit
	}
	offset := max(parseIntQuery(c, "offset", 0), 0)

	ctx := requestContext(c)
	items, err := h.service.ListForUser(ctx, services.ListNotificationsInput{
		UserID: userID,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	unread, err := h.service.CountUnread(ctx, userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, notificationListPayload{
		Items:       items,
		UnreadCount: unread,
	}, &response.Meta{Limit: limit, Offset: offset})
}

// MarkRead toggles a notification to read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	h.updateReadState(c, true)
}

// MarkUnread toggles a notification to unread.
func (h *NotificationHandler) MarkUnread(c *gin.Context) {
	h.updateReadState(c, false)
}

func (h *NotificationHandler) updateReadState(c *gin.Context, read bool) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	var (
		dto *services.NotificationDTO
		err error
	)
	if read {
		dto, err = h.service.MarkRead(requestContext(c), userID, id)
	} else {
		dto, err = h.service.MarkUnread(requestContext(c), userID, id)
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, dto)
}

// Delete removes a notification.
func (h *NotificationHandler) Delete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	if err := h.service.Delete(requestContext(c), userID, id); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// MarkAllRead marks all notifications read.
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	if err := h.service.MarkAllRead(requestContext(c), userID); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"updated": true})
}
