package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/talenthub/internal/services"
	"github.com/charlesng35/talenthub/pkg/response"
)

// NotificationHandler exposes the caller's notification inbox.
type NotificationHandler struct {
	service *services.NotificationService
}

// NewNotificationHandler constructs a notification handler.
func NewNotificationHandler(service *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{service: service}
}

// List returns a page of notifications for the current user together with the
// unread count.
func (h *NotificationHandler) List(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}

	page, err := h.service.ListForRecipient(requestContext(c), services.ListNotificationsInput{
		RecipientID: principal.ID,
		Page:        parseIntQuery(c, "page", 1),
		Limit:       parseIntQuery(c, "limit", 0),
		UnreadOnly:  parseBoolQuery(c, "unreadOnly"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, page, response.NewMeta(page.Page, page.Limit, page.Total))
}

// Count returns the unread count for the current user.
func (h *NotificationHandler) Count(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}

	count, err := h.service.CountUnread(requestContext(c), principal.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"unreadCount": count})
}

// MarkRead marks :id read when it belongs to the caller.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}

	dto, err := h.service.MarkRead(requestContext(c), principal.ID, strings.TrimSpace(c.Param("id")))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, dto)
}

// MarkAllRead marks every notification of the caller read.
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}

	updated, err := h.service.MarkAllRead(requestContext(c), principal.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"updated": updated})
}

// Delete removes :id when it belongs to the caller.
func (h *NotificationHandler) Delete(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}

	if err := h.service.Delete(requestContext(c), principal.ID, strings.TrimSpace(c.Param("id"))); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
