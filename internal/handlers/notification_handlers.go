package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"resourcehive/internal/common"
	"resourcehive/internal/services"
)

// NotificationHandlers serves the caller's in-app inbox
type NotificationHandlers struct {
	notifications services.NotificationService
}

func NewNotificationHandlers(notifications services.NotificationService) *NotificationHandlers {
	return &NotificationHandlers{notifications: notifications}
}

type ListNotificationsRequest struct {
	Limit  int `query:"limit"`
	Offset int `query:"offset"`
}

// ListNotifications returns the newest notifications first with the unread count
func (h *NotificationHandlers) ListNotifications(c echo.Context) error {
	actor, err := actorID(c)
	if err != nil {
		return err
	}
	var req ListNotificationsRequest
	if err := c.Bind(&req); err != nil {
		return common.SendValidationError(c, "query", "Invalid query parameters")
	}
	limit, offset, err := common.ValidatePaginationParams(req.Limit, req.Offset)
	if err != nil {
		return common.SendValidationError(c, "offset", err.Error())
	}

	ctx := c.Request().Context()
	list, err := h.notifications.List(ctx, actor, limit, offset)
	if err != nil {
		return common.SendError(c, err)
	}
	unread, err := h.notifications.UnreadCount(ctx, actor)
	if err != nil {
		return common.SendError(c, err)
	}
	return common.SendOK(c, http.StatusOK, map[string]any{
		"notifications": list,
		"unread":        unread,
		"limit":         limit,
		"offset":        offset,
	})
}

func (h *NotificationHandlers) MarkRead(c echo.Context) error {
	actor, err := actorID(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	if err := h.notifications.MarkRead(c.Request().Context(), actor, id); err != nil {
		return common.SendError(c, err)
	}
	return common.SendOK(c, http.StatusOK, map[string]any{"id": id})
}

func (h *NotificationHandlers) MarkAllRead(c echo.Context) error {
	actor, err := actorID(c)
	if err != nil {
		return err
	}

	n, err := h.notifications.MarkAllRead(c.Request().Context(), actor)
	if err != nil {
		return common.SendError(c, err)
	}
	return common.SendOK(c, http.StatusOK, map[string]any{"marked": n})
}
