package api

import (
	"errors"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"notemesh/internal/domain"
	"notemesh/internal/notifier"
)

// NotificationHandler handles HTTP requests for notification operations.
// Notifications are created only by the event consumer; the API exposes
// reads and the read flag.
type NotificationHandler struct {
	service *notifier.Service
	logger  *slog.Logger
}

// NewNotificationHandler creates a new notification handler.
func NewNotificationHandler(service *notifier.Service, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		service: service,
		logger:  logger,
	}
}

// ListByUser handles GET /api/notifications/:userId
func (h *NotificationHandler) ListByUser(c *fiber.Ctx) error {
	userID := c.Params("userId")
	if userID == "" {
		return BadRequest(c, "userId is required")
	}

	notifications, err := h.service.ListForUser(c.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list notifications", "userId", userID, "error", err)
		return InternalError(c, "failed to list notifications")
	}

	return Success(c, notifications)
}

// MarkRead handles PUT /api/notifications/:id/read
func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return BadRequest(c, "id must be an integer")
	}

	if err := h.service.MarkRead(c.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotificationNotFound) {
			return NotFound(c, "notification not found")
		}
		h.logger.Error("failed to mark notification read", "id", id, "error", err)
		return InternalError(c, "failed to mark notification read")
	}

	return NoContent(c)
}
