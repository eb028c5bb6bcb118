package api

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"notemesh/internal/domain"
	"notemesh/internal/rpc"
	"notemesh/internal/social"
)

// SocialHandler handles HTTP requests for like and share operations.
type SocialHandler struct {
	service *social.Service
	logger  *slog.Logger
}

// NewSocialHandler creates a new social handler.
func NewSocialHandler(service *social.Service, logger *slog.Logger) *SocialHandler {
	return &SocialHandler{
		service: service,
		logger:  logger,
	}
}

// likeRequest is the request body for liking or unliking a note.
type likeRequest struct {
	UserID string `json:"userId"`
}

// shareRequest is the request body for sharing a note.
type shareRequest struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

// Like handles POST /api/social/notes/:noteId/likes
func (h *SocialHandler) Like(c *fiber.Ctx) error {
	noteID := c.Params("noteId")
	if noteID == "" {
		return BadRequest(c, "noteId is required")
	}

	var req likeRequest
	if err := c.BodyParser(&req); err != nil {
		return BadRequest(c, "invalid request body")
	}
	if req.UserID == "" {
		return ValidationError(c, "userId is required")
	}

	if err := h.service.Like(c.Context(), noteID, req.UserID); err != nil {
		switch {
		case errors.Is(err, domain.ErrNoteNotFound):
			return NotFound(c, "note not found")
		case errors.Is(err, domain.ErrAlreadyLiked):
			return Conflict(c, "note already liked")
		case errors.Is(err, rpc.ErrTimeout), errors.Is(err, rpc.ErrDisconnected):
			h.logger.Warn("note lookup unavailable", "noteId", noteID, "error", err)
			return Unavailable(c, "note service unavailable")
		default:
			h.logger.Error("failed to like note", "noteId", noteID, "error", err)
			return InternalError(c, "failed to like note")
		}
	}

	return Created(c, map[string]string{
		"noteId": noteID,
		"userId": req.UserID,
	})
}

// Unlike handles DELETE /api/social/notes/:noteId/likes/:userId
func (h *SocialHandler) Unlike(c *fiber.Ctx) error {
	noteID := c.Params("noteId")
	userID := c.Params("userId")
	if noteID == "" || userID == "" {
		return BadRequest(c, "noteId and userId are required")
	}

	if err := h.service.Unlike(c.Context(), noteID, userID); err != nil {
		h.logger.Error("failed to unlike note", "noteId", noteID, "error", err)
		return InternalError(c, "failed to unlike note")
	}

	return NoContent(c)
}

// LikeCount handles GET /api/social/notes/:noteId/likes
func (h *SocialHandler) LikeCount(c *fiber.Ctx) error {
	noteID := c.Params("noteId")
	if noteID == "" {
		return BadRequest(c, "noteId is required")
	}

	count, err := h.service.LikesForNote(c.Context(), noteID)
	if err != nil {
		h.logger.Error("failed to count likes", "noteId", noteID, "error", err)
		return InternalError(c, "failed to count likes")
	}

	return Success(c, map[string]interface{}{
		"noteId": noteID,
		"count":  count,
	})
}

// LikesByUser handles GET /api/social/users/:userId/likes
func (h *SocialHandler) LikesByUser(c *fiber.Ctx) error {
	userID := c.Params("userId")
	if userID == "" {
		return BadRequest(c, "userId is required")
	}

	likes, err := h.service.LikesByUser(c.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list likes", "userId", userID, "error", err)
		return InternalError(c, "failed to list likes")
	}

	return Success(c, likes)
}

// Share handles POST /api/social/notes/:noteId/shares
func (h *SocialHandler) Share(c *fiber.Ctx) error {
	noteID := c.Params("noteId")
	if noteID == "" {
		return BadRequest(c, "noteId is required")
	}

	var req shareRequest
	if err := c.BodyParser(&req); err != nil {
		return BadRequest(c, "invalid request body")
	}
	if req.UserID == "" {
		return ValidationError(c, "userId is required")
	}

	if err := h.service.Share(c.Context(), noteID, req.UserID, req.Message); err != nil {
		switch {
		case errors.Is(err, domain.ErrNoteNotFound):
			return NotFound(c, "note not found")
		case errors.Is(err, rpc.ErrTimeout), errors.Is(err, rpc.ErrDisconnected):
			h.logger.Warn("note lookup unavailable", "noteId", noteID, "error", err)
			return Unavailable(c, "note service unavailable")
		default:
			h.logger.Error("failed to share note", "noteId", noteID, "error", err)
			return InternalError(c, "failed to share note")
		}
	}

	return Accepted(c, map[string]string{
		"noteId": noteID,
		"userId": req.UserID,
	})
}

// GetNote handles GET /api/social/notes/:noteId
// Resolves the note over RPC from the note service.
func (h *SocialHandler) GetNote(c *fiber.Ctx) error {
	noteID := c.Params("noteId")
	if noteID == "" {
		return BadRequest(c, "noteId is required")
	}

	note, err := h.service.LookupNote(c.Context(), noteID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNoteNotFound):
			return NotFound(c, "note not found")
		case errors.Is(err, rpc.ErrTimeout), errors.Is(err, rpc.ErrDisconnected):
			h.logger.Warn("note lookup unavailable", "noteId", noteID, "error", err)
			return Unavailable(c, "note service unavailable")
		default:
			h.logger.Error("failed to look up note", "noteId", noteID, "error", err)
			return InternalError(c, "failed to look up note")
		}
	}

	return Success(c, note)
}
