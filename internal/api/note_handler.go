package api

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"notemesh/internal/domain"
	"notemesh/internal/notes"
)

// NoteHandler handles HTTP requests for note operations.
type NoteHandler struct {
	service *notes.Service
	logger  *slog.Logger
}

// NewNoteHandler creates a new note handler.
func NewNoteHandler(service *notes.Service, logger *slog.Logger) *NoteHandler {
	return &NoteHandler{
		service: service,
		logger:  logger,
	}
}

// createNoteRequest is the request body for creating a note.
type createNoteRequest struct {
	NoteID      string `json:"noteId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	UserID      string `json:"userId"`
}

// updateNoteRequest is the request body for updating a note.
type updateNoteRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

// Create handles POST /api/notes
func (h *NoteHandler) Create(c *fiber.Ctx) error {
	var req createNoteRequest
	if err := c.BodyParser(&req); err != nil {
		return BadRequest(c, "invalid request body")
	}

	// Client-supplied ids are allowed so callers can make creation
	// idempotent; absent ones are generated.
	if req.NoteID == "" {
		req.NoteID = uuid.New().String()
	}

	note := &domain.Note{
		NoteID:      req.NoteID,
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		UserID:      req.UserID,
	}

	if err := h.service.Create(c.Context(), note); err != nil {
		if isValidationError(err) {
			return ValidationError(c, err.Error())
		}
		h.logger.Error("failed to create note", "noteId", note.NoteID, "error", err)
		return InternalError(c, "failed to create note")
	}

	return Created(c, note)
}

// List handles GET /api/notes
func (h *NoteHandler) List(c *fiber.Ctx) error {
	all, err := h.service.List(c.Context())
	if err != nil {
		h.logger.Error("failed to list notes", "error", err)
		return InternalError(c, "failed to list notes")
	}
	return Success(c, all)
}

// GetByID handles GET /api/notes/:noteId
func (h *NoteHandler) GetByID(c *fiber.Ctx) error {
	noteID := c.Params("noteId")
	if noteID == "" {
		return BadRequest(c, "noteId is required")
	}

	note, err := h.service.Get(c.Context(), noteID)
	if err != nil {
		if errors.Is(err, domain.ErrNoteNotFound) {
			return NotFound(c, "note not found")
		}
		h.logger.Error("failed to get note", "noteId", noteID, "error", err)
		return InternalError(c, "failed to get note")
	}

	return Success(c, note)
}

// Update handles PUT /api/notes/:noteId
func (h *NoteHandler) Update(c *fiber.Ctx) error {
	noteID := c.Params("noteId")
	if noteID == "" {
		return BadRequest(c, "noteId is required")
	}

	var req updateNoteRequest
	if err := c.BodyParser(&req); err != nil {
		return BadRequest(c, "invalid request body")
	}

	note := &domain.Note{
		NoteID:      noteID,
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
	}

	if err := h.service.Update(c.Context(), note); err != nil {
		if errors.Is(err, domain.ErrNoteNotFound) {
			return NotFound(c, "note not found")
		}
		if isValidationError(err) {
			return ValidationError(c, err.Error())
		}
		h.logger.Error("failed to update note", "noteId", noteID, "error", err)
		return InternalError(c, "failed to update note")
	}

	return Success(c, note)
}

// Delete handles DELETE /api/notes/:noteId
func (h *NoteHandler) Delete(c *fiber.Ctx) error {
	noteID := c.Params("noteId")
	if noteID == "" {
		return BadRequest(c, "noteId is required")
	}

	if err := h.service.Delete(c.Context(), noteID); err != nil {
		if errors.Is(err, domain.ErrNoteNotFound) {
			return NotFound(c, "note not found")
		}
		h.logger.Error("failed to delete note", "noteId", noteID, "error", err)
		return InternalError(c, "failed to delete note")
	}

	return NoContent(c)
}

// isValidationError reports whether the error is one of the note field
// validation sentinels.
func isValidationError(err error) bool {
	return errors.Is(err, domain.ErrEmptyNoteID) ||
		errors.Is(err, domain.ErrEmptyTitle) ||
		errors.Is(err, domain.ErrEmptyDescription) ||
		errors.Is(err, domain.ErrEmptyStatus) ||
		errors.Is(err, domain.ErrEmptyUserID)
}
