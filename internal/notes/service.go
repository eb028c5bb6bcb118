// Package notes provides the note service: CRUD over the note store plus
// the RPC lookup handler other services call to resolve a note by id.
package notes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"notemesh/internal/domain"
	"notemesh/internal/store"
)

// Service handles note business logic.
type Service struct {
	repo   store.NoteRepository
	logger *slog.Logger
}

// NewService creates a new note service.
func NewService(repo store.NoteRepository, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// Create validates and stores a new note.
func (s *Service) Create(ctx context.Context, note *domain.Note) error {
	if err := note.Validate(); err != nil {
		return err
	}
	return s.repo.Create(ctx, note)
}

// Update modifies an existing note.
func (s *Service) Update(ctx context.Context, note *domain.Note) error {
	if note.Title == "" {
		return domain.ErrEmptyTitle
	}
	if note.Description == "" {
		return domain.ErrEmptyDescription
	}
	if note.Status == "" {
		return domain.ErrEmptyStatus
	}
	return s.repo.Update(ctx, note)
}

// Delete removes a note by id.
func (s *Service) Delete(ctx context.Context, noteID string) error {
	return s.repo.Delete(ctx, noteID)
}

// Get retrieves a note by id.
func (s *Service) Get(ctx context.Context, noteID string) (*domain.Note, error) {
	return s.repo.GetByID(ctx, noteID)
}

// List retrieves all notes.
func (s *Service) List(ctx context.Context) ([]*domain.Note, error) {
	return s.repo.List(ctx)
}

// lookupRecord is the RPC reply body for a found note. Field names follow
// the queue contract shared with the other services.
type lookupRecord struct {
	NoteID      string    `json:"note_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	UserID      string    `json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// notFoundReply is the explicit sentinel for a missing note.
var notFoundReply = []byte(`{"error":"Note not found"}`)

// LookupHandler returns the RPC handler serving note lookups. The request
// payload is the raw note id; the reply is the record's fields or the
// not-found envelope. Lookups are read-only, so at-least-once redelivery
// is harmless here.
func (s *Service) LookupHandler() func(ctx context.Context, request []byte) ([]byte, error) {
	return func(ctx context.Context, request []byte) ([]byte, error) {
		noteID := strings.TrimSpace(string(request))
		if noteID == "" {
			return notFoundReply, nil
		}

		note, err := s.repo.GetByID(ctx, noteID)
		if err != nil {
			if errors.Is(err, domain.ErrNoteNotFound) {
				s.logger.Debug("rpc lookup missed", "noteId", noteID)
				return notFoundReply, nil
			}
			return nil, fmt.Errorf("lookup note %q: %w", noteID, err)
		}

		reply, err := json.Marshal(lookupRecord{
			NoteID:      note.NoteID,
			Title:       note.Title,
			Description: note.Description,
			Status:      note.Status,
			UserID:      note.UserID,
			CreatedAt:   note.CreatedAt,
		})
		if err != nil {
			return nil, fmt.Errorf("serialize lookup reply: %w", err)
		}

		s.logger.Debug("rpc lookup served", "noteId", noteID)
		return reply, nil
	}
}
