// Package social implements likes and shares. It is the producing side of
// the event pipeline: every like or share persists locally, then publishes
// an event the notification service materializes on its own schedule.
package social

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"notemesh/internal/domain"
	"notemesh/internal/event"
	"notemesh/internal/metrics"
	"notemesh/internal/store"
)

// defaultCountTTL bounds staleness of the cached per-note like count when
// no TTL is configured.
const defaultCountTTL = 30 * time.Second

// Caller issues request/reply calls to the note service.
type Caller interface {
	Call(ctx context.Context, payload []byte) ([]byte, error)
}

// NoteRecord is a note as resolved over RPC from the note service.
type NoteRecord struct {
	NoteID      string    `json:"note_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	UserID      string    `json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// lookupError is the reply shape the note service uses for a miss.
type lookupError struct {
	Error string `json:"error"`
}

// Service handles like and share business logic.
type Service struct {
	likes     store.LikeRepository
	cache     store.LikeCountCache
	cacheTTL  time.Duration
	notes     Caller
	publisher *event.Publisher
	logger    *slog.Logger
}

// NewService creates a new social service.
func NewService(likes store.LikeRepository, cache store.LikeCountCache, cacheTTL time.Duration, notes Caller, publisher *event.Publisher, logger *slog.Logger) *Service {
	if cacheTTL <= 0 {
		cacheTTL = defaultCountTTL
	}
	return &Service{
		likes:     likes,
		cache:     cache,
		cacheTTL:  cacheTTL,
		notes:     notes,
		publisher: publisher,
		logger:    logger,
	}
}

// LookupNote resolves a note by id over RPC. A miss surfaces as
// domain.ErrNoteNotFound so callers cannot tell a remote miss from a
// local one.
func (s *Service) LookupNote(ctx context.Context, noteID string) (*NoteRecord, error) {
	reply, err := s.notes.Call(ctx, []byte(noteID))
	if err != nil {
		return nil, fmt.Errorf("lookup note %q: %w", noteID, err)
	}

	var lookupErr lookupError
	if err := json.Unmarshal(reply, &lookupErr); err == nil && lookupErr.Error != "" {
		return nil, domain.ErrNoteNotFound
	}

	var record NoteRecord
	if err := json.Unmarshal(reply, &record); err != nil {
		return nil, fmt.Errorf("decode note lookup reply: %w", err)
	}
	return &record, nil
}

// Like records that fromUser liked the note and notifies its owner.
// The like is the primary effect: once it is stored, a failed event
// publish is logged and absorbed rather than surfaced to the caller.
func (s *Service) Like(ctx context.Context, noteID, fromUser string) error {
	note, err := s.LookupNote(ctx, noteID)
	if err != nil {
		metrics.LikesTotal.WithLabelValues("like", "error").Inc()
		return err
	}

	like := &domain.Like{
		NoteID: noteID,
		UserID: fromUser,
	}
	if err := like.Validate(); err != nil {
		metrics.LikesTotal.WithLabelValues("like", "error").Inc()
		return err
	}

	if err := s.likes.Add(ctx, like); err != nil {
		if errors.Is(err, domain.ErrAlreadyLiked) {
			metrics.LikesTotal.WithLabelValues("like", "duplicate").Inc()
			return err
		}
		metrics.LikesTotal.WithLabelValues("like", "error").Inc()
		return fmt.Errorf("store like: %w", err)
	}
	metrics.LikesTotal.WithLabelValues("like", "ok").Inc()

	s.invalidateCount(ctx, noteID)

	env := &event.Envelope{
		Type:      event.TypeNoteLiked,
		NoteID:    noteID,
		FromUser:  fromUser,
		UserID:    note.UserID,
		NoteTitle: note.Title,
	}
	if err := s.publisher.Publish(ctx, env); err != nil {
		s.logger.Error("failed to publish like event",
			"noteId", noteID,
			"fromUser", fromUser,
			"error", err)
	}

	return nil
}

// Unlike removes fromUser's like from the note. No event is emitted;
// retracting a like does not warrant a notification.
func (s *Service) Unlike(ctx context.Context, noteID, fromUser string) error {
	if err := s.likes.Remove(ctx, noteID, fromUser); err != nil {
		metrics.LikesTotal.WithLabelValues("unlike", "error").Inc()
		return fmt.Errorf("remove like: %w", err)
	}
	metrics.LikesTotal.WithLabelValues("unlike", "ok").Inc()

	s.invalidateCount(ctx, noteID)
	return nil
}

// LikesForNote returns the like count for a note, reading through the
// cache. Cache errors degrade to the repository rather than failing the
// read.
func (s *Service) LikesForNote(ctx context.Context, noteID string) (int, error) {
	count, ok, err := s.cache.Get(ctx, noteID)
	if err != nil {
		s.logger.Warn("like count cache read failed", "noteId", noteID, "error", err)
		metrics.LikeCountCacheTotal.WithLabelValues("error").Inc()
	} else if ok {
		metrics.LikeCountCacheTotal.WithLabelValues("hit").Inc()
		return count, nil
	} else {
		metrics.LikeCountCacheTotal.WithLabelValues("miss").Inc()
	}

	count, err = s.likes.CountByNote(ctx, noteID)
	if err != nil {
		return 0, fmt.Errorf("count likes: %w", err)
	}

	if err := s.cache.Set(ctx, noteID, count, s.cacheTTL); err != nil {
		s.logger.Warn("like count cache write failed", "noteId", noteID, "error", err)
	}

	return count, nil
}

// LikesByUser retrieves all likes made by a user.
func (s *Service) LikesByUser(ctx context.Context, userID string) ([]*domain.Like, error) {
	return s.likes.ListByUser(ctx, userID)
}

// Share notifies a note's owner that fromUser shared it. An empty message
// lets the consumer render a default. Shares are not persisted locally;
// the event is the whole effect, so a publish failure is surfaced.
func (s *Service) Share(ctx context.Context, noteID, fromUser, message string) error {
	note, err := s.LookupNote(ctx, noteID)
	if err != nil {
		return err
	}

	env := &event.Envelope{
		Type:      event.TypeNoteShared,
		NoteID:    noteID,
		FromUser:  fromUser,
		UserID:    note.UserID,
		NoteTitle: note.Title,
		Message:   message,
	}
	if err := s.publisher.Publish(ctx, env); err != nil {
		return fmt.Errorf("publish share event: %w", err)
	}
	return nil
}

func (s *Service) invalidateCount(ctx context.Context, noteID string) {
	if err := s.cache.Invalidate(ctx, noteID); err != nil {
		s.logger.Warn("like count cache invalidation failed", "noteId", noteID, "error", err)
	}
}
