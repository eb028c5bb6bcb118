// Package store defines the persistence interfaces for NoteMesh.
// Production deployments back these with PostgreSQL and Redis; tests and
// memory mode use the in-memory twins.
package store

import (
	"context"
	"time"

	"notemesh/internal/domain"
)

// NoteRepository defines the interface for persistent note storage.
type NoteRepository interface {
	// Create stores a new note.
	Create(ctx context.Context, note *domain.Note) error

	// Update modifies an existing note's title, description and status.
	Update(ctx context.Context, note *domain.Note) error

	// Delete removes a note by its id.
	Delete(ctx context.Context, noteID string) error

	// GetByID retrieves a note by its id.
	GetByID(ctx context.Context, noteID string) (*domain.Note, error)

	// List retrieves all notes.
	List(ctx context.Context) ([]*domain.Note, error)
}

// LikeRepository defines the interface for like persistence.
type LikeRepository interface {
	// Add records a like. A duplicate (noteID, userID) pair fails with
	// domain.ErrAlreadyLiked.
	Add(ctx context.Context, like *domain.Like) error

	// Remove deletes a like.
	Remove(ctx context.Context, noteID, userID string) error

	// CountByNote returns the number of likes for a note.
	CountByNote(ctx context.Context, noteID string) (int, error)

	// ListByUser retrieves all likes made by a user.
	ListByUser(ctx context.Context, userID string) ([]*domain.Like, error)
}

// NotificationRepository defines the interface for notification persistence.
type NotificationRepository interface {
	// Create stores a new notification, assigning its id.
	Create(ctx context.Context, n *domain.Notification) error

	// ListByUser retrieves a user's notifications, newest first.
	ListByUser(ctx context.Context, userID string) ([]*domain.Notification, error)

	// MarkRead sets a notification's read flag.
	MarkRead(ctx context.Context, id int64) error
}

// LikeCountCache caches per-note like counts on the hot read path.
type LikeCountCache interface {
	// Get returns the cached count and whether it was present.
	Get(ctx context.Context, noteID string) (int, bool, error)

	// Set stores the count with the given TTL.
	Set(ctx context.Context, noteID string, count int, ttl time.Duration) error

	// Invalidate drops the cached count for a note.
	Invalidate(ctx context.Context, noteID string) error
}
