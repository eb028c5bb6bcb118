// Package memory provides in-memory implementations of the store
// interfaces for tests and memory mode.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"notemesh/internal/domain"
)

// NoteRepository is an in-memory implementation of store.NoteRepository.
type NoteRepository struct {
	mu    sync.RWMutex
	notes map[string]*domain.Note
}

// NewNoteRepository creates a new in-memory note repository.
func NewNoteRepository() *NoteRepository {
	return &NoteRepository{
		notes: make(map[string]*domain.Note),
	}
}

// Create stores a new note.
func (r *NoteRepository) Create(ctx context.Context, note *domain.Note) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *note
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	r.notes[note.NoteID] = &stored
	return nil
}

// Update modifies an existing note's title, description and status.
func (r *NoteRepository) Update(ctx context.Context, note *domain.Note) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.notes[note.NoteID]
	if !ok {
		return domain.ErrNoteNotFound
	}

	existing.Title = note.Title
	existing.Description = note.Description
	existing.Status = note.Status
	return nil
}

// Delete removes a note by its id.
func (r *NoteRepository) Delete(ctx context.Context, noteID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.notes[noteID]; !ok {
		return domain.ErrNoteNotFound
	}

	delete(r.notes, noteID)
	return nil
}

// GetByID retrieves a note by its id.
func (r *NoteRepository) GetByID(ctx context.Context, noteID string) (*domain.Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	note, ok := r.notes[noteID]
	if !ok {
		return nil, domain.ErrNoteNotFound
	}

	copied := *note
	return &copied, nil
}

// List retrieves all notes, newest first.
func (r *NoteRepository) List(ctx context.Context) ([]*domain.Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	notes := make([]*domain.Note, 0, len(r.notes))
	for _, note := range r.notes {
		copied := *note
		notes = append(notes, &copied)
	}

	sort.Slice(notes, func(i, j int) bool {
		return notes[i].CreatedAt.After(notes[j].CreatedAt)
	})

	return notes, nil
}
