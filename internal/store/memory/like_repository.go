package memory

import (
	"context"
	"sync"
	"time"

	"notemesh/internal/domain"
)

// likeKey identifies one (note, user) like pair.
type likeKey struct {
	noteID string
	userID string
}

// LikeRepository is an in-memory implementation of store.LikeRepository.
type LikeRepository struct {
	mu    sync.RWMutex
	likes map[likeKey]*domain.Like
}

// NewLikeRepository creates a new in-memory like repository.
func NewLikeRepository() *LikeRepository {
	return &LikeRepository{
		likes: make(map[likeKey]*domain.Like),
	}
}

// Add records a like. A duplicate pair fails with domain.ErrAlreadyLiked.
func (r *LikeRepository) Add(ctx context.Context, like *domain.Like) error {
	key := likeKey{noteID: like.NoteID, userID: like.UserID}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.likes[key]; ok {
		return domain.ErrAlreadyLiked
	}

	stored := *like
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	r.likes[key] = &stored
	return nil
}

// Remove deletes a like.
func (r *LikeRepository) Remove(ctx context.Context, noteID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.likes, likeKey{noteID: noteID, userID: userID})
	return nil
}

// CountByNote returns the number of likes for a note.
func (r *LikeRepository) CountByNote(ctx context.Context, noteID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var count int
	for key := range r.likes {
		if key.noteID == noteID {
			count++
		}
	}
	return count, nil
}

// ListByUser retrieves all likes made by a user.
func (r *LikeRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Like, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var likes []*domain.Like
	for key, like := range r.likes {
		if key.userID == userID {
			copied := *like
			likes = append(likes, &copied)
		}
	}
	return likes, nil
}
