package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"notemesh/internal/domain"
)

// uniqueViolation is the PostgreSQL error code for a unique constraint hit.
const uniqueViolation = "23505"

// LikeRepository implements store.LikeRepository using PostgreSQL.
type LikeRepository struct {
	db *DB
}

// NewLikeRepository creates a new PostgreSQL-backed like repository.
func NewLikeRepository(db *DB) *LikeRepository {
	return &LikeRepository{db: db}
}

// Add records a like. A duplicate pair maps to domain.ErrAlreadyLiked.
func (r *LikeRepository) Add(ctx context.Context, like *domain.Like) error {
	query := `
		INSERT INTO likes (note_id, user_id, created_at)
		VALUES ($1, $2, now())
	`

	_, err := r.db.pool.Exec(ctx, query, like.NoteID, like.UserID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrAlreadyLiked
		}
		return fmt.Errorf("failed to add like: %w", err)
	}

	return nil
}

// Remove deletes a like.
func (r *LikeRepository) Remove(ctx context.Context, noteID, userID string) error {
	query := `DELETE FROM likes WHERE note_id = $1 AND user_id = $2`

	if _, err := r.db.pool.Exec(ctx, query, noteID, userID); err != nil {
		return fmt.Errorf("failed to remove like: %w", err)
	}

	return nil
}

// CountByNote returns the number of likes for a note.
func (r *LikeRepository) CountByNote(ctx context.Context, noteID string) (int, error) {
	var count int
	err := r.db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM likes WHERE note_id = $1`, noteID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count likes: %w", err)
	}

	return count, nil
}

// ListByUser retrieves all likes made by a user.
func (r *LikeRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Like, error) {
	query := `
		SELECT note_id, user_id, created_at
		FROM likes
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list likes: %w", err)
	}
	defer rows.Close()

	var likes []*domain.Like
	for rows.Next() {
		var like domain.Like
		if err := rows.Scan(&like.NoteID, &like.UserID, &like.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan like: %w", err)
		}
		likes = append(likes, &like)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating likes: %w", err)
	}

	return likes, nil
}
