package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"notemesh/internal/domain"
)

// NoteRepository implements store.NoteRepository using PostgreSQL.
type NoteRepository struct {
	db *DB
}

// NewNoteRepository creates a new PostgreSQL-backed note repository.
func NewNoteRepository(db *DB) *NoteRepository {
	return &NoteRepository{db: db}
}

// Create stores a new note.
func (r *NoteRepository) Create(ctx context.Context, note *domain.Note) error {
	query := `
		INSERT INTO notes (note_id, title, description, status, user_id, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
	`

	_, err := r.db.pool.Exec(ctx, query,
		note.NoteID,
		note.Title,
		note.Description,
		note.Status,
		note.UserID,
	)

	if err != nil {
		return fmt.Errorf("failed to create note: %w", err)
	}

	return nil
}

// Update modifies an existing note's title, description and status.
func (r *NoteRepository) Update(ctx context.Context, note *domain.Note) error {
	query := `
		UPDATE notes SET title = $2, description = $3, status = $4
		WHERE note_id = $1
	`

	result, err := r.db.pool.Exec(ctx, query,
		note.NoteID,
		note.Title,
		note.Description,
		note.Status,
	)

	if err != nil {
		return fmt.Errorf("failed to update note: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrNoteNotFound
	}

	return nil
}

// Delete removes a note by its id.
func (r *NoteRepository) Delete(ctx context.Context, noteID string) error {
	result, err := r.db.pool.Exec(ctx, `DELETE FROM notes WHERE note_id = $1`, noteID)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrNoteNotFound
	}

	return nil
}

// GetByID retrieves a note by its id.
func (r *NoteRepository) GetByID(ctx context.Context, noteID string) (*domain.Note, error) {
	query := `
		SELECT note_id, title, description, status, user_id, created_at
		FROM notes
		WHERE note_id = $1
	`

	row := r.db.pool.QueryRow(ctx, query, noteID)

	var note domain.Note
	err := row.Scan(
		&note.NoteID,
		&note.Title,
		&note.Description,
		&note.Status,
		&note.UserID,
		&note.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNoteNotFound
		}
		return nil, fmt.Errorf("failed to get note: %w", err)
	}

	return &note, nil
}

// List retrieves all notes.
func (r *NoteRepository) List(ctx context.Context) ([]*domain.Note, error) {
	query := `
		SELECT note_id, title, description, status, user_id, created_at
		FROM notes
		ORDER BY created_at DESC
	`

	rows, err := r.db.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	var notes []*domain.Note
	for rows.Next() {
		var note domain.Note
		err := rows.Scan(
			&note.NoteID,
			&note.Title,
			&note.Description,
			&note.Status,
			&note.UserID,
			&note.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, &note)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notes: %w", err)
	}

	return notes, nil
}
