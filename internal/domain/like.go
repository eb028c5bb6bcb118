package domain

import (
	"errors"
	"time"
)

// Like records that a user liked a note. The (NoteID, UserID) pair is
// unique; liking the same note twice is rejected.
type Like struct {
	NoteID    string    `json:"noteId"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Validation and persistence errors for Like.
var (
	// ErrAlreadyLiked indicates the user has already liked this note.
	ErrAlreadyLiked = errors.New("note already liked by this user")

	ErrLikeEmptyNoteID = errors.New("noteId is required")
	ErrLikeEmptyUserID = errors.New("userId is required")
)

// Validate checks if the like has all required fields.
func (l *Like) Validate() error {
	if l.NoteID == "" {
		return ErrLikeEmptyNoteID
	}
	if l.UserID == "" {
		return ErrLikeEmptyUserID
	}
	return nil
}
