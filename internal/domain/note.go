// Package domain contains the core business entities for NoteMesh.
// These models represent notes, social interactions and the notifications
// derived from them.
package domain

import (
	"errors"
	"time"
)

// Note is a user-authored note. Notes are owned by the notes service;
// other services see them only through the RPC lookup.
type Note struct {
	// NoteID is the client-supplied identifier, unique across the system.
	NoteID string `json:"noteId"`

	// Title is the display title of the note.
	Title string `json:"title"`

	// Description is the note body.
	Description string `json:"description"`

	// Status is the workflow state of the note, e.g. "active" or "done".
	Status string `json:"status"`

	// UserID identifies the note's owner.
	UserID string `json:"userId"`

	CreatedAt time.Time `json:"createdAt"`
}

// Validation errors for Note.
var (
	ErrEmptyNoteID      = errors.New("noteId is required")
	ErrEmptyTitle       = errors.New("title is required")
	ErrEmptyDescription = errors.New("description is required")
	ErrEmptyStatus      = errors.New("status is required")
	ErrEmptyUserID      = errors.New("userId is required")
)

// ErrNoteNotFound indicates no note exists for the requested id.
var ErrNoteNotFound = errors.New("note not found")

// Validate checks if the note has all required fields.
// Returns an error describing the first validation failure, or nil if valid.
func (n *Note) Validate() error {
	if n.NoteID == "" {
		return ErrEmptyNoteID
	}
	if n.Title == "" {
		return ErrEmptyTitle
	}
	if n.Description == "" {
		return ErrEmptyDescription
	}
	if n.Status == "" {
		return ErrEmptyStatus
	}
	if n.UserID == "" {
		return ErrEmptyUserID
	}
	return nil
}
