// Package event defines the social event envelope and its fire-and-forget
// publisher. Events are produced by the social service and consumed at
// least once by the notification materializer; an envelope is immutable
// once published.
package event

import (
	"errors"
)

// Type discriminates event envelopes. Consumers acknowledge and ignore
// unknown types so new types never crash old consumers.
type Type string

const (
	// TypeNoteLiked is emitted when a user likes a note.
	TypeNoteLiked Type = "note_liked"
	// TypeNoteShared is emitted when a user shares a note.
	TypeNoteShared Type = "note_shared"
)

// IsValid returns true if the type is a known valid value.
func (t Type) IsValid() bool {
	switch t {
	case TypeNoteLiked, TypeNoteShared:
		return true
	default:
		return false
	}
}

// Envelope is the wire format of a social event. Field names follow the
// queue contract shared with the other services; the mixed naming is part
// of that contract.
type Envelope struct {
	// Type is the mandatory event discriminator.
	Type Type `json:"type"`

	// NoteID identifies the note the event refers to.
	NoteID string `json:"noteId"`

	// FromUser is the user who performed the action.
	FromUser string `json:"fromUser"`

	// UserID is the recipient, i.e. the note's owner.
	UserID string `json:"user_id"`

	// NoteTitle carries the note title for rendering, when known.
	NoteTitle string `json:"noteTitle,omitempty"`

	// Message carries pre-rendered text for event types that have one.
	Message string `json:"message,omitempty"`
}

// Validation errors for Envelope.
var (
	ErrInvalidType = errors.New("event type must be 'note_liked' or 'note_shared'")
	ErrEmptyNoteID = errors.New("noteId is required")
	ErrEmptyUser   = errors.New("fromUser is required")
	ErrEmptyTarget = errors.New("user_id is required")
)

// Validate checks if the envelope has all required fields.
func (e *Envelope) Validate() error {
	if !e.Type.IsValid() {
		return ErrInvalidType
	}
	if e.NoteID == "" {
		return ErrEmptyNoteID
	}
	if e.FromUser == "" {
		return ErrEmptyUser
	}
	if e.UserID == "" {
		return ErrEmptyTarget
	}
	return nil
}
