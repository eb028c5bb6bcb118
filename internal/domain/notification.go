package domain

import (
	"errors"
	"time"
)

// Notification is a persisted message for a user, materialized from a
// social event. Notifications are created only by the event consumer,
// never directly by a client request.
type Notification struct {
	// ID is generated by the store on persist.
	ID int64 `json:"id"`

	// UserID identifies the recipient.
	UserID string `json:"userId"`

	// Message is the rendered notification text.
	Message string `json:"message"`

	// IsRead is false until the user marks the notification read.
	IsRead bool `json:"isRead"`

	CreatedAt time.Time `json:"createdAt"`
}

// ErrNotificationNotFound indicates no notification exists for the id.
var ErrNotificationNotFound = errors.New("notification not found")
