package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"notemesh/internal/domain"
)

// NotificationRepository is an in-memory implementation of
// store.NotificationRepository.
type NotificationRepository struct {
	mu            sync.RWMutex
	notifications []*domain.Notification
	nextID        int64

	// failNext simulates a storage outage for tests; when set, Create
	// fails this many times before succeeding again.
	failNext int
}

// NewNotificationRepository creates a new in-memory notification repository.
func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{
		nextID: 1,
	}
}

// Create stores a new notification and assigns its id.
func (r *NotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failNext > 0 {
		r.failNext--
		return errPersistUnavailable
	}

	n.ID = r.nextID
	r.nextID++
	n.IsRead = false
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	stored := *n
	r.notifications = append(r.notifications, &stored)
	return nil
}

// ListByUser retrieves a user's notifications, newest first.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*domain.Notification
	for _, n := range r.notifications {
		if n.UserID == userID {
			copied := *n
			result = append(result, &copied)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

// MarkRead sets a notification's read flag.
func (r *NotificationRepository) MarkRead(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, n := range r.notifications {
		if n.ID == id {
			n.IsRead = true
			return nil
		}
	}
	return domain.ErrNotificationNotFound
}

// Count returns the total number of stored notifications.
// Useful for duplicate-delivery tests.
func (r *NotificationRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.notifications)
}

// FailNext makes the next n Create calls fail, simulating a storage outage.
func (r *NotificationRepository) FailNext(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failNext = n
}
