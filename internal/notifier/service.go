package notifier

import (
	"context"
	"log/slog"

	"notemesh/internal/domain"
	"notemesh/internal/store"
)

// Service serves the read side of notifications over the same repository
// the consumer writes to.
type Service struct {
	repo   store.NotificationRepository
	logger *slog.Logger
}

// NewService creates a new notification service.
func NewService(repo store.NotificationRepository, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// ListForUser retrieves a user's notifications, newest first.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]*domain.Notification, error) {
	return s.repo.ListByUser(ctx, userID)
}

// MarkRead flags a notification as read.
func (s *Service) MarkRead(ctx context.Context, id int64) error {
	return s.repo.MarkRead(ctx, id)
}
