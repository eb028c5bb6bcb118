// Package notifier consumes social events and materializes them into
// notification records. Delivery is at least once: the consumer settles
// every message itself, and only a successful persist earns an ack.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"notemesh/internal/broker"
	"notemesh/internal/domain"
	"notemesh/internal/event"
	"notemesh/internal/metrics"
	"notemesh/internal/store"
)

// Consumer subscribes to the event queue and turns envelopes into
// stored notifications.
type Consumer struct {
	transport broker.Transport
	queue     string
	durable   bool
	repo      store.NotificationRepository
	logger    *slog.Logger
}

// NewConsumer creates an event consumer writing to the given repository.
func NewConsumer(transport broker.Transport, queue string, durable bool, repo store.NotificationRepository, logger *slog.Logger) *Consumer {
	return &Consumer{
		transport: transport,
		queue:     queue,
		durable:   durable,
		repo:      repo,
		logger:    logger,
	}
}

// Start declares the event queue and begins consuming. The subscription
// ends when ctx is canceled or the transport closes.
func (c *Consumer) Start(ctx context.Context) error {
	if err := c.transport.DeclareQueue(ctx, c.queue, c.durable); err != nil {
		return fmt.Errorf("declare event queue %q: %w", c.queue, err)
	}
	if err := c.transport.Consume(ctx, c.queue, c.handleDelivery); err != nil {
		return fmt.Errorf("consume event queue %q: %w", c.queue, err)
	}
	c.logger.Info("event consumer started", "queue", c.queue)
	return nil
}

// handleDelivery processes one event: decode, dispatch by type, persist,
// ack. Malformed bodies and unknown types are acknowledged and dropped so
// they never wedge the queue; only persist failures are requeued.
func (c *Consumer) handleDelivery(ctx context.Context, d broker.Delivery) {
	var env event.Envelope
	if err := json.Unmarshal(d.Body, &env); err != nil {
		c.logger.Warn("dropping malformed event", "error", err)
		metrics.EventDecodeFailuresTotal.Inc()
		metrics.EventsConsumedTotal.WithLabelValues("invalid", "dropped_malformed").Inc()
		c.ack(&d)
		return
	}

	// Unknown types are acknowledged and ignored, not treated as errors:
	// a newer producer must never wedge an older consumer.
	message, ok := renderMessage(&env)
	if !ok {
		c.logger.Info("ignoring unknown event type", "type", string(env.Type))
		metrics.EventsConsumedTotal.WithLabelValues(string(env.Type), "dropped_unknown").Inc()
		c.ack(&d)
		return
	}

	if err := env.Validate(); err != nil {
		c.logger.Warn("dropping invalid event", "type", string(env.Type), "error", err)
		metrics.EventDecodeFailuresTotal.Inc()
		metrics.EventsConsumedTotal.WithLabelValues(string(env.Type), "dropped_malformed").Inc()
		c.ack(&d)
		return
	}

	notification := &domain.Notification{
		UserID:  env.UserID,
		Message: message,
	}

	start := time.Now()
	if err := c.repo.Create(ctx, notification); err != nil {
		c.logger.Error("failed to persist notification, requeuing event",
			"type", string(env.Type),
			"noteId", env.NoteID,
			"redelivered", d.Redelivered,
			"error", err)
		metrics.EventsConsumedTotal.WithLabelValues(string(env.Type), "retried").Inc()
		if err := d.Nack(true); err != nil {
			c.logger.Error("failed to nack event", "error", err)
		}
		return
	}
	metrics.NotificationPersistLatency.Observe(time.Since(start).Seconds())
	metrics.NotificationsCreatedTotal.Inc()
	metrics.EventsConsumedTotal.WithLabelValues(string(env.Type), "persisted").Inc()

	c.logger.Info("notification created",
		"id", notification.ID,
		"userId", notification.UserID,
		"type", string(env.Type))
	c.ack(&d)
}

// renderMessage builds the notification text for a known event type.
// The second return is false for types this consumer does not understand.
func renderMessage(env *event.Envelope) (string, bool) {
	switch env.Type {
	case event.TypeNoteLiked:
		return fmt.Sprintf("%s liked your note %q", env.FromUser, env.NoteTitle), true
	case event.TypeNoteShared:
		if env.Message != "" {
			return env.Message, true
		}
		return fmt.Sprintf("%s shared your note %q", env.FromUser, env.NoteTitle), true
	default:
		return "", false
	}
}

func (c *Consumer) ack(d *broker.Delivery) {
	if err := d.Ack(); err != nil {
		c.logger.Error("failed to ack event", "error", err)
	}
}
