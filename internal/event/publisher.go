package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"notemesh/internal/broker"
	"notemesh/internal/metrics"
)

// Publisher serializes event envelopes and publishes them to the event
// queue. Publish returns once the broker confirms receipt; it does not
// wait for or expect any consumer-side reply.
type Publisher struct {
	transport broker.Transport
	queue     string
	logger    *slog.Logger
}

// NewPublisher declares the event queue and returns a publisher for it.
func NewPublisher(ctx context.Context, transport broker.Transport, queue string, durable bool, logger *slog.Logger) (*Publisher, error) {
	if err := transport.DeclareQueue(ctx, queue, durable); err != nil {
		return nil, fmt.Errorf("declare event queue: %w", err)
	}

	return &Publisher{
		transport: transport,
		queue:     queue,
		logger:    logger,
	}, nil
}

// Publish sends the envelope to the event queue. Callers on the request
// path treat a publish error as best-effort: log and continue, never fail
// the primary request over a lost notification.
func (p *Publisher) Publish(ctx context.Context, env *Envelope) error {
	if err := env.Validate(); err != nil {
		metrics.EventsPublishedTotal.WithLabelValues(string(env.Type), "error").Inc()
		return fmt.Errorf("invalid event: %w", err)
	}

	body, err := json.Marshal(env)
	if err != nil {
		metrics.EventsPublishedTotal.WithLabelValues(string(env.Type), "error").Inc()
		return fmt.Errorf("serialize event: %w", err)
	}

	if err := p.transport.Publish(ctx, p.queue, broker.Publishing{
		Body:        body,
		ContentType: "application/json",
	}); err != nil {
		metrics.EventsPublishedTotal.WithLabelValues(string(env.Type), "error").Inc()
		return fmt.Errorf("publish event: %w", err)
	}

	metrics.EventsPublishedTotal.WithLabelValues(string(env.Type), "ok").Inc()
	p.logger.Debug("event published",
		"type", env.Type,
		"noteId", env.NoteID,
		"userId", env.UserID,
	)

	return nil
}
