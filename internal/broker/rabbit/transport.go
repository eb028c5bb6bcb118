// Package rabbit provides the RabbitMQ-based implementation of the broker
// transport. It owns the single AMQP connection for the process: every
// publish, declare and acknowledgment funnels through it, and it handles
// reconnecting with backoff when the broker connection drops.
package rabbit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"notemesh/internal/broker"
	"notemesh/internal/config"
)

// Transport implements broker.Transport over a RabbitMQ connection.
type Transport struct {
	cfg    *config.BrokerConfig
	logger *slog.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	pubCh   *amqp.Channel
	ready   bool
	subs    []*subscription
	reconns []chan struct{}

	closed chan struct{}
	once   sync.Once
}

// subscription records an active consumer so it can be re-established
// after a reconnect.
type subscription struct {
	ctx     context.Context
	queue   string
	handler broker.Handler
}

// Dial connects to the broker, retrying per the configured retry count and
// backoff. Exhausting the retries is fatal: the caller is expected to abort
// service startup, since none of the services has value without messaging.
func Dial(cfg *config.BrokerConfig, logger *slog.Logger) (*Transport, error) {
	t := &Transport{
		cfg:    cfg,
		logger: logger,
		closed: make(chan struct{}),
	}

	backoff := cfg.ConnectBackoff
	var lastErr error
	for attempt := 1; attempt <= cfg.ConnectRetries; attempt++ {
		if err := t.connect(); err != nil {
			lastErr = err
			logger.Warn("broker connection failed",
				"attempt", attempt,
				"retries", cfg.ConnectRetries,
				"backoff", backoff,
				"error", err,
			)
			// Back off only between attempts; the final failure
			// surfaces immediately.
			if attempt < cfg.ConnectRetries {
				time.Sleep(backoff)
				backoff = nextBackoff(backoff, cfg.MaxBackoff)
			}
			continue
		}

		logger.Info("connected to broker", "url", redactURL(cfg.URL))
		go t.monitor()
		return t, nil
	}

	return nil, fmt.Errorf("broker unreachable after %d attempts: %w", cfg.ConnectRetries, lastErr)
}

// connect establishes the connection and the shared publisher channel in
// confirm mode, so Publish can wait for the broker's ack.
func (t *Transport) connect() error {
	conn, err := amqp.Dial(t.cfg.URL)
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		conn.Close()
		return fmt.Errorf("enable publisher confirms: %w", err)
	}

	t.mu.Lock()
	t.conn = conn
	t.pubCh = ch
	t.ready = true
	t.mu.Unlock()

	return nil
}

// monitor watches for connection loss and reconnects with backoff,
// re-establishing every live subscription. While disconnected, Publish and
// DeclareQueue fail fast with broker.ErrClosed instead of hanging.
func (t *Transport) monitor() {
	for {
		t.mu.Lock()
		conn := t.conn
		t.mu.Unlock()

		closeCh := conn.NotifyClose(make(chan *amqp.Error, 1))

		select {
		case <-t.closed:
			return
		case amqpErr := <-closeCh:
			if amqpErr == nil {
				// Clean shutdown.
				return
			}
			t.logger.Error("broker connection lost", "error", amqpErr)
		}

		t.mu.Lock()
		t.ready = false
		t.mu.Unlock()

		backoff := t.cfg.ConnectBackoff
		for {
			select {
			case <-t.closed:
				return
			case <-time.After(backoff):
			}

			if err := t.connect(); err != nil {
				t.logger.Warn("broker reconnect failed", "backoff", backoff, "error", err)
				backoff = nextBackoff(backoff, t.cfg.MaxBackoff)
				continue
			}

			t.logger.Info("reconnected to broker")
			t.resubscribe()
			t.notifyReconnect()
			break
		}
	}
}

// resubscribe re-establishes all subscriptions whose contexts are still live.
func (t *Transport) resubscribe() {
	t.mu.Lock()
	subs := make([]*subscription, 0, len(t.subs))
	live := t.subs[:0]
	for _, sub := range t.subs {
		if sub.ctx.Err() == nil {
			subs = append(subs, sub)
			live = append(live, sub)
		}
	}
	t.subs = live
	t.mu.Unlock()

	for _, sub := range subs {
		if err := t.startConsumer(sub); err != nil {
			// Server-named queues die with the connection; their owners
			// re-declare on the reconnect signal and cancel the old
			// subscription's context, which drops it from the list.
			t.logger.Error("failed to resubscribe consumer", "queue", sub.queue, "error", err)
		}
	}
}

// NotifyReconnect registers a channel signaled after each successful
// reconnect, once the surviving subscriptions are restored.
func (t *Transport) NotifyReconnect(ch chan struct{}) chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reconns = append(t.reconns, ch)
	return ch
}

// notifyReconnect signals every registered listener without blocking.
func (t *Transport) notifyReconnect() {
	t.mu.Lock()
	listeners := make([]chan struct{}, len(t.reconns))
	copy(listeners, t.reconns)
	t.mu.Unlock()

	for _, ch := range listeners {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// DeclareQueue declares the named queue. Declarations are idempotent; a
// precondition failure from mismatched parameters maps to broker.ErrConflict,
// which callers treat as a fatal deployment mismatch.
func (t *Transport) DeclareQueue(ctx context.Context, name string, durable bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.ready {
		return broker.ErrClosed
	}

	_, err := t.pubCh.QueueDeclare(name, durable, false, false, false, nil)
	if err != nil {
		// A failed declare closes the channel; reopen so the transport
		// stays usable for the caller that reports the conflict.
		t.reopenChannelLocked()

		var amqpErr *amqp.Error
		if errors.As(err, &amqpErr) && amqpErr.Code == amqp.PreconditionFailed {
			return fmt.Errorf("declare queue %q: %w", name, broker.ErrConflict)
		}
		return fmt.Errorf("declare queue %q: %w", name, err)
	}

	return nil
}

// DeclareReplyQueue declares a server-named, exclusive, auto-delete queue
// owned by this connection. Replies outlive neither the caller nor the
// connection, so the queue is transient by design.
func (t *Transport) DeclareReplyQueue(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.ready {
		return "", broker.ErrClosed
	}

	q, err := t.pubCh.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		t.reopenChannelLocked()
		return "", fmt.Errorf("declare reply queue: %w", err)
	}

	return q.Name, nil
}

// Publish sends a message to the named queue via the default exchange and
// waits for the broker's publisher confirm. Publishes are serialized on the
// shared channel; AMQP channels are not safe for concurrent use.
func (t *Transport) Publish(ctx context.Context, queue string, p broker.Publishing) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.ready {
		return broker.ErrClosed
	}

	contentType := p.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	confirm, err := t.pubCh.PublishWithDeferredConfirmWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:   contentType,
		CorrelationId: p.CorrelationID,
		ReplyTo:       p.ReplyTo,
		Body:          p.Body,
		DeliveryMode:  amqp.Persistent,
	})
	if err != nil {
		return fmt.Errorf("publish to %q: %w", queue, err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("await confirm for %q: %w", queue, err)
	}
	if !acked {
		return fmt.Errorf("publish to %q: broker nacked message", queue)
	}

	return nil
}

// Consume subscribes the handler to the named queue with manual
// acknowledgment. The subscription is tracked so it survives reconnects;
// it ends when ctx is canceled or the transport closes.
func (t *Transport) Consume(ctx context.Context, queue string, h broker.Handler) error {
	sub := &subscription{ctx: ctx, queue: queue, handler: h}

	t.mu.Lock()
	if !t.ready {
		t.mu.Unlock()
		return broker.ErrClosed
	}
	t.subs = append(t.subs, sub)
	t.mu.Unlock()

	if err := t.startConsumer(sub); err != nil {
		// A subscription that never started must not linger in the list,
		// where a later reconnect would silently resurrect it.
		t.removeSub(sub)
		return err
	}
	return nil
}

// removeSub unregisters a subscription. Removing one that is not
// registered is a no-op.
func (t *Transport) removeSub(sub *subscription) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, s := range t.subs {
		if s == sub {
			t.subs = append(t.subs[:i], t.subs[i+1:]...)
			return
		}
	}
}

// startConsumer opens a dedicated channel for the subscription and pumps
// deliveries to the handler until the channel or the context closes.
func (t *Transport) startConsumer(sub *subscription) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open consumer channel for %q: %w", sub.queue, err)
	}

	if err := ch.Qos(t.cfg.Prefetch, 0, false); err != nil {
		ch.Close()
		return fmt.Errorf("set qos for %q: %w", sub.queue, err)
	}

	deliveries, err := ch.Consume(sub.queue, "", false, false, false, false, nil)
	if err != nil {
		ch.Close()
		return fmt.Errorf("consume %q: %w", sub.queue, err)
	}

	go func() {
		defer ch.Close()
		for {
			select {
			case <-sub.ctx.Done():
				return
			case <-t.closed:
				return
			case d, ok := <-deliveries:
				if !ok {
					// Channel closed; the monitor resubscribes
					// after reconnect.
					return
				}
				delivery := broker.NewDelivery(
					d.Body,
					d.CorrelationId,
					d.ReplyTo,
					d.Redelivered,
					&acker{d: d},
				)
				sub.handler(sub.ctx, delivery)
			}
		}
	}()

	return nil
}

// Close tears down the connection and stops the reconnect monitor.
func (t *Transport) Close() error {
	t.once.Do(func() { close(t.closed) })

	t.mu.Lock()
	defer t.mu.Unlock()

	t.ready = false
	if t.conn != nil && !t.conn.IsClosed() {
		return t.conn.Close()
	}
	return nil
}

// reopenChannelLocked replaces the publisher channel after an error that
// closed it. Callers must hold t.mu.
func (t *Transport) reopenChannelLocked() {
	if t.conn == nil || t.conn.IsClosed() {
		t.ready = false
		return
	}

	ch, err := t.conn.Channel()
	if err != nil {
		t.logger.Error("failed to reopen publisher channel", "error", err)
		t.ready = false
		return
	}
	if err := ch.Confirm(false); err != nil {
		t.logger.Error("failed to re-enable publisher confirms", "error", err)
		t.ready = false
		return
	}
	t.pubCh = ch
}

// acker settles an AMQP delivery.
type acker struct {
	d amqp.Delivery
}

func (a *acker) Ack() error {
	return a.d.Ack(false)
}

func (a *acker) Nack(requeue bool) error {
	return a.d.Nack(false, requeue)
}

// nextBackoff doubles the backoff up to the configured limit.
func nextBackoff(current, limit time.Duration) time.Duration {
	next := current * 2
	if next > limit {
		return limit
	}
	return next
}

// redactURL strips credentials from an AMQP URL for logging.
func redactURL(url string) string {
	if u, err := amqp.ParseURI(url); err == nil {
		u.Password = "xxxxx"
		return u.String()
	}
	return "amqp://***"
}
