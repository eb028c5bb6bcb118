// Package memory provides an in-process implementation of the broker
// transport. This is useful for testing and development without a running
// RabbitMQ instance.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"notemesh/internal/broker"
)

// message is the unit stored in a queue.
type message struct {
	body          []byte
	correlationID string
	replyTo       string
	redelivered   bool
}

// queue is a single named in-memory queue backed by a bounded channel.
type queue struct {
	name     string
	durable  bool
	messages chan message
}

// Transport is an in-memory implementation of broker.Transport.
// Messages are stored in bounded channels, giving the same backpressure
// behavior as broker prefetch. Safe for concurrent use.
type Transport struct {
	mu      sync.Mutex
	queues  map[string]*queue
	bufSize int
	closed  bool
	wg      sync.WaitGroup
}

// NewTransport creates a new in-memory transport. The buffer size bounds
// each queue; Publish blocks when a queue is full until space is available
// or the context is canceled.
func NewTransport(bufferSize int) *Transport {
	return &Transport{
		queues:  make(map[string]*queue),
		bufSize: bufferSize,
	}
}

// DeclareQueue creates the named queue if absent. Redeclaring with a
// different durability flag fails with broker.ErrConflict, mirroring the
// broker's precondition check.
func (t *Transport) DeclareQueue(ctx context.Context, name string, durable bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return broker.ErrClosed
	}

	if q, ok := t.queues[name]; ok {
		if q.durable != durable {
			return fmt.Errorf("declare queue %q: %w", name, broker.ErrConflict)
		}
		return nil
	}

	t.queues[name] = &queue{
		name:     name,
		durable:  durable,
		messages: make(chan message, t.bufSize),
	}
	return nil
}

// DeclareReplyQueue creates a transient queue with a generated name.
func (t *Transport) DeclareReplyQueue(ctx context.Context) (string, error) {
	name := "amq.gen-" + uuid.New().String()
	if err := t.DeclareQueue(ctx, name, false); err != nil {
		return "", err
	}
	return name, nil
}

// Publish enqueues a message. Publishing to an undeclared queue creates it
// transiently, matching the broker's default-exchange behavior closely
// enough for tests while never silently dropping.
func (t *Transport) Publish(ctx context.Context, queueName string, p broker.Publishing) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return broker.ErrClosed
	}
	q, ok := t.queues[queueName]
	if !ok {
		q = &queue{
			name:     queueName,
			messages: make(chan message, t.bufSize),
		}
		t.queues[queueName] = q
	}
	t.mu.Unlock()

	msg := message{
		body:          p.Body,
		correlationID: p.CorrelationID,
		replyTo:       p.ReplyTo,
	}

	select {
	case q.messages <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume reads messages from the named queue and invokes the handler for
// each one in a background goroutine until ctx is canceled.
func (t *Transport) Consume(ctx context.Context, queueName string, h broker.Handler) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return broker.ErrClosed
	}
	q, ok := t.queues[queueName]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("consume: queue %q not declared", queueName)
	}
	t.mu.Unlock()

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-q.messages:
				if !ok {
					return
				}
				d := broker.NewDelivery(
					msg.body,
					msg.correlationID,
					msg.replyTo,
					msg.redelivered,
					&acker{q: q, msg: msg},
				)
				h(ctx, d)
			}
		}
	}()

	return nil
}

// NotifyReconnect implements broker.Transport. The in-process transport
// never loses a connection, so the channel is never signaled.
func (t *Transport) NotifyReconnect(ch chan struct{}) chan struct{} {
	return ch
}

// Len returns the current number of messages in the named queue.
// Useful for tests to verify queue state.
func (t *Transport) Len(queueName string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if q, ok := t.queues[queueName]; ok {
		return len(q.messages)
	}
	return 0
}

// Close shuts down the transport. Subsequent publishes fail with
// broker.ErrClosed.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()
	return nil
}

// acker settles a delivery; Nack with requeue puts the message back on
// the queue flagged as redelivered.
type acker struct {
	q   *queue
	msg message
}

func (a *acker) Ack() error {
	return nil
}

func (a *acker) Nack(requeue bool) error {
	if !requeue {
		return nil
	}
	msg := a.msg
	msg.redelivered = true
	select {
	case a.q.messages <- msg:
		return nil
	default:
		return fmt.Errorf("requeue: queue %q full", a.q.name)
	}
}
