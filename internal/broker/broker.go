// Package broker defines the message transport contract for NoteMesh.
// This abstraction allows swapping implementations (RabbitMQ, in-memory)
// without changing the RPC or event layers built on top of it.
package broker

import (
	"context"
	"errors"
)

// Errors returned by transport implementations.
var (
	// ErrConflict indicates a queue was redeclared with conflicting
	// parameters (typically a durability mismatch between deployments).
	ErrConflict = errors.New("queue declared with conflicting parameters")

	// ErrClosed indicates the transport is closed or currently
	// disconnected from the broker. Publishes fail fast with this error
	// instead of blocking until a reconnect.
	ErrClosed = errors.New("broker connection is closed")
)

// Publishing is an outbound message.
type Publishing struct {
	// Body is the message payload.
	Body []byte

	// CorrelationID links a reply to the request that caused it.
	CorrelationID string

	// ReplyTo names the queue the consumer should send a reply to.
	ReplyTo string

	// ContentType describes the payload encoding, e.g. "application/json".
	ContentType string
}

// Delivery is an inbound message. The handler owns its acknowledgment:
// every delivery must be either Acked or Nacked exactly once. Unacked
// messages are redelivered after reconnect - this is the system's sole
// durability and retry mechanism.
type Delivery struct {
	Body          []byte
	CorrelationID string
	ReplyTo       string

	// Redelivered is true if the broker has delivered this message before.
	Redelivered bool

	acker Acker
}

// Acker settles a delivery with the broker.
type Acker interface {
	Ack() error
	Nack(requeue bool) error
}

// NewDelivery constructs a Delivery bound to the given acker.
// Transport implementations use this; handlers only consume deliveries.
func NewDelivery(body []byte, correlationID, replyTo string, redelivered bool, acker Acker) Delivery {
	return Delivery{
		Body:          body,
		CorrelationID: correlationID,
		ReplyTo:       replyTo,
		Redelivered:   redelivered,
		acker:         acker,
	}
}

// Ack confirms successful processing of the delivery.
func (d *Delivery) Ack() error {
	if d.acker == nil {
		return nil
	}
	return d.acker.Ack()
}

// Nack rejects the delivery. With requeue true the broker redelivers it.
func (d *Delivery) Nack(requeue bool) error {
	if d.acker == nil {
		return nil
	}
	return d.acker.Nack(requeue)
}

// Handler processes a single delivery. It must settle the delivery via
// Ack or Nack before returning.
type Handler func(ctx context.Context, d Delivery)

// Transport is the broker connection facade. All publishes and queue
// declarations from a process funnel through it; implementations must be
// safe for concurrent use.
type Transport interface {
	// DeclareQueue creates the named queue if it does not exist.
	// Redeclaring with identical parameters is a no-op; redeclaring with
	// conflicting parameters fails with ErrConflict.
	DeclareQueue(ctx context.Context, name string, durable bool) error

	// DeclareReplyQueue creates a transient, exclusive, server-named
	// queue owned by this connection and returns its name.
	DeclareReplyQueue(ctx context.Context) (string, error)

	// Publish delivers a message to the named queue. It returns only
	// after the broker confirms receipt, or ErrClosed while disconnected.
	Publish(ctx context.Context, queue string, p Publishing) error

	// Consume subscribes the handler to the named queue. Each delivered
	// message invokes the handler once; the subscription survives
	// reconnects and ends when ctx is canceled or the transport closes.
	Consume(ctx context.Context, queue string, h Handler) error

	// NotifyReconnect registers a channel signaled each time the transport
	// re-establishes a lost broker connection. Well-known queue
	// subscriptions are restored by the transport itself; owners of
	// server-named queues must re-declare them on this signal, since those
	// queues die with the connection. Pass a buffered channel: a signal is
	// dropped, not queued, when the channel is full. Returns the channel.
	NotifyReconnect(ch chan struct{}) chan struct{}

	// Close tears down the connection and all subscriptions.
	Close() error
}
