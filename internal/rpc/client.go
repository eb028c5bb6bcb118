// Package rpc implements request/reply remote calls over a shared durable
// queue. A client publishes requests to a well-known queue carrying a
// correlation id and a private reply queue name; the server publishes the
// result back to that queue tagged with the same id. Correlation ids
// partition the reply stream, so concurrent calls never interfere even when
// replies arrive out of order.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"notemesh/internal/broker"
	"notemesh/internal/metrics"
)

// Errors surfaced to RPC callers.
var (
	// ErrTimeout indicates no reply arrived within the configured deadline.
	ErrTimeout = errors.New("rpc call timed out")

	// ErrDisconnected indicates the broker connection is down; calls fail
	// fast instead of hanging until timeout.
	ErrDisconnected = errors.New("rpc transport disconnected")
)

// Client issues calls against a well-known request queue. It owns a
// transient, exclusive reply queue and a correlation registry demuxing
// replies to the callers waiting on them. The reply queue dies with the
// broker connection, so the client re-declares a fresh one on every
// reconnect; calls in flight across the blip time out, later calls carry
// the new queue name.
type Client struct {
	transport    broker.Transport
	requestQueue string
	timeout      time.Duration
	reg          *registry
	logger       *slog.Logger

	mu          sync.Mutex
	replyQueue  string
	replyCancel context.CancelFunc
}

// NewClient declares the request queue and a private reply queue, then
// starts consuming replies. The consumer, the expiry sweep and the
// reconnect watcher run until ctx is canceled.
func NewClient(ctx context.Context, transport broker.Transport, requestQueue string, durable bool, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	if err := transport.DeclareQueue(ctx, requestQueue, durable); err != nil {
		return nil, fmt.Errorf("declare request queue: %w", err)
	}

	c := &Client{
		transport:    transport,
		requestQueue: requestQueue,
		timeout:      timeout,
		reg:          newRegistry(),
		logger:       logger,
	}

	if err := c.subscribeReplies(ctx); err != nil {
		return nil, err
	}

	go c.sweep(ctx)
	go c.watchReconnect(ctx)

	logger.Info("rpc client ready",
		"requestQueue", requestQueue,
		"replyQueue", c.currentReplyQueue(),
		"timeout", timeout,
	)

	return c, nil
}

// subscribeReplies declares a fresh server-named reply queue and consumes
// it, replacing any previous subscription. The old subscription's context
// is canceled so the transport stops tracking the dead queue.
func (c *Client) subscribeReplies(ctx context.Context) error {
	replyQueue, err := c.transport.DeclareReplyQueue(ctx)
	if err != nil {
		return fmt.Errorf("declare reply queue: %w", err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	if err := c.transport.Consume(subCtx, replyQueue, c.handleReply); err != nil {
		cancel()
		return fmt.Errorf("consume reply queue: %w", err)
	}

	c.mu.Lock()
	if c.replyCancel != nil {
		c.replyCancel()
	}
	c.replyQueue = replyQueue
	c.replyCancel = cancel
	c.mu.Unlock()

	return nil
}

// currentReplyQueue returns the reply queue requests are tagged with.
func (c *Client) currentReplyQueue() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.replyQueue
}

// watchReconnect restores the reply queue after each broker reconnect.
// Without this every post-reconnect call would publish a reply-to naming
// a queue that no longer exists and time out.
func (c *Client) watchReconnect(ctx context.Context) {
	reconnects := c.transport.NotifyReconnect(make(chan struct{}, 1))

	for {
		select {
		case <-ctx.Done():
			return
		case <-reconnects:
		}

		for {
			err := c.subscribeReplies(ctx)
			if err == nil {
				c.logger.Info("reply queue restored after reconnect",
					"replyQueue", c.currentReplyQueue())
				break
			}

			c.logger.Error("failed to restore reply queue after reconnect", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}
	}
}

// Call publishes the payload to the request queue and suspends the calling
// goroutine until a correlated reply arrives or the timeout elapses.
// A timed-out call releases its registry entry; its reply, should it arrive
// later, is discarded and never resurrected.
func (c *Client) Call(ctx context.Context, payload []byte) ([]byte, error) {
	correlationID := uuid.New().String()
	replyCh := c.reg.add(correlationID)
	start := time.Now()

	err := c.transport.Publish(ctx, c.requestQueue, broker.Publishing{
		Body:          payload,
		CorrelationID: correlationID,
		ReplyTo:       c.currentReplyQueue(),
	})
	if err != nil {
		c.reg.remove(correlationID)
		if errors.Is(err, broker.ErrClosed) {
			metrics.RPCCallsTotal.WithLabelValues(c.requestQueue, "disconnected").Inc()
			return nil, ErrDisconnected
		}
		metrics.RPCCallsTotal.WithLabelValues(c.requestQueue, "error").Inc()
		return nil, fmt.Errorf("publish request: %w", err)
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case reply := <-replyCh:
		metrics.RPCCallsTotal.WithLabelValues(c.requestQueue, "ok").Inc()
		metrics.RPCCallLatency.Observe(time.Since(start).Seconds())
		return reply, nil

	case <-timer.C:
		c.reg.remove(correlationID)
		c.logger.Warn("rpc call timed out",
			"requestQueue", c.requestQueue,
			"correlationID", correlationID,
			"timeout", c.timeout,
		)
		metrics.RPCCallsTotal.WithLabelValues(c.requestQueue, "timeout").Inc()
		return nil, ErrTimeout

	case <-ctx.Done():
		c.reg.remove(correlationID)
		metrics.RPCCallsTotal.WithLabelValues(c.requestQueue, "error").Inc()
		return nil, ctx.Err()
	}
}

// PendingCalls returns the number of in-flight calls. Useful for tests.
func (c *Client) PendingCalls() int {
	return c.reg.size()
}

// handleReply resolves the registry entry matching the reply's correlation
// id. Replies with no pending entry (late arrivals after timeout) are logged
// and discarded. Replies are always acked: redelivering a reply nobody waits
// for has no value.
func (c *Client) handleReply(ctx context.Context, d broker.Delivery) {
	defer func() {
		if err := d.Ack(); err != nil {
			c.logger.Error("failed to ack reply", "error", err)
		}
	}()

	if d.CorrelationID == "" {
		c.logger.Warn("discarding reply without correlation id")
		return
	}

	if !c.reg.resolve(d.CorrelationID, d.Body) {
		c.logger.Warn("discarding stale reply", "correlationID", d.CorrelationID)
		metrics.RPCStaleRepliesTotal.Inc()
	}
}

// sweep periodically evicts registry entries well past their deadline.
// The timeout path in Call removes entries deterministically; the sweep is
// a backstop bounding memory if a caller never ran it.
func (c *Client) sweep(ctx context.Context) {
	interval := 2 * c.timeout
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if expired := c.reg.expire(interval); expired > 0 {
				c.logger.Warn("expired stale rpc registry entries", "count", expired)
			}
		}
	}
}
