package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"notemesh/internal/broker"
	"notemesh/internal/metrics"
)

// HandlerFunc processes one request payload and returns the reply body.
// Handlers must be idempotent or side-effect-free: deliveries are processed
// at least once, so a crash between handling and replying causes the same
// request to be handled again.
type HandlerFunc func(ctx context.Context, request []byte) ([]byte, error)

// Server consumes a well-known request queue, invokes the handler and
// publishes the result to the caller's reply queue tagged with the original
// correlation id. The request is acknowledged only after the reply publish
// succeeds, so a crash in between causes redelivery rather than a silently
// lost request.
type Server struct {
	transport broker.Transport
	queue     string
	durable   bool
	handler   HandlerFunc
	logger    *slog.Logger
}

// NewServer creates an RPC server for the named request queue.
func NewServer(transport broker.Transport, queue string, durable bool, handler HandlerFunc, logger *slog.Logger) *Server {
	return &Server{
		transport: transport,
		queue:     queue,
		durable:   durable,
		handler:   handler,
		logger:    logger,
	}
}

// Start declares the request queue and begins consuming. The subscription
// runs until ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	if err := s.transport.DeclareQueue(ctx, s.queue, s.durable); err != nil {
		return fmt.Errorf("declare request queue: %w", err)
	}

	if err := s.transport.Consume(ctx, s.queue, s.handleRequest); err != nil {
		return fmt.Errorf("consume request queue: %w", err)
	}

	s.logger.Info("rpc server listening", "queue", s.queue)
	return nil
}

// handleRequest serves one delivery end to end.
func (s *Server) handleRequest(ctx context.Context, d broker.Delivery) {
	if d.ReplyTo == "" {
		// Nothing to answer; acknowledging avoids a redelivery loop.
		s.logger.Warn("dropping rpc request without reply queue",
			"queue", s.queue,
			"correlationID", d.CorrelationID,
		)
		if err := d.Ack(); err != nil {
			s.logger.Error("failed to ack request", "error", err)
		}
		return
	}

	result := "ok"
	reply, err := s.handler(ctx, d.Body)
	if err != nil {
		// The caller is blocked until it hears back; an error must still
		// produce a reply envelope rather than a dropped message.
		s.logger.Error("rpc handler failed",
			"queue", s.queue,
			"correlationID", d.CorrelationID,
			"error", err,
		)
		reply = errorEnvelope("lookup failed")
		result = "handler_error"
	}

	pubErr := s.transport.Publish(ctx, d.ReplyTo, broker.Publishing{
		Body:          reply,
		CorrelationID: d.CorrelationID,
		ContentType:   "application/json",
	})
	if pubErr != nil {
		s.logger.Error("failed to publish rpc reply",
			"replyTo", d.ReplyTo,
			"correlationID", d.CorrelationID,
			"error", pubErr,
		)
		metrics.RPCRequestsServedTotal.WithLabelValues(s.queue, "reply_failed").Inc()
		if nackErr := d.Nack(true); nackErr != nil {
			s.logger.Error("failed to nack request", "error", nackErr)
		}
		return
	}

	metrics.RPCRequestsServedTotal.WithLabelValues(s.queue, result).Inc()
	if err := d.Ack(); err != nil {
		s.logger.Error("failed to ack request", "error", err)
	}
}

// errorEnvelope builds the JSON error reply body.
func errorEnvelope(message string) []byte {
	body, err := json.Marshal(map[string]string{"error": message})
	if err != nil {
		return []byte(`{"error":"internal error"}`)
	}
	return body
}
