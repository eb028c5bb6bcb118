package rpc

import (
	"sync"
	"time"

	"notemesh/internal/metrics"
)

// pendingCall is a registry entry for one in-flight call. The reply channel
// is buffered so a resolver never blocks on a caller that already left.
type pendingCall struct {
	createdAt time.Time
	reply     chan []byte
}

// registry maps correlation ids to pending calls. It is the one piece of
// shared mutable state in the client: insert, resolve and evict are atomic
// with respect to each other, and entries are removed explicitly on
// resolution or timeout rather than relying on garbage collection.
type registry struct {
	mu      sync.Mutex
	entries map[string]*pendingCall
}

func newRegistry() *registry {
	return &registry{
		entries: make(map[string]*pendingCall),
	}
}

// add inserts a fresh entry for the correlation id and returns the channel
// the caller waits on. At most one live entry exists per id.
func (r *registry) add(correlationID string) <-chan []byte {
	entry := &pendingCall{
		createdAt: time.Now(),
		reply:     make(chan []byte, 1),
	}

	r.mu.Lock()
	r.entries[correlationID] = entry
	r.mu.Unlock()

	metrics.RPCPendingCalls.Inc()
	return entry.reply
}

// resolve delivers a reply to the pending call and removes the entry.
// It returns false if the entry was already evicted (late reply).
func (r *registry) resolve(correlationID string, body []byte) bool {
	r.mu.Lock()
	entry, ok := r.entries[correlationID]
	if ok {
		delete(r.entries, correlationID)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}

	entry.reply <- body
	metrics.RPCPendingCalls.Dec()
	return true
}

// remove evicts the entry for the correlation id, if present.
func (r *registry) remove(correlationID string) {
	r.mu.Lock()
	_, ok := r.entries[correlationID]
	if ok {
		delete(r.entries, correlationID)
	}
	r.mu.Unlock()

	if ok {
		metrics.RPCPendingCalls.Dec()
	}
}

// expire evicts entries older than the given age and returns how many were
// removed. This bounds registry growth if a caller goroutine dies without
// running its timeout path.
func (r *registry) expire(olderThan time.Duration) int {
	cutoff := time.Now().Add(-olderThan)

	r.mu.Lock()
	var expired int
	for id, entry := range r.entries {
		if entry.createdAt.Before(cutoff) {
			delete(r.entries, id)
			expired++
		}
	}
	r.mu.Unlock()

	for i := 0; i < expired; i++ {
		metrics.RPCPendingCalls.Dec()
	}
	return expired
}

// size returns the current number of pending calls.
func (r *registry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
