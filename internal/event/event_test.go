package event

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"notemesh/internal/broker"
	"notemesh/internal/broker/memory"
)

func validEnvelope() *Envelope {
	return &Envelope{
		Type:      TypeNoteLiked,
		NoteID:    "note-1",
		FromUser:  "alice",
		UserID:    "bob",
		NoteTitle: "Groceries",
	}
}

func TestEnvelope_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(e *Envelope)
		wantErr error
	}{
		{"valid liked", func(e *Envelope) {}, nil},
		{"valid shared", func(e *Envelope) { e.Type = TypeNoteShared }, nil},
		{"unknown type", func(e *Envelope) { e.Type = "note_archived" }, ErrInvalidType},
		{"empty type", func(e *Envelope) { e.Type = "" }, ErrInvalidType},
		{"missing note id", func(e *Envelope) { e.NoteID = "" }, ErrEmptyNoteID},
		{"missing from user", func(e *Envelope) { e.FromUser = "" }, ErrEmptyUser},
		{"missing recipient", func(e *Envelope) { e.UserID = "" }, ErrEmptyTarget},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := validEnvelope()
			tt.mutate(env)
			err := env.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestEnvelope_WireFieldNames(t *testing.T) {
	env := validEnvelope()
	body, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}

	for _, key := range []string{"type", "noteId", "fromUser", "user_id", "noteTitle"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("serialized envelope missing field %q", key)
		}
	}
	if _, ok := raw["message"]; ok {
		t.Error("empty message field should be omitted")
	}
}

func TestPublisher_PublishesToEventQueue(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	transport := memory.NewTransport(16)
	defer transport.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pub, err := NewPublisher(ctx, transport, "events", true, logger)
	if err != nil {
		t.Fatalf("NewPublisher error: %v", err)
	}

	received := make(chan broker.Delivery, 1)
	err = transport.Consume(ctx, "events", func(ctx context.Context, d broker.Delivery) {
		_ = d.Ack()
		received <- d
	})
	if err != nil {
		t.Fatalf("Consume error: %v", err)
	}

	if err := pub.Publish(ctx, validEnvelope()); err != nil {
		t.Fatalf("Publish error: %v", err)
	}

	select {
	case d := <-received:
		var env Envelope
		if err := json.Unmarshal(d.Body, &env); err != nil {
			t.Fatalf("Unmarshal error: %v", err)
		}
		if env.Type != TypeNoteLiked || env.NoteID != "note-1" {
			t.Errorf("envelope = %+v, want the published one", env)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event delivery")
	}
}

func TestPublisher_RejectsInvalidEnvelope(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	transport := memory.NewTransport(16)
	defer transport.Close()
	ctx := context.Background()

	pub, err := NewPublisher(ctx, transport, "events", true, logger)
	if err != nil {
		t.Fatalf("NewPublisher error: %v", err)
	}

	env := validEnvelope()
	env.Type = "bogus"
	if err := pub.Publish(ctx, env); !errors.Is(err, ErrInvalidType) {
		t.Fatalf("Publish error = %v, want ErrInvalidType", err)
	}
	if got := transport.Len("events"); got != 0 {
		t.Errorf("event queue length = %d, want 0", got)
	}
}
