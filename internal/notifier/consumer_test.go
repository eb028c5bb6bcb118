package notifier

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"notemesh/internal/broker"
	"notemesh/internal/broker/memory"
	"notemesh/internal/event"
	storemem "notemesh/internal/store/memory"
)

const eventQueue = "test_event_queue"

// testSetup creates a started consumer over a memory transport and its
// backing notification repository.
func testSetup(t *testing.T) (*memory.Transport, *storemem.NotificationRepository, context.Context) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	transport := memory.NewTransport(100)
	repo := storemem.NewNotificationRepository()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	t.Cleanup(func() { _ = transport.Close() })

	consumer := NewConsumer(transport, eventQueue, true, repo, logger)
	if err := consumer.Start(ctx); err != nil {
		t.Fatalf("consumer.Start error: %v", err)
	}

	return transport, repo, ctx
}

// publishEvent marshals the envelope and publishes it to the event queue.
func publishEvent(t *testing.T, transport *memory.Transport, ctx context.Context, env *event.Envelope) {
	t.Helper()
	body, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	publishRaw(t, transport, ctx, body)
}

func publishRaw(t *testing.T, transport *memory.Transport, ctx context.Context, body []byte) {
	t.Helper()
	err := transport.Publish(ctx, eventQueue, broker.Publishing{
		Body:        body,
		ContentType: "application/json",
	})
	if err != nil {
		t.Fatalf("Publish error: %v", err)
	}
}

// waitForCount polls the repository until it holds want notifications or
// the deadline passes.
func waitForCount(t *testing.T, repo *storemem.NotificationRepository, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if repo.Count() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("notification count = %d, want %d", repo.Count(), want)
}

// waitForDrain polls until the event queue is empty.
func waitForDrain(t *testing.T, transport *memory.Transport) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if transport.Len(eventQueue) == 0 {
			// Give the in-flight handler a moment to finish.
			time.Sleep(20 * time.Millisecond)
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("event queue did not drain, %d messages left", transport.Len(eventQueue))
}

func TestConsumer_NoteLiked_CreatesNotification(t *testing.T) {
	transport, repo, ctx := testSetup(t)

	publishEvent(t, transport, ctx, &event.Envelope{
		Type:      event.TypeNoteLiked,
		NoteID:    "note-1",
		FromUser:  "alice",
		UserID:    "bob",
		NoteTitle: "Groceries",
	})

	waitForCount(t, repo, 1)

	notifications, err := repo.ListByUser(ctx, "bob")
	if err != nil {
		t.Fatalf("ListByUser error: %v", err)
	}
	if len(notifications) != 1 {
		t.Fatalf("notifications for bob = %d, want 1", len(notifications))
	}

	n := notifications[0]
	want := `alice liked your note "Groceries"`
	if n.Message != want {
		t.Errorf("message = %q, want %q", n.Message, want)
	}
	if n.IsRead {
		t.Error("new notification should be unread")
	}
	if n.ID == 0 {
		t.Error("notification should have an assigned id")
	}
}

func TestConsumer_NoteShared_UsesEnvelopeMessage(t *testing.T) {
	transport, repo, ctx := testSetup(t)

	publishEvent(t, transport, ctx, &event.Envelope{
		Type:     event.TypeNoteShared,
		NoteID:   "note-1",
		FromUser: "alice",
		UserID:   "bob",
		Message:  "alice shared a note with you",
	})

	waitForCount(t, repo, 1)

	notifications, _ := repo.ListByUser(ctx, "bob")
	if notifications[0].Message != "alice shared a note with you" {
		t.Errorf("message = %q, want the envelope's message", notifications[0].Message)
	}
}

func TestConsumer_NoteShared_RendersDefaultMessage(t *testing.T) {
	transport, repo, ctx := testSetup(t)

	publishEvent(t, transport, ctx, &event.Envelope{
		Type:      event.TypeNoteShared,
		NoteID:    "note-1",
		FromUser:  "alice",
		UserID:    "bob",
		NoteTitle: "Groceries",
	})

	waitForCount(t, repo, 1)

	notifications, _ := repo.ListByUser(ctx, "bob")
	want := `alice shared your note "Groceries"`
	if notifications[0].Message != want {
		t.Errorf("message = %q, want %q", notifications[0].Message, want)
	}
}

func TestConsumer_MalformedBody_AckedAndDropped(t *testing.T) {
	transport, repo, ctx := testSetup(t)

	publishRaw(t, transport, ctx, []byte("{not json"))
	waitForDrain(t, transport)

	if repo.Count() != 0 {
		t.Errorf("notification count = %d, want 0", repo.Count())
	}

	// The consumer must still be alive for well-formed events.
	publishEvent(t, transport, ctx, &event.Envelope{
		Type:      event.TypeNoteLiked,
		NoteID:    "note-1",
		FromUser:  "alice",
		UserID:    "bob",
		NoteTitle: "Groceries",
	})
	waitForCount(t, repo, 1)
}

func TestConsumer_UnknownType_AckedAndIgnored(t *testing.T) {
	transport, repo, ctx := testSetup(t)

	publishRaw(t, transport, ctx, []byte(`{"type":"note_archived","noteId":"n1","fromUser":"alice","user_id":"bob"}`))
	waitForDrain(t, transport)

	if repo.Count() != 0 {
		t.Errorf("notification count = %d, want 0", repo.Count())
	}
}

func TestConsumer_MissingFields_AckedAndDropped(t *testing.T) {
	transport, repo, ctx := testSetup(t)

	// Known type but no recipient.
	publishRaw(t, transport, ctx, []byte(`{"type":"note_liked","noteId":"n1","fromUser":"alice"}`))
	waitForDrain(t, transport)

	if repo.Count() != 0 {
		t.Errorf("notification count = %d, want 0", repo.Count())
	}
}

func TestConsumer_DuplicateDelivery_CreatesDuplicateRows(t *testing.T) {
	transport, repo, ctx := testSetup(t)

	env := &event.Envelope{
		Type:      event.TypeNoteLiked,
		NoteID:    "note-1",
		FromUser:  "alice",
		UserID:    "bob",
		NoteTitle: "Groceries",
	}

	// At-least-once delivery means the same event can arrive twice; each
	// delivery materializes its own row.
	publishEvent(t, transport, ctx, env)
	publishEvent(t, transport, ctx, env)

	waitForCount(t, repo, 2)
}

func TestConsumer_PersistFailure_RequeuesUntilSuccess(t *testing.T) {
	transport, repo, ctx := testSetup(t)

	repo.FailNext(2)

	publishEvent(t, transport, ctx, &event.Envelope{
		Type:      event.TypeNoteLiked,
		NoteID:    "note-1",
		FromUser:  "alice",
		UserID:    "bob",
		NoteTitle: "Groceries",
	})

	// Two failed attempts requeue; the third persists.
	waitForCount(t, repo, 1)
}
