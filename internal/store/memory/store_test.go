package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"notemesh/internal/domain"
)

func TestLikeRepository_DuplicateRejected(t *testing.T) {
	repo := NewLikeRepository()
	ctx := context.Background()

	like := &domain.Like{NoteID: "note-1", UserID: "alice"}
	if err := repo.Add(ctx, like); err != nil {
		t.Fatalf("Add error: %v", err)
	}

	err := repo.Add(ctx, &domain.Like{NoteID: "note-1", UserID: "alice"})
	if !errors.Is(err, domain.ErrAlreadyLiked) {
		t.Fatalf("duplicate Add error = %v, want ErrAlreadyLiked", err)
	}

	count, err := repo.CountByNote(ctx, "note-1")
	if err != nil {
		t.Fatalf("CountByNote error: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestLikeRepository_CountAndRemove(t *testing.T) {
	repo := NewLikeRepository()
	ctx := context.Background()

	_ = repo.Add(ctx, &domain.Like{NoteID: "note-1", UserID: "alice"})
	_ = repo.Add(ctx, &domain.Like{NoteID: "note-1", UserID: "carol"})
	_ = repo.Add(ctx, &domain.Like{NoteID: "note-2", UserID: "alice"})

	count, _ := repo.CountByNote(ctx, "note-1")
	if count != 2 {
		t.Errorf("count for note-1 = %d, want 2", count)
	}

	byAlice, err := repo.ListByUser(ctx, "alice")
	if err != nil {
		t.Fatalf("ListByUser error: %v", err)
	}
	if len(byAlice) != 2 {
		t.Errorf("likes by alice = %d, want 2", len(byAlice))
	}

	if err := repo.Remove(ctx, "note-1", "alice"); err != nil {
		t.Fatalf("Remove error: %v", err)
	}
	count, _ = repo.CountByNote(ctx, "note-1")
	if count != 1 {
		t.Errorf("count after remove = %d, want 1", count)
	}
}

func TestNotificationRepository_ListNewestFirst(t *testing.T) {
	repo := NewNotificationRepository()
	ctx := context.Background()

	first := &domain.Notification{UserID: "bob", Message: "first", CreatedAt: time.Now().Add(-time.Minute)}
	second := &domain.Notification{UserID: "bob", Message: "second", CreatedAt: time.Now()}
	other := &domain.Notification{UserID: "carol", Message: "other"}

	for _, n := range []*domain.Notification{first, second, other} {
		if err := repo.Create(ctx, n); err != nil {
			t.Fatalf("Create error: %v", err)
		}
	}

	list, err := repo.ListByUser(ctx, "bob")
	if err != nil {
		t.Fatalf("ListByUser error: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("list length = %d, want 2", len(list))
	}
	if list[0].Message != "second" || list[1].Message != "first" {
		t.Errorf("order = [%q, %q], want newest first", list[0].Message, list[1].Message)
	}
}

func TestNotificationRepository_MarkRead(t *testing.T) {
	repo := NewNotificationRepository()
	ctx := context.Background()

	n := &domain.Notification{UserID: "bob", Message: "hi"}
	if err := repo.Create(ctx, n); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	if err := repo.MarkRead(ctx, n.ID); err != nil {
		t.Fatalf("MarkRead error: %v", err)
	}

	list, _ := repo.ListByUser(ctx, "bob")
	if !list[0].IsRead {
		t.Error("notification should be read")
	}

	if err := repo.MarkRead(ctx, 9999); !errors.Is(err, domain.ErrNotificationNotFound) {
		t.Errorf("MarkRead unknown id error = %v, want ErrNotificationNotFound", err)
	}
}

func TestLikeCountCache_TTLExpiry(t *testing.T) {
	cache := NewLikeCountCache()
	ctx := context.Background()

	if err := cache.Set(ctx, "note-1", 3, 10*time.Millisecond); err != nil {
		t.Fatalf("Set error: %v", err)
	}

	count, ok, err := cache.Get(ctx, "note-1")
	if err != nil || !ok || count != 3 {
		t.Fatalf("Get = (%d, %v, %v), want (3, true, nil)", count, ok, err)
	}

	time.Sleep(20 * time.Millisecond)

	_, ok, err = cache.Get(ctx, "note-1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if ok {
		t.Error("expired entry should be a miss")
	}
}

func TestLikeCountCache_Invalidate(t *testing.T) {
	cache := NewLikeCountCache()
	ctx := context.Background()

	_ = cache.Set(ctx, "note-1", 3, time.Minute)
	if err := cache.Invalidate(ctx, "note-1"); err != nil {
		t.Fatalf("Invalidate error: %v", err)
	}

	_, ok, _ := cache.Get(ctx, "note-1")
	if ok {
		t.Error("invalidated entry should be a miss")
	}
}
