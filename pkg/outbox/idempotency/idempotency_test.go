package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

type stubStore struct {
	keys    map[string]string
	lastTTL time.Duration
}

func newStubStore() *stubStore {
	return &stubStore{keys: make(map[string]string)}
}

func (s *stubStore) Get(ctx context.Context, key string) (string, error) {
	return s.keys[key], nil
}

func (s *stubStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, exists := s.keys[key]; exists {
		return false, nil
	}
	s.keys[key] = "1"
	s.lastTTL = ttl
	return true, nil
}

func (s *stubStore) IdempotencyKey(scope, id string) string {
	return "lm:idempotency:" + scope + ":" + id
}

func (s *stubStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.keys, key)
	}
	return nil
}

func TestCheckAndMarkProcessed(t *testing.T) {
	store := newStubStore()
	manager, err := NewManager(store, time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	eventID := uuid.New()
	seen, err := manager.CheckAndMarkProcessed(context.Background(), "journal-recheck", eventID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen {
		t.Fatal("first delivery must not be marked as seen")
	}
	if store.lastTTL != time.Hour {
		t.Fatalf("expected ttl forwarded to redis, got %s", store.lastTTL)
	}

	seen, err = manager.CheckAndMarkProcessed(context.Background(), "journal-recheck", eventID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !seen {
		t.Fatal("redelivery must be marked as seen")
	}
}

func TestDeleteAllowsRetry(t *testing.T) {
	store := newStubStore()
	manager, _ := NewManager(store, time.Hour)

	eventID := uuid.New()
	if _, err := manager.CheckAndMarkProcessed(context.Background(), "journal-recheck", eventID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := manager.Delete(context.Background(), "journal-recheck", eventID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seen, err := manager.CheckAndMarkProcessed(context.Background(), "journal-recheck", eventID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen {
		t.Fatal("a deleted marker must allow reprocessing")
	}
}

func TestManagerRejectsBadInput(t *testing.T) {
	if _, err := NewManager(nil, time.Hour); err == nil {
		t.Fatal("expected error for nil store")
	}

	manager, _ := NewManager(newStubStore(), time.Hour)
	if _, err := manager.CheckAndMarkProcessed(context.Background(), "", uuid.New()); err == nil {
		t.Fatal("expected error for empty consumer")
	}
	if _, err := manager.CheckAndMarkProcessed(context.Background(), "journal-recheck", uuid.Nil); err == nil {
		t.Fatal("expected error for nil event id")
	}
}
