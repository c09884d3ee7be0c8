package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type stubStore struct {
	values map[string]string
}

func newStubStore() *stubStore {
	return &stubStore{values: make(map[string]string)}
}

func (s *stubStore) Get(ctx context.Context, key string) (string, error) {
	return s.values[key], nil
}

func (s *stubStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, exists := s.values[key]; exists {
		return false, nil
	}
	s.values[key] = value.(string)
	return true, nil
}

func (s *stubStore) IdempotencyKey(scope, id string) string {
	return "lm:idempotency:" + scope + ":" + id
}

func (s *stubStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.values, key)
	}
	return nil
}

func postEntries(key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/journal/entries", strings.NewReader(body))
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	return req
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	store := newStubStore()
	calls := 0
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"abc"}}`))
	}))

	body := `{"description":"vendor invoice"}`
	first := httptest.NewRecorder()
	handler.ServeHTTP(first, postEntries("key-1", body))
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", first.Code)
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, postEntries("key-1", body))
	if second.Code != http.StatusCreated {
		t.Fatalf("replay must return the stored status, got %d", second.Code)
	}
	if second.Body.String() != first.Body.String() {
		t.Fatal("replay must return the stored body")
	}
	if calls != 1 {
		t.Fatalf("the handler must run once, got %d calls", calls)
	}
}

func TestIdempotencyRejectsKeyReuseWithDifferentBody(t *testing.T) {
	store := newStubStore()
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, postEntries("key-2", `{"amount":"100"}`))

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, postEntries("key-2", `{"amount":"999"}`))
	if !strings.Contains(second.Body.String(), "different request body") {
		t.Fatalf("expected key reuse rejection, got %s", second.Body.String())
	}
}

func TestIdempotencyRequiresKeyOnGuardedRoutes(t *testing.T) {
	store := newStubStore()
	called := false
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, postEntries("", `{}`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without a key, got %d", rec.Code)
	}
	if called {
		t.Fatal("the handler must not run without a key")
	}
}

func TestIdempotencyIgnoresUnguardedRoutes(t *testing.T) {
	store := newStubStore()
	called := false
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/journal/entries", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if !called {
		t.Fatal("reads must pass through untouched")
	}
	if len(store.values) != 0 {
		t.Fatal("reads must not write idempotency records")
	}
}
