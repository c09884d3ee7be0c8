package main

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/meridianfin/ledgermirror/pkg/config"
	"github.com/meridianfin/ledgermirror/pkg/db/models"
	"github.com/meridianfin/ledgermirror/pkg/enums"
	"github.com/meridianfin/ledgermirror/pkg/logger"
)

type stubPinger struct{}

func (stubPinger) Ping(ctx context.Context) error { return nil }

type stubPubSub struct{}

func (stubPubSub) Ping(ctx context.Context) error         { return nil }
func (stubPubSub) JournalPublisher() *gcppubsub.Publisher { return nil }

type stubOutboxRepo struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
}

func (s *stubOutboxRepo) FetchUnpublished(limit, maxAttempts int) ([]models.OutboxEvent, error) {
	return s.events, nil
}

func (s *stubOutboxRepo) MarkPublished(id uuid.UUID) error {
	s.published = append(s.published, id)
	return nil
}

func (s *stubOutboxRepo) MarkFailed(id uuid.UUID, err error) error {
	s.failed = append(s.failed, id)
	return nil
}

type stubResult struct {
	err error
}

func (r stubResult) Get(ctx context.Context) (string, error) {
	return "server-id", r.err
}

type stubPublisher struct {
	messages []*gcppubsub.Message
	errs     map[int]error
}

func (p *stubPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	index := len(p.messages)
	p.messages = append(p.messages, msg)
	return stubResult{err: p.errs[index]}
}

func outboxEvent() models.OutboxEvent {
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventJournalEntryPosted,
		AggregateType: enums.AggregateJournalEntry,
		AggregateID:   uuid.New(),
		Payload:       []byte(`{"version":1,"event_id":"e6a4d5d4-8a7a-4d02-9ff8-06a85e8a2a01","data":{}}`),
		CreatedAt:     time.Now(),
	}
}

func newTestNotifier(t *testing.T, repo *stubOutboxRepo, pub *stubPublisher) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Config:     &config.Config{},
		Logger:     logger.New(logger.Options{ServiceName: "notifier-test", Output: io.Discard}),
		DB:         stubPinger{},
		PubSub:     stubPubSub{},
		Repository: repo,
		Publisher:  pub,
	})
	if err != nil {
		t.Fatalf("unexpected error building notifier: %v", err)
	}
	return svc
}

func TestProcessBatchPublishesAndMarks(t *testing.T) {
	event := outboxEvent()
	repo := &stubOutboxRepo{events: []models.OutboxEvent{event}}
	pub := &stubPublisher{}
	svc := newTestNotifier(t, repo, pub)

	processed, err := svc.processBatch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !processed {
		t.Fatal("expected the batch to report work done")
	}
	if len(pub.messages) != 1 {
		t.Fatalf("expected one published message, got %d", len(pub.messages))
	}
	if len(repo.published) != 1 || repo.published[0] != event.ID {
		t.Fatal("published event was not marked")
	}

	msg := pub.messages[0]
	if msg.Attributes["event_type"] != string(enums.EventJournalEntryPosted) {
		t.Fatalf("expected event_type attribute, got %v", msg.Attributes)
	}
	if msg.Attributes["aggregate_id"] != event.AggregateID.String() {
		t.Fatal("expected aggregate_id attribute")
	}
	if msg.Attributes["event_id"] != "e6a4d5d4-8a7a-4d02-9ff8-06a85e8a2a01" {
		t.Fatal("expected event_id lifted from the envelope")
	}
}

func TestProcessBatchMarksFailures(t *testing.T) {
	first := outboxEvent()
	second := outboxEvent()
	repo := &stubOutboxRepo{events: []models.OutboxEvent{first, second}}
	pub := &stubPublisher{errs: map[int]error{0: errors.New("topic unavailable")}}
	svc := newTestNotifier(t, repo, pub)

	processed, err := svc.processBatch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !processed {
		t.Fatal("expected the batch to report work done")
	}
	if len(repo.failed) != 1 || repo.failed[0] != first.ID {
		t.Fatal("the failed event must be marked for retry")
	}
	if len(repo.published) != 1 || repo.published[0] != second.ID {
		t.Fatal("a failure must not block the rest of the batch")
	}
}

func TestProcessBatchEmptyOutbox(t *testing.T) {
	repo := &stubOutboxRepo{}
	svc := newTestNotifier(t, repo, &stubPublisher{})

	processed, err := svc.processBatch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if processed {
		t.Fatal("an empty outbox must report no work")
	}
}

func TestNextBackoffCapsGrowth(t *testing.T) {
	base := 500 * time.Millisecond
	current := base
	for i := 0; i < 10; i++ {
		current = nextBackoff(current, base, maxBackoff)
	}
	if current != maxBackoff {
		t.Fatalf("expected backoff capped at %s, got %s", maxBackoff, current)
	}
}
