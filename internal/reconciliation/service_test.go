package reconciliation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/meridianfin/ledgermirror/pkg/db/models"
	"github.com/meridianfin/ledgermirror/pkg/enums"
	pkgerrors "github.com/meridianfin/ledgermirror/pkg/errors"
)

type stubRepo struct {
	byReference map[string]*models.ReconciliationEntry
	createErr   error
	touched     []string
	updated     []*models.ReconciliationEntry
}

func newStubRepo() *stubRepo {
	return &stubRepo{byReference: make(map[string]*models.ReconciliationEntry)}
}

func (s *stubRepo) Create(ctx context.Context, entry *models.ReconciliationEntry) error {
	if s.createErr != nil {
		return s.createErr
	}
	if _, exists := s.byReference[entry.ExternalReference]; exists {
		return errDuplicateReference{}
	}
	entry.ID = uuid.New()
	s.byReference[entry.ExternalReference] = entry
	return nil
}

func (s *stubRepo) FindByReference(ctx context.Context, reference string) (*models.ReconciliationEntry, error) {
	entry, ok := s.byReference[reference]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *entry
	return &copied, nil
}

func (s *stubRepo) ListUnmatched(ctx context.Context, limit int) ([]models.ReconciliationEntry, error) {
	var entries []models.ReconciliationEntry
	for _, entry := range s.byReference {
		if entry.Status == enums.ReconciliationStatusUnmatched {
			entries = append(entries, *entry)
		}
		if limit > 0 && len(entries) >= limit {
			break
		}
	}
	return entries, nil
}

func (s *stubRepo) Update(ctx context.Context, entry *models.ReconciliationEntry) error {
	s.updated = append(s.updated, entry)
	copied := *entry
	s.byReference[entry.ExternalReference] = &copied
	return nil
}

func (s *stubRepo) TouchLastChecked(ctx context.Context, reference string, at time.Time) error {
	s.touched = append(s.touched, reference)
	if entry, ok := s.byReference[reference]; ok {
		entry.LastCheckedAt = &at
	}
	return nil
}

type stubJournal struct {
	byReference map[string]*models.JournalEntry
}

func (s *stubJournal) FindPostedByExternalReference(ctx context.Context, reference string) (*models.JournalEntry, error) {
	entry, ok := s.byReference[reference]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return entry, nil
}

type errDuplicateReference struct{}

func (errDuplicateReference) Error() string {
	return `ERROR: duplicate key value violates unique constraint "ux_reconciliation_entries_external_reference" (SQLSTATE 23505)`
}

func postedEntry(reference string, amount decimal.Decimal) *models.JournalEntry {
	ref := reference
	return &models.JournalEntry{
		ID:                uuid.New(),
		Status:            enums.EntryStatusPosted,
		ExternalReference: &ref,
		Lines: []models.JournalLine{
			{AccountID: uuid.New(), Type: enums.LineTypeDebit, Amount: amount},
			{AccountID: uuid.New(), Type: enums.LineTypeCredit, Amount: amount},
		},
	}
}

func newTestRecon(t *testing.T, repo *stubRepo, journal *stubJournal) Service {
	t.Helper()
	if journal.byReference == nil {
		journal.byReference = make(map[string]*models.JournalEntry)
	}
	svc, err := NewService(repo, journal, nil)
	if err != nil {
		t.Fatalf("unexpected error building service: %v", err)
	}
	return svc
}

func TestIngestWithoutLedgerEntryStaysUnmatched(t *testing.T) {
	repo := newStubRepo()
	svc := newTestRecon(t, repo, &stubJournal{})

	entry, err := svc.IngestExternalEvent(context.Background(), ExternalEventInput{
		ExternalReference: "stl-1001",
		Amount:            decimal.NewFromInt(75),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Status != enums.ReconciliationStatusUnmatched {
		t.Fatalf("expected unmatched, got %s", entry.Status)
	}
	if len(repo.touched) != 1 || repo.touched[0] != "stl-1001" {
		t.Fatal("an unmatched check must record last_checked_at")
	}
}

func TestIngestMatchesPostedEntry(t *testing.T) {
	journal := &stubJournal{byReference: map[string]*models.JournalEntry{
		"stl-1002": postedEntry("stl-1002", decimal.NewFromInt(75)),
	}}
	svc := newTestRecon(t, newStubRepo(), journal)

	entry, err := svc.IngestExternalEvent(context.Background(), ExternalEventInput{
		ExternalReference: "stl-1002",
		Amount:            decimal.NewFromInt(75),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Status != enums.ReconciliationStatusMatched {
		t.Fatalf("expected matched, got %s", entry.Status)
	}
	if entry.JournalEntryID == nil {
		t.Fatal("matched entry must link the journal entry")
	}
	if entry.LedgerAmount != nil {
		t.Fatal("matched entry must not carry a ledger amount")
	}
}

func TestIngestAmountMismatchDisputes(t *testing.T) {
	journal := &stubJournal{byReference: map[string]*models.JournalEntry{
		"stl-1003": postedEntry("stl-1003", decimal.NewFromInt(80)),
	}}
	svc := newTestRecon(t, newStubRepo(), journal)

	entry, err := svc.IngestExternalEvent(context.Background(), ExternalEventInput{
		ExternalReference: "stl-1003",
		Amount:            decimal.NewFromInt(75),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Status != enums.ReconciliationStatusDisputed {
		t.Fatalf("expected disputed, got %s", entry.Status)
	}
	if entry.LedgerAmount == nil || !entry.LedgerAmount.Equal(decimal.NewFromInt(80)) {
		t.Fatal("disputed entry must retain the ledger amount")
	}
}

func TestIngestIgnoresRepresentationNoise(t *testing.T) {
	ledger, _ := decimal.NewFromString("75.00001")
	journal := &stubJournal{byReference: map[string]*models.JournalEntry{
		"stl-1004": postedEntry("stl-1004", ledger),
	}}
	svc := newTestRecon(t, newStubRepo(), journal)

	entry, err := svc.IngestExternalEvent(context.Background(), ExternalEventInput{
		ExternalReference: "stl-1004",
		Amount:            decimal.NewFromInt(75),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Status != enums.ReconciliationStatusMatched {
		t.Fatalf("amounts equal at four decimals must match, got %s", entry.Status)
	}
}

func TestIngestRedeliveryReusesExistingRow(t *testing.T) {
	repo := newStubRepo()
	journal := &stubJournal{byReference: make(map[string]*models.JournalEntry)}
	svc := newTestRecon(t, repo, journal)

	input := ExternalEventInput{ExternalReference: "stl-1005", Amount: decimal.NewFromInt(75)}
	first, err := svc.IngestExternalEvent(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	journal.byReference["stl-1005"] = postedEntry("stl-1005", decimal.NewFromInt(75))
	second, err := svc.IngestExternalEvent(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.ID != first.ID {
		t.Fatal("redelivery must not create a second row")
	}
	if second.Status != enums.ReconciliationStatusMatched {
		t.Fatalf("redelivery must re-run the match, got %s", second.Status)
	}
}

func TestIngestRejectsBadInput(t *testing.T) {
	svc := newTestRecon(t, newStubRepo(), &stubJournal{})

	if _, err := svc.IngestExternalEvent(context.Background(), ExternalEventInput{
		Amount: decimal.NewFromInt(10),
	}); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for empty reference, got %v", err)
	}
	if _, err := svc.IngestExternalEvent(context.Background(), ExternalEventInput{
		ExternalReference: "stl-1006",
		Amount:            decimal.Zero,
	}); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for zero amount, got %v", err)
	}
}

func TestRecheckResolvesLateEntry(t *testing.T) {
	repo := newStubRepo()
	journal := &stubJournal{byReference: make(map[string]*models.JournalEntry)}
	svc := newTestRecon(t, repo, journal)

	if _, err := svc.IngestExternalEvent(context.Background(), ExternalEventInput{
		ExternalReference: "stl-1007",
		Amount:            decimal.NewFromInt(42),
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	journal.byReference["stl-1007"] = postedEntry("stl-1007", decimal.NewFromInt(42))
	entry, err := svc.Recheck(context.Background(), "stl-1007")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Status != enums.ReconciliationStatusMatched {
		t.Fatalf("expected matched after recheck, got %s", entry.Status)
	}
}

func TestRecheckUnknownReferenceIsNoop(t *testing.T) {
	svc := newTestRecon(t, newStubRepo(), &stubJournal{})

	entry, err := svc.Recheck(context.Background(), "stl-unknown")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry != nil {
		t.Fatal("recheck without an event on file must be a no-op")
	}
}

func TestRecheckLeavesTerminalStates(t *testing.T) {
	repo := newStubRepo()
	ledger := decimal.NewFromInt(30)
	repo.byReference["stl-1008"] = &models.ReconciliationEntry{
		ID:                uuid.New(),
		ExternalReference: "stl-1008",
		Status:            enums.ReconciliationStatusDisputed,
		Amount:            decimal.NewFromInt(25),
		LedgerAmount:      &ledger,
	}
	journal := &stubJournal{byReference: map[string]*models.JournalEntry{
		"stl-1008": postedEntry("stl-1008", decimal.NewFromInt(25)),
	}}
	svc := newTestRecon(t, repo, journal)

	entry, err := svc.Recheck(context.Background(), "stl-1008")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Status != enums.ReconciliationStatusDisputed {
		t.Fatalf("terminal states must not be re-evaluated, got %s", entry.Status)
	}
	if len(repo.updated) != 0 {
		t.Fatal("terminal entries must not be written back")
	}
}

func TestMarkReconciledRequiresMatched(t *testing.T) {
	repo := newStubRepo()
	repo.byReference["stl-1009"] = &models.ReconciliationEntry{
		ID:                uuid.New(),
		ExternalReference: "stl-1009",
		Status:            enums.ReconciliationStatusUnmatched,
		Amount:            decimal.NewFromInt(12),
	}
	svc := newTestRecon(t, repo, &stubJournal{})

	_, err := svc.MarkReconciled(context.Background(), "stl-1009")
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}

	repo.byReference["stl-1009"].Status = enums.ReconciliationStatusMatched
	entry, err := svc.MarkReconciled(context.Background(), "stl-1009")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Status != enums.ReconciliationStatusReconciled {
		t.Fatalf("expected reconciled, got %s", entry.Status)
	}
}

func TestRetryUnmatchedCountsResolved(t *testing.T) {
	repo := newStubRepo()
	repo.byReference["stl-1010"] = &models.ReconciliationEntry{
		ID:                uuid.New(),
		ExternalReference: "stl-1010",
		Status:            enums.ReconciliationStatusUnmatched,
		Amount:            decimal.NewFromInt(60),
	}
	repo.byReference["stl-1011"] = &models.ReconciliationEntry{
		ID:                uuid.New(),
		ExternalReference: "stl-1011",
		Status:            enums.ReconciliationStatusUnmatched,
		Amount:            decimal.NewFromInt(61),
	}
	journal := &stubJournal{byReference: map[string]*models.JournalEntry{
		"stl-1010": postedEntry("stl-1010", decimal.NewFromInt(60)),
	}}
	svc := newTestRecon(t, repo, journal)

	resolved, err := svc.RetryUnmatched(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved != 1 {
		t.Fatalf("expected one resolved entry, got %d", resolved)
	}
}
