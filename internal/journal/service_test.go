package journal

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
	"github.com/meridianfin/ledgermirror/pkg/outbox"
)

type stubRepo struct {
	createFn       func(entry *models.JournalEntry) error
	findByIDFn     func(id uuid.UUID) (*models.JournalEntry, error)
	markedReversed []uuid.UUID
	created        []*models.JournalEntry
}

func (s *stubRepo) CreateTx(tx *gorm.DB, entry *models.JournalEntry) error {
	if s.createFn != nil {
		if err := s.createFn(entry); err != nil {
			return err
		}
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	s.created = append(s.created, entry)
	return nil
}

func (s *stubRepo) MarkReversedTx(tx *gorm.DB, id uuid.UUID) error {
	s.markedReversed = append(s.markedReversed, id)
	return nil
}

func (s *stubRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.JournalEntry, error) {
	if s.findByIDFn != nil {
		return s.findByIDFn(id)
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubRepo) FindByIDTx(tx *gorm.DB, id uuid.UUID) (*models.JournalEntry, error) {
	if s.findByIDFn != nil {
		return s.findByIDFn(id)
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubRepo) FindByTransferID(ctx context.Context, transferID string) (*models.JournalEntry, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubRepo) FindPostedByExternalReference(ctx context.Context, reference string) (*models.JournalEntry, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubRepo) List(ctx context.Context, filter ListFilter) ([]models.JournalEntry, error) {
	return nil, nil
}

type stubAccounts struct {
	missing map[uuid.UUID]bool
}

func (s *stubAccounts) FindActiveByIDsTx(tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]models.Account, error) {
	found := make(map[uuid.UUID]models.Account, len(ids))
	for _, id := range ids {
		if s.missing[id] {
			continue
		}
		found[id] = models.Account{ID: id, Type: enums.AccountTypeAsset, Active: true}
	}
	return found, nil
}

type appliedDelta struct {
	accountID uuid.UUID
	lineType  enums.LineType
	amount    decimal.Decimal
}

type stubBalances struct {
	applied []appliedDelta
}

func (s *stubBalances) ApplyLineTx(tx *gorm.DB, accountID uuid.UUID, lineType enums.LineType, amount decimal.Decimal) error {
	s.applied = append(s.applied, appliedDelta{accountID: accountID, lineType: lineType, amount: amount})
	return nil
}

type stubCursors struct {
	advanced []CursorAdvance
}

func (s *stubCursors) AdvanceTx(tx *gorm.DB, partitionID int, sequence int64) error {
	s.advanced = append(s.advanced, CursorAdvance{PartitionID: partitionID, Sequence: sequence})
	return nil
}

type stubOutbox struct {
	events []outbox.DomainEvent
}

func (s *stubOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

type stubTx struct{}

func (stubTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func newTestService(t *testing.T, repo *stubRepo, accounts *stubAccounts, balances *stubBalances, cursors *stubCursors, box *stubOutbox) Service {
	t.Helper()
	params := ServiceParams{
		Repo:     repo,
		Accounts: accounts,
		Balances: balances,
		TxRunner: stubTx{},
	}
	// Leave optional interface fields unset for nil stubs. A nil pointer
	// stored in an interface would slip past the service's nil checks.
	if cursors != nil {
		params.Cursors = cursors
	}
	if box != nil {
		params.Outbox = box
	}
	svc, err := NewService(params)
	if err != nil {
		t.Fatalf("unexpected error building service: %v", err)
	}
	return svc
}

func balancedInput(debitAccount, creditAccount uuid.UUID) PostEntryInput {
	return PostEntryInput{
		EntryDate:   time.Now(),
		Description: "vendor invoice 991",
		Source:      enums.EntrySourcePurchase,
		Lines: []LineInput{
			{AccountID: debitAccount, Type: enums.LineTypeDebit, Amount: decimal.NewFromInt(125)},
			{AccountID: creditAccount, Type: enums.LineTypeCredit, Amount: decimal.NewFromInt(125)},
		},
	}
}

func TestPostAppliesBalancesAndEmits(t *testing.T) {
	repo := &stubRepo{}
	balances := &stubBalances{}
	box := &stubOutbox{}
	svc := newTestService(t, repo, &stubAccounts{}, balances, nil, box)

	debitAccount := uuid.New()
	creditAccount := uuid.New()
	entry, err := svc.Post(context.Background(), balancedInput(debitAccount, creditAccount))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Status != enums.EntryStatusPosted {
		t.Fatalf("expected posted status, got %s", entry.Status)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected one created entry, got %d", len(repo.created))
	}
	if len(balances.applied) != 2 {
		t.Fatalf("expected two balance deltas, got %d", len(balances.applied))
	}
	if balances.applied[0].accountID != debitAccount || balances.applied[0].lineType != enums.LineTypeDebit {
		t.Fatal("debit delta not applied to debit account")
	}
	if len(box.events) != 1 {
		t.Fatalf("expected one outbox event, got %d", len(box.events))
	}
	if box.events[0].EventType != enums.EventJournalEntryPosted {
		t.Fatalf("expected posted event, got %s", box.events[0].EventType)
	}
	if box.events[0].AggregateID != entry.ID {
		t.Fatal("outbox event not bound to the entry")
	}
}

func TestPostRejectsSingleLine(t *testing.T) {
	svc := newTestService(t, &stubRepo{}, &stubAccounts{}, &stubBalances{}, nil, nil)

	input := balancedInput(uuid.New(), uuid.New())
	input.Lines = input.Lines[:1]
	_, err := svc.Post(context.Background(), input)
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPostRejectsUnbalancedEntry(t *testing.T) {
	repo := &stubRepo{}
	svc := newTestService(t, repo, &stubAccounts{}, &stubBalances{}, nil, nil)

	input := balancedInput(uuid.New(), uuid.New())
	input.Lines[1].Amount = decimal.NewFromInt(120)
	_, err := svc.Post(context.Background(), input)
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := pkgerrors.As(err).Details().(map[string]any)
	if !ok || details["debit_total"] != "125" || details["credit_total"] != "120" {
		t.Fatalf("expected totals in details, got %v", details)
	}
	if len(repo.created) != 0 {
		t.Fatal("unbalanced entry must not reach the repository")
	}
}

func TestPostRejectsNonPositiveAmount(t *testing.T) {
	svc := newTestService(t, &stubRepo{}, &stubAccounts{}, &stubBalances{}, nil, nil)

	input := balancedInput(uuid.New(), uuid.New())
	input.Lines[0].Amount = decimal.NewFromInt(-125)
	input.Lines[1].Amount = decimal.NewFromInt(-125)
	_, err := svc.Post(context.Background(), input)
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPostRejectsUnknownAccount(t *testing.T) {
	missing := uuid.New()
	accounts := &stubAccounts{missing: map[uuid.UUID]bool{missing: true}}
	balances := &stubBalances{}
	svc := newTestService(t, &stubRepo{}, accounts, balances, nil, nil)

	_, err := svc.Post(context.Background(), balancedInput(missing, uuid.New()))
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(balances.applied) != 0 {
		t.Fatal("no balance delta may apply for a rejected entry")
	}
}

func TestPostDuplicateTransferID(t *testing.T) {
	repo := &stubRepo{
		createFn: func(entry *models.JournalEntry) error {
			return errDuplicateKey{}
		},
	}
	svc := newTestService(t, repo, &stubAccounts{}, &stubBalances{}, nil, nil)

	transferID := "tr-0042"
	input := balancedInput(uuid.New(), uuid.New())
	input.Source = enums.EntrySourceTransferSync
	input.TransferID = &transferID
	_, err := svc.Post(context.Background(), input)
	if !IsDuplicateTransfer(err) {
		t.Fatalf("expected duplicate transfer error, got %v", err)
	}
}

func TestPostAdvancesCursorWithEntry(t *testing.T) {
	cursors := &stubCursors{}
	box := &stubOutbox{}
	svc := newTestService(t, &stubRepo{}, &stubAccounts{}, &stubBalances{}, cursors, box)

	transferID := "tr-0099"
	input := balancedInput(uuid.New(), uuid.New())
	input.Source = enums.EntrySourceTransferSync
	input.TransferID = &transferID
	input.Cursor = &CursorAdvance{PartitionID: 3, Sequence: 41}
	if _, err := svc.Post(context.Background(), input); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cursors.advanced) != 1 {
		t.Fatalf("expected one cursor advance, got %d", len(cursors.advanced))
	}
	if cursors.advanced[0].PartitionID != 3 || cursors.advanced[0].Sequence != 41 {
		t.Fatalf("cursor advanced to wrong position: %+v", cursors.advanced[0])
	}
	if len(box.events) != 1 || box.events[0].EventType != enums.EventJournalEntryPosted {
		t.Fatal("synced postings must queue the posted notification")
	}
}

func TestReverseFlipsLinesAndMarksOriginal(t *testing.T) {
	originalID := uuid.New()
	debitAccount := uuid.New()
	creditAccount := uuid.New()
	repo := &stubRepo{
		findByIDFn: func(id uuid.UUID) (*models.JournalEntry, error) {
			return &models.JournalEntry{
				ID:     originalID,
				Status: enums.EntryStatusPosted,
				Source: enums.EntrySourcePurchase,
				Lines: []models.JournalLine{
					{AccountID: debitAccount, Type: enums.LineTypeDebit, Amount: decimal.NewFromInt(80)},
					{AccountID: creditAccount, Type: enums.LineTypeCredit, Amount: decimal.NewFromInt(80)},
				},
			}, nil
		},
	}
	balances := &stubBalances{}
	box := &stubOutbox{}
	svc := newTestService(t, repo, &stubAccounts{}, balances, nil, box)

	reversal, err := svc.Reverse(context.Background(), originalID, "posted to wrong account")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reversal.Source != enums.EntrySourceReversal {
		t.Fatalf("expected reversal source, got %s", reversal.Source)
	}
	if reversal.ReversalOf == nil || *reversal.ReversalOf != originalID {
		t.Fatal("reversal must reference the original entry")
	}
	if reversal.Lines[0].Type != enums.LineTypeCredit || reversal.Lines[1].Type != enums.LineTypeDebit {
		t.Fatal("reversal lines must flip debit and credit")
	}
	if !reversal.Lines[0].Amount.Equal(decimal.NewFromInt(80)) {
		t.Fatal("reversal amounts must match the original")
	}
	if len(repo.markedReversed) != 1 || repo.markedReversed[0] != originalID {
		t.Fatal("original entry was not marked reversed")
	}
	if len(box.events) != 1 || box.events[0].EventType != enums.EventJournalEntryReversed {
		t.Fatal("expected a reversed event")
	}
}

func TestReverseRequiresReason(t *testing.T) {
	svc := newTestService(t, &stubRepo{}, &stubAccounts{}, &stubBalances{}, nil, nil)

	_, err := svc.Reverse(context.Background(), uuid.New(), "  ")
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestReverseAlreadyReversed(t *testing.T) {
	repo := &stubRepo{
		findByIDFn: func(id uuid.UUID) (*models.JournalEntry, error) {
			return &models.JournalEntry{ID: id, Status: enums.EntryStatusReversed}, nil
		},
	}
	svc := newTestService(t, repo, &stubAccounts{}, &stubBalances{}, nil, nil)

	_, err := svc.Reverse(context.Background(), uuid.New(), "double check")
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if len(repo.created) != 0 {
		t.Fatal("no reversal may be created for a reversed entry")
	}
}

func TestReverseUnknownEntry(t *testing.T) {
	svc := newTestService(t, &stubRepo{}, &stubAccounts{}, &stubBalances{}, nil, nil)

	_, err := svc.Reverse(context.Background(), uuid.New(), "missing")
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

// errDuplicateKey mimics the driver error surfaced when the partial unique
// index on transfer_id rejects a second materialization.
type errDuplicateKey struct{}

func (errDuplicateKey) Error() string {
	return `ERROR: duplicate key value violates unique constraint "ux_journal_entries_transfer_id" (SQLSTATE 23505)`
}
