package journal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbpkg "github.com/meridianfin/ledgermirror/pkg/db"
	"github.com/meridianfin/ledgermirror/pkg/db/models"
	"github.com/meridianfin/ledgermirror/pkg/enums"
	pkgerrors "github.com/meridianfin/ledgermirror/pkg/errors"
	"github.com/meridianfin/ledgermirror/pkg/logger"
	"github.com/meridianfin/ledgermirror/pkg/outbox"
)

const transferIDConstraint = "ux_journal_entries_transfer_id"

// LineInput is one debit or credit leg of a posting request.
type LineInput struct {
	AccountID uuid.UUID       `json:"account_id"`
	Type      enums.LineType  `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
}

// CursorAdvance couples a posting to a sync cursor move. Set only by the sync
// service; the advance commits in the same transaction as the entry.
type CursorAdvance struct {
	PartitionID int
	Sequence    int64
}

// PostEntryInput captures a balanced journal entry to append.
type PostEntryInput struct {
	EntryDate         time.Time         `json:"entry_date"`
	Description       string            `json:"description"`
	Source            enums.EntrySource `json:"source"`
	Lines             []LineInput       `json:"lines"`
	TransferID        *string           `json:"transfer_id,omitempty"`
	ExternalReference *string           `json:"external_reference,omitempty"`

	Cursor *CursorAdvance `json:"-"`
}

// Service is the only writer of accounting state in the mirror.
type Service interface {
	Post(ctx context.Context, input PostEntryInput) (*models.JournalEntry, error)
	Reverse(ctx context.Context, entryID uuid.UUID, reason string) (*models.JournalEntry, error)
	GetEntry(ctx context.Context, id uuid.UUID) (*models.JournalEntry, error)
	GetByTransferID(ctx context.Context, transferID string) (*models.JournalEntry, error)
	ListEntries(ctx context.Context, filter ListFilter) ([]models.JournalEntry, error)
}

type accountFinder interface {
	FindActiveByIDsTx(tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]models.Account, error)
}

type balanceApplier interface {
	ApplyLineTx(tx *gorm.DB, accountID uuid.UUID, lineType enums.LineType, amount decimal.Decimal) error
}

type cursorAdvancer interface {
	AdvanceTx(tx *gorm.DB, partitionID int, sequence int64) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams wire the journal engine. Cursors and Outbox are optional;
// everything else is required.
type ServiceParams struct {
	Repo     Repository
	Accounts accountFinder
	Balances balanceApplier
	Cursors  cursorAdvancer
	Outbox   eventEmitter
	TxRunner txRunner
	Logger   *logger.Logger
}

type service struct {
	repo     Repository
	accounts accountFinder
	balances balanceApplier
	cursors  cursorAdvancer
	outbox   eventEmitter
	tx       txRunner
	logg     *logger.Logger
}

// NewService validates dependencies and builds the journal engine.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "journal repository required")
	}
	if params.Accounts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "account finder required")
	}
	if params.Balances == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "balance applier required")
	}
	if params.TxRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	return &service{
		repo:     params.Repo,
		accounts: params.Accounts,
		balances: params.Balances,
		cursors:  params.Cursors,
		outbox:   params.Outbox,
		tx:       params.TxRunner,
		logg:     params.Logger,
	}, nil
}

// Post appends a balanced entry. The entry insert, the balance projection
// deltas, and the optional cursor advance commit in one transaction, so a
// cancelled or failed call leaves no partial state behind.
func (s *service) Post(ctx context.Context, input PostEntryInput) (*models.JournalEntry, error) {
	if err := validatePostInput(input); err != nil {
		return nil, err
	}

	entry := &models.JournalEntry{
		EntryDate:         input.EntryDate,
		Description:       strings.TrimSpace(input.Description),
		Source:            input.Source,
		Status:            enums.EntryStatusPosted,
		TransferID:        input.TransferID,
		ExternalReference: input.ExternalReference,
	}
	for _, line := range input.Lines {
		entry.Lines = append(entry.Lines, models.JournalLine{
			AccountID: line.AccountID,
			Type:      line.Type,
			Amount:    line.Amount,
		})
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.checkAccounts(tx, entry.Lines); err != nil {
			return err
		}

		if err := s.repo.CreateTx(tx, entry); err != nil {
			if dbpkg.IsUniqueViolation(err, transferIDConstraint) {
				return ErrDuplicateTransferID
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert journal entry")
		}

		for _, line := range entry.Lines {
			if err := s.balances.ApplyLineTx(tx, line.AccountID, line.Type, line.Amount); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply balance delta")
			}
		}

		if input.Cursor != nil {
			if s.cursors == nil {
				return pkgerrors.New(pkgerrors.CodeInternal, "cursor advance requested without cursor store")
			}
			if err := s.cursors.AdvanceTx(tx, input.Cursor.PartitionID, input.Cursor.Sequence); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "advance sync cursor")
			}
		}

		return s.emit(ctx, tx, enums.EventJournalEntryPosted, entry)
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"entry_id": entry.ID.String(),
			"source":   entry.Source,
			"lines":    len(entry.Lines),
		})
		s.logg.Info(logCtx, "journal entry posted")
	}
	return entry, nil
}

// Reverse appends a new entry with every line flipped and marks the original
// reversed. The original lines are untouched.
func (s *service) Reverse(ctx context.Context, entryID uuid.UUID, reason string) (*models.JournalEntry, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reversal reason is required")
	}

	var reversal *models.JournalEntry
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		original, err := s.repo.FindByIDTx(tx, entryID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "journal entry not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load journal entry")
		}
		if original.Status != enums.EntryStatusPosted {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "journal entry is already reversed")
		}

		ref := original.ID
		reversal = &models.JournalEntry{
			EntryDate:   time.Now(),
			Description: fmt.Sprintf("reversal of %s: %s", original.ID, reason),
			Source:      enums.EntrySourceReversal,
			Status:      enums.EntryStatusPosted,
			ReversalOf:  &ref,
		}
		for _, line := range original.Lines {
			reversal.Lines = append(reversal.Lines, models.JournalLine{
				AccountID: line.AccountID,
				Type:      line.Type.Opposite(),
				Amount:    line.Amount,
			})
		}

		if err := s.repo.CreateTx(tx, reversal); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert reversal entry")
		}
		for _, line := range reversal.Lines {
			if err := s.balances.ApplyLineTx(tx, line.AccountID, line.Type, line.Amount); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply balance delta")
			}
		}
		if err := s.repo.MarkReversedTx(tx, original.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark entry reversed")
		}

		return s.emit(ctx, tx, enums.EventJournalEntryReversed, reversal)
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"entry_id":    entryID.String(),
			"reversal_id": reversal.ID.String(),
		})
		s.logg.Info(logCtx, "journal entry reversed")
	}
	return reversal, nil
}

func (s *service) GetEntry(ctx context.Context, id uuid.UUID) (*models.JournalEntry, error) {
	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "journal entry not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load journal entry")
	}
	return entry, nil
}

func (s *service) GetByTransferID(ctx context.Context, transferID string) (*models.JournalEntry, error) {
	entry, err := s.repo.FindByTransferID(ctx, transferID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no entry for transfer")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load journal entry")
	}
	return entry, nil
}

func (s *service) ListEntries(ctx context.Context, filter ListFilter) ([]models.JournalEntry, error) {
	entries, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list journal entries")
	}
	return entries, nil
}

func (s *service) checkAccounts(tx *gorm.DB, lines []models.JournalLine) error {
	seen := make(map[uuid.UUID]struct{}, len(lines))
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.AccountID]; ok {
			continue
		}
		seen[line.AccountID] = struct{}{}
		ids = append(ids, line.AccountID)
	}

	found, err := s.accounts.FindActiveByIDsTx(tx, ids)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve accounts")
	}
	var missing []string
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id.String())
		}
	}
	if len(missing) > 0 {
		return ErrUnknownAccount.WithDetails(map[string]any{"account_ids": missing})
	}
	return nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, entry *models.JournalEntry) error {
	if s.outbox == nil {
		return nil
	}

	debitTotal := decimal.Zero
	for _, line := range entry.Lines {
		if line.Type == enums.LineTypeDebit {
			debitTotal = debitTotal.Add(line.Amount)
		}
	}
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateJournalEntry,
		AggregateID:   entry.ID,
		Version:       1,
		Data: outbox.JournalEntryPostedPayload{
			EntryID:           entry.ID,
			Source:            entry.Source,
			TransferID:        entry.TransferID,
			ExternalReference: entry.ExternalReference,
			DebitTotal:        debitTotal,
			EntryDate:         entry.EntryDate,
		},
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue journal notification")
	}
	return nil
}

func validatePostInput(input PostEntryInput) error {
	if len(input.Lines) < 2 {
		return ErrEmptyEntry
	}
	if !input.Source.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid entry source")
	}
	if input.EntryDate.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "entry date is required")
	}

	debitTotal := decimal.Zero
	creditTotal := decimal.Zero
	for _, line := range input.Lines {
		if line.AccountID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "line account id is required")
		}
		if !line.Type.IsValid() {
			return pkgerrors.New(pkgerrors.CodeValidation, "invalid line type")
		}
		if !line.Amount.IsPositive() {
			return pkgerrors.New(pkgerrors.CodeValidation, "line amount must be positive")
		}
		if line.Type == enums.LineTypeDebit {
			debitTotal = debitTotal.Add(line.Amount)
		} else {
			creditTotal = creditTotal.Add(line.Amount)
		}
	}
	if !debitTotal.Equal(creditTotal) {
		return ErrUnbalanced.WithDetails(map[string]any{
			"debit_total":  debitTotal.String(),
			"credit_total": creditTotal.String(),
		})
	}
	return nil
}
