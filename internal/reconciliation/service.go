package reconciliation

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/meridianfin/ledgermirror/pkg/db"
	"github.com/meridianfin/ledgermirror/pkg/db/models"
	"github.com/meridianfin/ledgermirror/pkg/enums"
	pkgerrors "github.com/meridianfin/ledgermirror/pkg/errors"
	"github.com/meridianfin/ledgermirror/pkg/logger"
)

// amountScale matches the numeric(20,4) columns; amounts are compared after
// quantizing to it so representation noise never flags a dispute.
const amountScale = 4

const referenceConstraint = "ux_reconciliation_entries_external_reference"

// ExternalEventInput is one settlement event reported by a payment rail.
type ExternalEventInput struct {
	ExternalReference string          `json:"external_reference"`
	Amount            decimal.Decimal `json:"amount"`
	RawPayload        json.RawMessage `json:"raw_payload,omitempty"`
}

type journalLookup interface {
	FindPostedByExternalReference(ctx context.Context, reference string) (*models.JournalEntry, error)
}

// Service matches external settlement events against posted journal entries.
type Service interface {
	IngestExternalEvent(ctx context.Context, input ExternalEventInput) (*models.ReconciliationEntry, error)
	Recheck(ctx context.Context, reference string) (*models.ReconciliationEntry, error)
	GetStatus(ctx context.Context, reference string) (*models.ReconciliationEntry, error)
	MarkReconciled(ctx context.Context, reference string) (*models.ReconciliationEntry, error)
	RetryUnmatched(ctx context.Context, batchSize int) (int, error)
}

type service struct {
	repo    Repository
	journal journalLookup
	logg    *logger.Logger
}

// NewService wires the reconciliation matcher.
func NewService(repo Repository, journal journalLookup, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "reconciliation repository required")
	}
	if journal == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "journal lookup required")
	}
	return &service{repo: repo, journal: journal, logg: logg}, nil
}

// IngestExternalEvent records a settlement event and attempts a match. The
// external reference is the idempotency key: a redelivered event re-checks the
// existing row instead of inserting a second one.
func (s *service) IngestExternalEvent(ctx context.Context, input ExternalEventInput) (*models.ReconciliationEntry, error) {
	reference := strings.TrimSpace(input.ExternalReference)
	if reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "external reference is required")
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event amount must be positive")
	}

	entry := &models.ReconciliationEntry{
		ExternalReference: reference,
		Status:            enums.ReconciliationStatusUnmatched,
		Amount:            input.Amount,
		RawPayload:        input.RawPayload,
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		if !db.IsUniqueViolation(err, referenceConstraint) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record external event")
		}
		existing, findErr := s.repo.FindByReference(ctx, reference)
		if findErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "load reconciliation entry")
		}
		entry = existing
	}

	return s.match(ctx, entry)
}

// Recheck re-runs matching for a reference already on file. Called when a
// journal entry posting notification arrives after the rail's event did.
func (s *service) Recheck(ctx context.Context, reference string) (*models.ReconciliationEntry, error) {
	entry, err := s.find(ctx, reference)
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			// The rail has not reported this reference yet; nothing to match.
			return nil, nil
		}
		return nil, err
	}
	return s.match(ctx, entry)
}

func (s *service) GetStatus(ctx context.Context, reference string) (*models.ReconciliationEntry, error) {
	return s.find(ctx, reference)
}

// MarkReconciled confirms a matched pair. Only matched entries qualify;
// reconciled is a human decision, never inferred.
func (s *service) MarkReconciled(ctx context.Context, reference string) (*models.ReconciliationEntry, error) {
	entry, err := s.find(ctx, reference)
	if err != nil {
		return nil, err
	}
	if entry.Status != enums.ReconciliationStatusMatched {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only matched entries can be reconciled").
			WithDetails(map[string]any{"status": entry.Status})
	}

	entry.Status = enums.ReconciliationStatusReconciled
	if err := s.repo.Update(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update reconciliation entry")
	}
	return entry, nil
}

// RetryUnmatched re-checks a batch of unmatched entries and reports how many
// moved out of unmatched.
func (s *service) RetryUnmatched(ctx context.Context, batchSize int) (int, error) {
	entries, err := s.repo.ListUnmatched(ctx, batchSize)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list unmatched entries")
	}

	resolved := 0
	for i := range entries {
		updated, err := s.match(ctx, &entries[i])
		if err != nil {
			return resolved, err
		}
		if updated.Status != enums.ReconciliationStatusUnmatched {
			resolved++
		}
	}
	return resolved, nil
}

func (s *service) find(ctx context.Context, reference string) (*models.ReconciliationEntry, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "external reference is required")
	}
	entry, err := s.repo.FindByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no reconciliation entry for reference")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reconciliation entry")
	}
	return entry, nil
}

// match looks up the posted journal entry for the reference and settles the
// row's status. Terminal states (reconciled, disputed) are left alone.
func (s *service) match(ctx context.Context, entry *models.ReconciliationEntry) (*models.ReconciliationEntry, error) {
	if entry.Status == enums.ReconciliationStatusReconciled ||
		entry.Status == enums.ReconciliationStatusDisputed {
		return entry, nil
	}

	now := time.Now()
	journalEntry, err := s.journal.FindPostedByExternalReference(ctx, entry.ExternalReference)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if touchErr := s.repo.TouchLastChecked(ctx, entry.ExternalReference, now); touchErr != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, touchErr, "update reconciliation entry")
			}
			entry.LastCheckedAt = &now
			return entry, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up journal entry")
	}

	ledgerAmount := debitTotal(journalEntry)
	entry.JournalEntryID = &journalEntry.ID
	entry.LastCheckedAt = &now
	if entry.Amount.Round(amountScale).Equal(ledgerAmount.Round(amountScale)) {
		entry.Status = enums.ReconciliationStatusMatched
		entry.LedgerAmount = nil
	} else {
		entry.Status = enums.ReconciliationStatusDisputed
		entry.LedgerAmount = &ledgerAmount
	}

	if err := s.repo.Update(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update reconciliation entry")
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"external_reference": entry.ExternalReference,
			"status":             entry.Status,
		})
		s.logg.Info(logCtx, "reconciliation entry settled")
	}
	return entry, nil
}

func debitTotal(entry *models.JournalEntry) decimal.Decimal {
	total := decimal.Zero
	for _, line := range entry.Lines {
		if line.Type == enums.LineTypeDebit {
			total = total.Add(line.Amount)
		}
	}
	return total
}
