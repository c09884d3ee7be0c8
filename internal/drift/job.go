package drift

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/meridianfin/ledgermirror/internal/balances"
	"github.com/meridianfin/ledgermirror/internal/primaryledger"
	"github.com/meridianfin/ledgermirror/pkg/db/models"
	pkgerrors "github.com/meridianfin/ledgermirror/pkg/errors"
	"github.com/meridianfin/ledgermirror/pkg/logger"
	"github.com/meridianfin/ledgermirror/pkg/metrics"
)

const jobName = "balance-drift-check"

const amountScale = 4

type accountLister interface {
	ListActive(ctx context.Context, limit int) ([]models.Account, error)
}

type balanceReader interface {
	GetBalance(ctx context.Context, accountID uuid.UUID) (*balances.BalanceView, error)
}

type primaryBalances interface {
	GetAccountBalance(ctx context.Context, accountID uuid.UUID) (*primaryledger.AccountBalance, error)
}

// Job samples active accounts and compares the projected totals against the
// primary ledger. Drift is reported, never corrected: the fix is a manual
// rebuild after investigation.
type Job struct {
	accounts   accountLister
	balances   balanceReader
	primary    primaryBalances
	metrics    *metrics.SyncMetrics
	logg       *logger.Logger
	sampleSize int
}

// NewJob builds the drift check job.
func NewJob(accounts accountLister, balances balanceReader, primary primaryBalances, m *metrics.SyncMetrics, logg *logger.Logger, sampleSize int) (*Job, error) {
	if accounts == nil {
		return nil, fmt.Errorf("account registry required")
	}
	if balances == nil {
		return nil, fmt.Errorf("balance projection required")
	}
	if primary == nil {
		return nil, fmt.Errorf("primary ledger client required")
	}
	if sampleSize < 1 {
		return nil, fmt.Errorf("sample size must be positive")
	}
	return &Job{
		accounts:   accounts,
		balances:   balances,
		primary:    primary,
		metrics:    m,
		logg:       logg,
		sampleSize: sampleSize,
	}, nil
}

// Name identifies the job in logs and metrics.
func (j *Job) Name() string {
	return jobName
}

// Run checks one sample of accounts. Accounts unknown to the primary ledger
// are skipped: manual-only accounts have nothing to drift from.
func (j *Job) Run(ctx context.Context) error {
	sample, err := j.accounts.ListActive(ctx, j.sampleSize)
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}

	drifted := 0
	var errs []error
	for _, account := range sample {
		ok, err := j.check(ctx, account.ID)
		if err != nil {
			if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
				continue
			}
			errs = append(errs, fmt.Errorf("account %s: %w", account.ID, err))
			continue
		}
		if !ok {
			drifted++
		}
	}

	if drifted > 0 {
		errs = append(errs, pkgerrors.New(pkgerrors.CodeConsistency,
			fmt.Sprintf("%d of %d sampled accounts drifted from the primary ledger", drifted, len(sample))))
	}
	return multierr.Combine(errs...)
}

func (j *Job) check(ctx context.Context, accountID uuid.UUID) (bool, error) {
	remote, err := j.primary.GetAccountBalance(ctx, accountID)
	if err != nil {
		return false, err
	}
	local, err := j.balances.GetBalance(ctx, accountID)
	if err != nil {
		return false, err
	}

	debitsMatch := local.DebitTotal.Round(amountScale).Equal(remote.DebitTotal.Round(amountScale))
	creditsMatch := local.CreditTotal.Round(amountScale).Equal(remote.CreditTotal.Round(amountScale))
	if debitsMatch && creditsMatch {
		return true, nil
	}

	j.metrics.IncDrift()
	if j.logg != nil {
		logCtx := j.logg.WithFields(ctx, map[string]any{
			"account_id":           accountID.String(),
			"local_debit_total":    local.DebitTotal.String(),
			"local_credit_total":   local.CreditTotal.String(),
			"primary_debit_total":  remote.DebitTotal.String(),
			"primary_credit_total": remote.CreditTotal.String(),
		})
		j.logg.Warn(logCtx, "balance drift detected")
	}
	return false, nil
}
