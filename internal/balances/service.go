package balances

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/meridianfin/ledgermirror/pkg/db/models"
	"github.com/meridianfin/ledgermirror/pkg/enums"
	pkgerrors "github.com/meridianfin/ledgermirror/pkg/errors"
)

// BalanceView is the signed, queryable balance for one account. The sign
// convention follows the account type: debit-normal accounts (asset, expense)
// grow with debits, credit-normal accounts grow with credits.
type BalanceView struct {
	AccountID   uuid.UUID         `json:"account_id"`
	AccountType enums.AccountType `json:"account_type"`
	Unit        string            `json:"unit"`
	Balance     decimal.Decimal   `json:"balance"`
	DebitTotal  decimal.Decimal   `json:"debit_total"`
	CreditTotal decimal.Decimal   `json:"credit_total"`
}

type accountGetter interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Account, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes the balance projection.
type Service interface {
	GetBalance(ctx context.Context, accountID uuid.UUID) (*BalanceView, error)
	Rebuild(ctx context.Context, accountID uuid.UUID) (*BalanceView, error)
}

type service struct {
	repo     Repository
	accounts accountGetter
	tx       txRunner
}

// NewService wires the balance projection service.
func NewService(repo Repository, accounts accountGetter, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "balance repository required")
	}
	if accounts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "account registry required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	return &service{repo: repo, accounts: accounts, tx: tx}, nil
}

func (s *service) GetBalance(ctx context.Context, accountID uuid.UUID) (*BalanceView, error) {
	account, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}

	row, err := s.repo.Find(ctx, accountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// No postings yet: a zero balance, not an error.
			row = &models.AccountBalance{AccountID: accountID}
		} else {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load balance")
		}
	}

	return viewFor(account, row), nil
}

// Rebuild recomputes the projection row from journal lines. It is invoked
// manually after drift investigation, never automatically.
func (s *service) Rebuild(ctx context.Context, accountID uuid.UUID) (*BalanceView, error) {
	account, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}

	var row *models.AccountBalance
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		rebuilt, rebuildErr := s.repo.RebuildTx(tx, accountID)
		if rebuildErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, rebuildErr, "rebuild balance")
		}
		row = rebuilt
		return nil
	})
	if err != nil {
		return nil, err
	}

	return viewFor(account, row), nil
}

func viewFor(account *models.Account, row *models.AccountBalance) *BalanceView {
	balance := row.DebitTotal.Sub(row.CreditTotal)
	if !account.Type.DebitNormal() {
		balance = row.CreditTotal.Sub(row.DebitTotal)
	}
	return &BalanceView{
		AccountID:   account.ID,
		AccountType: account.Type,
		Unit:        account.Unit,
		Balance:     balance,
		DebitTotal:  row.DebitTotal,
		CreditTotal: row.CreditTotal,
	}
}
