package balances

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/meridianfin/ledgermirror/pkg/db/models"
	"github.com/meridianfin/ledgermirror/pkg/enums"
)

// Repository maintains the materialized balance rows. Increments are applied
// with SQL-side expressions because many partitions can touch the same
// account concurrently; read-modify-write would lose updates.
type Repository interface {
	ApplyLineTx(tx *gorm.DB, accountID uuid.UUID, lineType enums.LineType, amount decimal.Decimal) error
	Find(ctx context.Context, accountID uuid.UUID) (*models.AccountBalance, error)
	RebuildTx(tx *gorm.DB, accountID uuid.UUID) (*models.AccountBalance, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a balance repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) ApplyLineTx(tx *gorm.DB, accountID uuid.UUID, lineType enums.LineType, amount decimal.Decimal) error {
	if tx == nil {
		tx = r.db
	}

	row := models.AccountBalance{AccountID: accountID}
	var assignments map[string]any
	if lineType == enums.LineTypeDebit {
		row.DebitTotal = amount
		row.CreditTotal = decimal.Zero
		assignments = map[string]any{
			"debit_total": gorm.Expr("account_balances.debit_total + ?", amount),
			"updated_at":  gorm.Expr("now()"),
		}
	} else {
		row.DebitTotal = decimal.Zero
		row.CreditTotal = amount
		assignments = map[string]any{
			"credit_total": gorm.Expr("account_balances.credit_total + ?", amount),
			"updated_at":   gorm.Expr("now()"),
		}
	}

	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}},
		DoUpdates: clause.Assignments(assignments),
	}).Create(&row).Error
}

func (r *repository) Find(ctx context.Context, accountID uuid.UUID) (*models.AccountBalance, error) {
	var row models.AccountBalance
	if err := r.db.WithContext(ctx).First(&row, "account_id = ?", accountID).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// RebuildTx recomputes the totals from journal lines and overwrites the row.
// This is the canonical recovery path after detected drift; reversal entries
// carry their own offsetting lines, so all lines are summed regardless of the
// owning entry's status.
func (r *repository) RebuildTx(tx *gorm.DB, accountID uuid.UUID) (*models.AccountBalance, error) {
	if tx == nil {
		tx = r.db
	}

	var totals struct {
		DebitTotal  decimal.Decimal
		CreditTotal decimal.Decimal
	}
	err := tx.Model(&models.JournalLine{}).
		Select(
			"COALESCE(SUM(CASE WHEN type = ? THEN amount END), 0) AS debit_total, "+
				"COALESCE(SUM(CASE WHEN type = ? THEN amount END), 0) AS credit_total",
			enums.LineTypeDebit, enums.LineTypeCredit,
		).
		Where("account_id = ?", accountID).
		Scan(&totals).Error
	if err != nil {
		return nil, err
	}

	row := models.AccountBalance{
		AccountID:   accountID,
		DebitTotal:  totals.DebitTotal,
		CreditTotal: totals.CreditTotal,
	}
	err = tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "account_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"debit_total":  totals.DebitTotal,
			"credit_total": totals.CreditTotal,
			"updated_at":   gorm.Expr("now()"),
		}),
	}).Create(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}
