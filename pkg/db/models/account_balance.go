package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountBalance is the materialized balance projection for one account.
// Debit and credit totals are tracked separately and incremented atomically;
// the signed balance is derived at read time from the account type. The row
// is rebuildable from journal lines, which is the recovery path after drift.
type AccountBalance struct {
	AccountID   uuid.UUID       `gorm:"column:account_id;type:uuid;primaryKey"`
	DebitTotal  decimal.Decimal `gorm:"column:debit_total;type:numeric(20,4);not null;default:0"`
	CreditTotal decimal.Decimal `gorm:"column:credit_total;type:numeric(20,4);not null;default:0"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
