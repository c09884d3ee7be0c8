package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridianfin/ledgermirror/pkg/enums"
)

// ReconciliationEntry tracks one external payment-rail event and its link to
// a journal entry. Amount is what the rail reported; LedgerAmount is retained
// when the two disagree so disputes keep both values for manual review.
type ReconciliationEntry struct {
	ID                uuid.UUID                  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ExternalReference string                     `gorm:"column:external_reference;not null;unique"`
	JournalEntryID    *uuid.UUID                 `gorm:"column:journal_entry_id;type:uuid"`
	Status            enums.ReconciliationStatus `gorm:"column:status;type:reconciliation_status_enum;not null;default:'unmatched'"`
	Amount            decimal.Decimal            `gorm:"column:amount;type:numeric(20,4);not null"`
	LedgerAmount      *decimal.Decimal           `gorm:"column:ledger_amount;type:numeric(20,4)"`
	RawPayload        json.RawMessage            `gorm:"column:raw_payload;type:jsonb"`
	LastCheckedAt     *time.Time                 `gorm:"column:last_checked_at"`
	CreatedAt         time.Time                  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time                  `gorm:"column:updated_at;autoUpdateTime"`
}
