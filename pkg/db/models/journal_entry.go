package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridianfin/ledgermirror/pkg/enums"
)

// JournalEntry is an append-only, balanced accounting record. Corrections are
// expressed as reversing entries; posted lines are never mutated.
//
// TransferID carries the primary-ledger idempotency key for synced entries and
// is unique where non-null, which is what enforces at-most-once
// materialization under concurrent retries.
type JournalEntry struct {
	ID                uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EntryDate         time.Time         `gorm:"column:entry_date;not null"`
	Description       string            `gorm:"column:description;not null"`
	Source            enums.EntrySource `gorm:"column:source;type:entry_source_enum;not null"`
	Status            enums.EntryStatus `gorm:"column:status;type:entry_status_enum;not null;default:'posted'"`
	TransferID        *string           `gorm:"column:transfer_id"`
	ExternalReference *string           `gorm:"column:external_reference"`
	ReversalOf        *uuid.UUID        `gorm:"column:reversal_of;type:uuid"`
	Lines             []JournalLine     `gorm:"foreignKey:EntryID"`
	CreatedAt         time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// JournalLine is one debit or credit leg of a journal entry.
// Stored in journal_entry_lines.
type JournalLine struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EntryID   uuid.UUID       `gorm:"column:entry_id;type:uuid;not null;index"`
	AccountID uuid.UUID       `gorm:"column:account_id;type:uuid;not null;index"`
	Type      enums.LineType  `gorm:"column:type;type:line_type_enum;not null"`
	Amount    decimal.Decimal `gorm:"column:amount;type:numeric(20,4);not null"`
}

// TableName maps the model onto the mirror schema.
func (JournalLine) TableName() string {
	return "journal_entry_lines"
}
