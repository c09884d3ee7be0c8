package outbox

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridianfin/ledgermirror/pkg/enums"
)

// JournalEntryPostedPayload describes a freshly committed journal entry.
// The reconciliation matcher consumes it to re-check pending external events
// without waiting for the retry schedule.
type JournalEntryPostedPayload struct {
	EntryID           uuid.UUID         `json:"entry_id"`
	Source            enums.EntrySource `json:"source"`
	TransferID        *string           `json:"transfer_id,omitempty"`
	ExternalReference *string           `json:"external_reference,omitempty"`
	DebitTotal        decimal.Decimal   `json:"debit_total"`
	EntryDate         time.Time         `json:"entry_date"`
}
