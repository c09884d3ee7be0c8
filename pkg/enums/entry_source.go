package enums

import "fmt"

// EntrySource maps to the entry_source_enum enum in Postgres. It records the
// origin of a journal entry; transfer_sync and reversal entries are created by
// the system, the remaining sources by manual postings.
type EntrySource string

const (
	EntrySourcePurchase     EntrySource = "purchase"
	EntrySourcePayroll      EntrySource = "payroll"
	EntrySourcePayment      EntrySource = "payment"
	EntrySourceTransferSync EntrySource = "transfer_sync"
	EntrySourceReversal     EntrySource = "reversal"
	EntrySourceIntercompany EntrySource = "intercompany"
)

var validEntrySources = []EntrySource{
	EntrySourcePurchase,
	EntrySourcePayroll,
	EntrySourcePayment,
	EntrySourceTransferSync,
	EntrySourceReversal,
	EntrySourceIntercompany,
}

// IsValid reports whether the value is a known entry source.
func (s EntrySource) IsValid() bool {
	for _, candidate := range validEntrySources {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseEntrySource converts raw input into an EntrySource.
func ParseEntrySource(value string) (EntrySource, error) {
	for _, candidate := range validEntrySources {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid entry source %q", value)
}
