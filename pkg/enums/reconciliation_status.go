package enums

import "fmt"

// ReconciliationStatus maps to the reconciliation_status_enum enum in Postgres.
//
// Transitions: unmatched -> matched -> reconciled, with a side transition from
// unmatched or matched to disputed when amounts disagree. Reconciled is a
// deliberate confirmation step and is never inferred from a single event.
type ReconciliationStatus string

const (
	ReconciliationStatusUnmatched  ReconciliationStatus = "unmatched"
	ReconciliationStatusMatched    ReconciliationStatus = "matched"
	ReconciliationStatusReconciled ReconciliationStatus = "reconciled"
	ReconciliationStatusDisputed   ReconciliationStatus = "disputed"
)

var validReconciliationStatuses = []ReconciliationStatus{
	ReconciliationStatusUnmatched,
	ReconciliationStatusMatched,
	ReconciliationStatusReconciled,
	ReconciliationStatusDisputed,
}

// String implements fmt.Stringer.
func (s ReconciliationStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known reconciliation status.
func (s ReconciliationStatus) IsValid() bool {
	for _, candidate := range validReconciliationStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseReconciliationStatus converts raw input into a ReconciliationStatus.
func ParseReconciliationStatus(value string) (ReconciliationStatus, error) {
	for _, candidate := range validReconciliationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid reconciliation status %q", value)
}
