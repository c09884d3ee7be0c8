package enums

import "fmt"

// EntryStatus maps to the entry_status_enum enum in Postgres. Posted entries
// are immutable; a reversed entry keeps its lines and only flips status.
type EntryStatus string

const (
	EntryStatusPosted   EntryStatus = "posted"
	EntryStatusReversed EntryStatus = "reversed"
)

// String implements fmt.Stringer.
func (s EntryStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known entry status.
func (s EntryStatus) IsValid() bool {
	return s == EntryStatusPosted || s == EntryStatusReversed
}

// ParseEntryStatus converts raw input into an EntryStatus.
func ParseEntryStatus(value string) (EntryStatus, error) {
	switch EntryStatus(value) {
	case EntryStatusPosted:
		return EntryStatusPosted, nil
	case EntryStatusReversed:
		return EntryStatusReversed, nil
	}
	return "", fmt.Errorf("invalid entry status %q", value)
}
