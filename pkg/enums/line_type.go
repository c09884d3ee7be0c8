package enums

import "fmt"

// LineType maps to the line_type_enum enum in Postgres.
type LineType string

const (
	LineTypeDebit  LineType = "debit"
	LineTypeCredit LineType = "credit"
)

// String implements fmt.Stringer.
func (t LineType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known line type.
func (t LineType) IsValid() bool {
	return t == LineTypeDebit || t == LineTypeCredit
}

// Opposite returns the flipped side, used when building reversing entries.
func (t LineType) Opposite() LineType {
	if t == LineTypeDebit {
		return LineTypeCredit
	}
	return LineTypeDebit
}

// ParseLineType converts raw input into a LineType.
func ParseLineType(value string) (LineType, error) {
	switch LineType(value) {
	case LineTypeDebit:
		return LineTypeDebit, nil
	case LineTypeCredit:
		return LineTypeCredit, nil
	}
	return "", fmt.Errorf("invalid line type %q", value)
}
