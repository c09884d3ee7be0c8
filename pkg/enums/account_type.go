package enums

import "fmt"

// AccountType maps to the account_type_enum enum in Postgres.
type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeIncome    AccountType = "income"
	AccountTypeExpense   AccountType = "expense"
	AccountTypeEquity    AccountType = "equity"
)

var validAccountTypes = []AccountType{
	AccountTypeAsset,
	AccountTypeLiability,
	AccountTypeIncome,
	AccountTypeExpense,
	AccountTypeEquity,
}

// IsValid reports whether the value matches the canonical account type enum.
func (t AccountType) IsValid() bool {
	for _, candidate := range validAccountTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// DebitNormal reports whether balances for this account type grow on the
// debit side. Asset and expense accounts are debit-normal; liability, income,
// and equity accounts are credit-normal.
func (t AccountType) DebitNormal() bool {
	return t == AccountTypeAsset || t == AccountTypeExpense
}

// ParseAccountType converts raw input into an AccountType.
func ParseAccountType(value string) (AccountType, error) {
	for _, candidate := range validAccountTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid account type %q", value)
}
