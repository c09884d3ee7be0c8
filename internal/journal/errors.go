package journal

import (
	pkgerrors "github.com/meridianfin/ledgermirror/pkg/errors"
)

var (
	// ErrEmptyEntry rejects entries with fewer than two lines.
	ErrEmptyEntry = pkgerrors.New(pkgerrors.CodeValidation, "journal entry requires at least two lines")

	// ErrUnbalanced rejects entries whose debit and credit totals differ.
	ErrUnbalanced = pkgerrors.New(pkgerrors.CodeValidation, "debit and credit totals must balance")

	// ErrUnknownAccount rejects lines referencing missing or inactive accounts.
	ErrUnknownAccount = pkgerrors.New(pkgerrors.CodeValidation, "journal line references an unknown or inactive account")

	// ErrDuplicateTransferID marks a transfer that is already materialized.
	// Callers on the sync path treat it as success and advance the cursor.
	ErrDuplicateTransferID = pkgerrors.New(pkgerrors.CodeIdempotency, "transfer already materialized")
)

// IsDuplicateTransfer reports whether err marks an already-materialized
// transfer. Redelivery is expected under at-least-once semantics.
func IsDuplicateTransfer(err error) bool {
	return pkgerrors.HasCode(err, pkgerrors.CodeIdempotency)
}
