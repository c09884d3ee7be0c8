package sync

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/meridianfin/ledgermirror/pkg/db/models"
)

// NoSequence marks a partition with no applied transfers yet.
const NoSequence int64 = -1

// CursorRepository owns the per-partition high-water marks. Each partition
// worker is the sole writer of its row, so there is no cross-worker
// contention; the guard in AdvanceTx only protects against stale replays.
type CursorRepository struct {
	db *gorm.DB
}

// NewCursorRepository returns a cursor repository bound to the database.
func NewCursorRepository(db *gorm.DB) *CursorRepository {
	return &CursorRepository{db: db}
}

// Last returns the last applied sequence for the partition, or NoSequence.
func (r *CursorRepository) Last(ctx context.Context, partitionID int) (int64, error) {
	var cursor models.SyncCursor
	err := r.db.WithContext(ctx).First(&cursor, "partition_id = ?", partitionID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return NoSequence, nil
		}
		return 0, err
	}
	return cursor.LastSequence, nil
}

// AdvanceTx moves the cursor forward inside the caller's transaction. The
// journal engine calls this in the same transaction as the entry insert so
// the two effects commit or roll back together. Sequences never move
// backwards.
func (r *CursorRepository) AdvanceTx(tx *gorm.DB, partitionID int, sequence int64) error {
	if tx == nil {
		tx = r.db
	}
	row := models.SyncCursor{PartitionID: partitionID, LastSequence: sequence}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "partition_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"last_sequence": gorm.Expr(
				"CASE WHEN sync_cursors.last_sequence < ? THEN ? ELSE sync_cursors.last_sequence END",
				sequence, sequence,
			),
			"updated_at": gorm.Expr("now()"),
		}),
	}).Create(&row).Error
}

// Advance moves the cursor in its own transaction. Used when a redelivered
// transfer turns out to be already materialized: there is no entry to commit,
// only the cursor to catch up.
func (r *CursorRepository) Advance(ctx context.Context, partitionID int, sequence int64) error {
	return r.AdvanceTx(r.db.WithContext(ctx), partitionID, sequence)
}
