package models

import "time"

// SyncCursor is the per-partition high-water mark for transfer materialization.
// It advances in the same transaction as the journal entry insert, so a cursor
// can never point past an entry that was not committed.
type SyncCursor struct {
	PartitionID  int       `gorm:"column:partition_id;primaryKey"`
	LastSequence int64     `gorm:"column:last_sequence;not null"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
