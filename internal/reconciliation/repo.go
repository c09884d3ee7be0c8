package reconciliation

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/meridianfin/ledgermirror/pkg/db/models"
	"github.com/meridianfin/ledgermirror/pkg/enums"
)

// Repository manages persistence for reconciliation entries.
type Repository interface {
	Create(ctx context.Context, entry *models.ReconciliationEntry) error
	FindByReference(ctx context.Context, reference string) (*models.ReconciliationEntry, error)
	ListUnmatched(ctx context.Context, limit int) ([]models.ReconciliationEntry, error)
	Update(ctx context.Context, entry *models.ReconciliationEntry) error
	TouchLastChecked(ctx context.Context, reference string, at time.Time) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a reconciliation repository bound to the database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, entry *models.ReconciliationEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) FindByReference(ctx context.Context, reference string) (*models.ReconciliationEntry, error) {
	var entry models.ReconciliationEntry
	err := r.db.WithContext(ctx).
		First(&entry, "external_reference = ?", reference).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListUnmatched returns the oldest unmatched entries first so retries drain
// the backlog in arrival order.
func (r *repository) ListUnmatched(ctx context.Context, limit int) ([]models.ReconciliationEntry, error) {
	query := r.db.WithContext(ctx).
		Where("status = ?", enums.ReconciliationStatusUnmatched).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var entries []models.ReconciliationEntry
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) Update(ctx context.Context, entry *models.ReconciliationEntry) error {
	return r.db.WithContext(ctx).Save(entry).Error
}

func (r *repository) TouchLastChecked(ctx context.Context, reference string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.ReconciliationEntry{}).
		Where("external_reference = ?", reference).
		Update("last_checked_at", at).Error
}
