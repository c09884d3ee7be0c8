package journal

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/meridianfin/ledgermirror/pkg/db/models"
	"github.com/meridianfin/ledgermirror/pkg/enums"
)

// ListFilter narrows ListEntries output for the read-only query surface.
type ListFilter struct {
	From   *time.Time
	To     *time.Time
	Source *enums.EntrySource
	Status *enums.EntryStatus
	Limit  int
	Offset int
}

// Repository manages persistence for journal entries and their lines.
type Repository interface {
	CreateTx(tx *gorm.DB, entry *models.JournalEntry) error
	MarkReversedTx(tx *gorm.DB, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.JournalEntry, error)
	FindByIDTx(tx *gorm.DB, id uuid.UUID) (*models.JournalEntry, error)
	FindByTransferID(ctx context.Context, transferID string) (*models.JournalEntry, error)
	FindPostedByExternalReference(ctx context.Context, reference string) (*models.JournalEntry, error)
	List(ctx context.Context, filter ListFilter) ([]models.JournalEntry, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a journal repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateTx(tx *gorm.DB, entry *models.JournalEntry) error {
	if tx == nil {
		tx = r.db
	}
	return tx.Create(entry).Error
}

// MarkReversedTx flips entry status without touching its lines; the audit
// trail stays append-only.
func (r *repository) MarkReversedTx(tx *gorm.DB, id uuid.UUID) error {
	if tx == nil {
		tx = r.db
	}
	return tx.Model(&models.JournalEntry{}).
		Where("id = ?", id).
		Update("status", enums.EntryStatusReversed).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.JournalEntry, error) {
	var entry models.JournalEntry
	err := r.db.WithContext(ctx).
		Preload("Lines").
		First(&entry, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repository) FindByIDTx(tx *gorm.DB, id uuid.UUID) (*models.JournalEntry, error) {
	if tx == nil {
		tx = r.db
	}
	var entry models.JournalEntry
	if err := tx.Preload("Lines").First(&entry, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repository) FindByTransferID(ctx context.Context, transferID string) (*models.JournalEntry, error) {
	var entry models.JournalEntry
	err := r.db.WithContext(ctx).
		Preload("Lines").
		First(&entry, "transfer_id = ?", transferID).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repository) FindPostedByExternalReference(ctx context.Context, reference string) (*models.JournalEntry, error) {
	var entry models.JournalEntry
	err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("status = ?", enums.EntryStatusPosted).
		First(&entry, "external_reference = ?", reference).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]models.JournalEntry, error) {
	query := r.db.WithContext(ctx).Preload("Lines").Order("entry_date ASC, created_at ASC")
	if filter.From != nil {
		query = query.Where("entry_date >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("entry_date <= ?", *filter.To)
	}
	if filter.Source != nil {
		query = query.Where("source = ?", *filter.Source)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var entries []models.JournalEntry
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
