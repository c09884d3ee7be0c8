package accounts

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/meridianfin/ledgermirror/pkg/db/models"
)

// Repository manages persistence for the account registry.
type Repository interface {
	Create(ctx context.Context, account *models.Account) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	FindActiveByIDsTx(tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]models.Account, error)
	List(ctx context.Context, includeInactive bool) ([]models.Account, error)
	ListActive(ctx context.Context, limit int) ([]models.Account, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an account repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, account *models.Account) error {
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).First(&account, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// FindActiveByIDsTx resolves accounts inside the caller's transaction so the
// journal engine validates line references against committed registry state.
func (r *repository) FindActiveByIDsTx(tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]models.Account, error) {
	if tx == nil {
		tx = r.db
	}
	var rows []models.Account
	if err := tx.Where("id IN ? AND active", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	found := make(map[uuid.UUID]models.Account, len(rows))
	for _, row := range rows {
		found[row.ID] = row
	}
	return found, nil
}

func (r *repository) List(ctx context.Context, includeInactive bool) ([]models.Account, error) {
	query := r.db.WithContext(ctx).Order("created_at ASC")
	if !includeInactive {
		query = query.Where("active")
	}
	var rows []models.Account
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListActive(ctx context.Context, limit int) ([]models.Account, error) {
	var rows []models.Account
	if err := r.db.WithContext(ctx).
		Where("active").
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Deactivate(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ?", id).
		Update("active", false).Error
}
