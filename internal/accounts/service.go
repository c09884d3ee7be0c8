package accounts

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/meridianfin/ledgermirror/pkg/db/models"
	"github.com/meridianfin/ledgermirror/pkg/enums"
	pkgerrors "github.com/meridianfin/ledgermirror/pkg/errors"
)

// Service defines registry operations. Accounts are created by administrative
// action and deactivated, never deleted.
type Service interface {
	Create(ctx context.Context, input CreateAccountInput) (*models.Account, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Account, error)
	List(ctx context.Context, includeInactive bool) ([]models.Account, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}

// CreateAccountInput carries the immutable account attributes.
type CreateAccountInput struct {
	Name string            `json:"name"`
	Type enums.AccountType `json:"type"`
	Unit string            `json:"unit"`
}

type service struct {
	repo  Repository
	cache *Cache
}

// NewService wires the registry service. The cache is optional.
func NewService(repo Repository, cache *Cache) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "accounts repository required")
	}
	return &service{repo: repo, cache: cache}, nil
}

func (s *service) Create(ctx context.Context, input CreateAccountInput) (*models.Account, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account name is required")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid account type")
	}
	unit := strings.ToUpper(strings.TrimSpace(input.Unit))
	if len(unit) != 3 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit must be a 3-letter currency code")
	}

	account := &models.Account{
		Name:   name,
		Type:   input.Type,
		Unit:   unit,
		Active: true,
	}
	if err := s.repo.Create(ctx, account); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create account")
	}
	s.cache.Put(ctx, account)
	return account, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	if cached := s.cache.Get(ctx, id); cached != nil {
		return cached, nil
	}
	account, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account")
	}
	s.cache.Put(ctx, account)
	return account, nil
}

func (s *service) List(ctx context.Context, includeInactive bool) ([]models.Account, error) {
	rows, err := s.repo.List(ctx, includeInactive)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list accounts")
	}
	return rows, nil
}

func (s *service) Deactivate(ctx context.Context, id uuid.UUID) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate account")
	}
	s.cache.Invalidate(ctx, id)
	return nil
}
