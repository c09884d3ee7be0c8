package accounts

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/meridianfin/ledgermirror/pkg/db/models"
	"github.com/meridianfin/ledgermirror/pkg/enums"
	pkgerrors "github.com/meridianfin/ledgermirror/pkg/errors"
)

type stubRepo struct {
	byID        map[uuid.UUID]*models.Account
	created     []*models.Account
	deactivated []uuid.UUID
}

func newStubRepo() *stubRepo {
	return &stubRepo{byID: make(map[uuid.UUID]*models.Account)}
}

func (s *stubRepo) Create(ctx context.Context, account *models.Account) error {
	account.ID = uuid.New()
	s.created = append(s.created, account)
	s.byID[account.ID] = account
	return nil
}

func (s *stubRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	account, ok := s.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return account, nil
}

func (s *stubRepo) FindActiveByIDsTx(tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]models.Account, error) {
	return nil, nil
}

func (s *stubRepo) List(ctx context.Context, includeInactive bool) ([]models.Account, error) {
	var rows []models.Account
	for _, account := range s.byID {
		if !includeInactive && !account.Active {
			continue
		}
		rows = append(rows, *account)
	}
	return rows, nil
}

func (s *stubRepo) ListActive(ctx context.Context, limit int) ([]models.Account, error) {
	return nil, nil
}

func (s *stubRepo) Deactivate(ctx context.Context, id uuid.UUID) error {
	s.deactivated = append(s.deactivated, id)
	if account, ok := s.byID[id]; ok {
		account.Active = false
	}
	return nil
}

func TestCreateNormalizesUnit(t *testing.T) {
	repo := newStubRepo()
	svc, err := NewService(repo, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	account, err := svc.Create(context.Background(), CreateAccountInput{
		Name: "  operating cash ",
		Type: enums.AccountTypeAsset,
		Unit: "usd",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if account.Name != "operating cash" {
		t.Fatalf("expected trimmed name, got %q", account.Name)
	}
	if account.Unit != "USD" {
		t.Fatalf("expected upper-cased unit, got %q", account.Unit)
	}
	if !account.Active {
		t.Fatal("new accounts must start active")
	}
}

func TestCreateRejectsBadInput(t *testing.T) {
	svc, _ := NewService(newStubRepo(), nil)

	cases := []CreateAccountInput{
		{Name: "", Type: enums.AccountTypeAsset, Unit: "USD"},
		{Name: "cash", Type: enums.AccountType("treasure"), Unit: "USD"},
		{Name: "cash", Type: enums.AccountTypeAsset, Unit: "DOLLARS"},
	}
	for _, input := range cases {
		if _, err := svc.Create(context.Background(), input); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("expected validation error for %+v, got %v", input, err)
		}
	}
}

func TestGetUnknownAccount(t *testing.T) {
	svc, _ := NewService(newStubRepo(), nil)

	_, err := svc.Get(context.Background(), uuid.New())
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeactivateKeepsRow(t *testing.T) {
	repo := newStubRepo()
	svc, _ := NewService(repo, nil)

	account, err := svc.Create(context.Background(), CreateAccountInput{
		Name: "payroll clearing",
		Type: enums.AccountTypeLiability,
		Unit: "USD",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.Deactivate(context.Background(), account.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.deactivated) != 1 {
		t.Fatal("expected deactivate to reach the repository")
	}
	if _, ok := repo.byID[account.ID]; !ok {
		t.Fatal("deactivation must never delete the row")
	}

	rows, err := svc.List(context.Background(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 0 {
		t.Fatal("inactive accounts must be excluded by default")
	}
	rows, err = svc.List(context.Background(), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatal("includeInactive must surface deactivated accounts")
	}
}
