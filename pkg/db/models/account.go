package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/meridianfin/ledgermirror/pkg/enums"
)

// Account is the canonical chart-of-accounts record. Accounts are immutable
// once referenced by a posted entry and are deactivated rather than deleted.
type Account struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string            `gorm:"column:name;not null"`
	Type      enums.AccountType `gorm:"column:type;type:account_type_enum;not null"`
	Unit      string            `gorm:"column:unit;not null;default:'USD'"`
	Active    bool              `gorm:"column:active;not null;default:true"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
