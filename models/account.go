package models

import (
	"time"

	"gorm.io/gorm"
)

// Account roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Account is one platform user. Points is a cached running balance; it is only
// ever mutated together with a LedgerEntry inside the same transaction, so it
// always equals the sum of the account's ledger entries.
type Account struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Email     string         `gorm:"size:255;uniqueIndex" json:"email"`
	Username  string         `gorm:"size:64;not null" json:"username"`
	Role      string         `gorm:"size:16;default:user" json:"role"`
	Points    int64          `gorm:"default:0" json:"points"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate ensures timestamps and a default role are set.
func (a *Account) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	if a.Role == "" {
		a.Role = RoleUser
	}
	return nil
}

// IsAdmin reports whether the account holds the admin role.
func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}
