package models

import "time"

// InviteCode is an admin-issued invitation code. Redeeming credits both the
// invitee and the code's creator through the ledger.
type InviteCode struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Code          string     `gorm:"size:32;uniqueIndex;not null" json:"code"`
	CreatedByID   uint       `gorm:"index;not null" json:"created_by_id"`
	MaxUses       int        `gorm:"default:0" json:"max_uses"`
	UsedCount     int        `gorm:"default:0" json:"used_count"`
	InviterReward int64      `json:"inviter_reward"`
	InviteeReward int64      `json:"invitee_reward"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// InviteRedemption records a code use. The unique index on AccountID enforces
// at most one redemption per account, ever.
type InviteRedemption struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CodeID    uint      `gorm:"index;not null" json:"code_id"`
	AccountID uint      `gorm:"uniqueIndex;not null" json:"account_id"`
	CreatedAt time.Time `json:"created_at"`
}
