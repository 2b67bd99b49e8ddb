package models

import "time"

// Reward cadence kinds.
const (
	CadenceDaily   = "daily"
	CadenceWeekly  = "weekly"
	CadenceMonthly = "monthly"
	CadenceCustom  = "custom"
)

// RewardRule configures the recurring reward of one group (1:1).
// NextDueDate is a calendar date stored as "2006-01-02"; it is recomputed
// deterministically after every run or edit and never precedes the last run.
type RewardRule struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	GroupID      uint      `gorm:"uniqueIndex;not null" json:"group_id"`
	CoinAmount   int64     `gorm:"not null" json:"coin_amount"`
	CadenceKind  string    `gorm:"size:16;not null" json:"cadence_kind"`
	CadenceParam int       `json:"cadence_param"`
	NextDueDate  string    `gorm:"size:10;index;not null" json:"next_due_date"`
	Active       bool      `gorm:"default:false;index" json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DistributionLog proves one member was paid for one rule on one due date.
// The composite unique index is the idempotency guard: a daily run and an
// on-demand pay-now racing on the same day collapse into a single payment.
type DistributionLog struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	GroupID       uint      `gorm:"uniqueIndex:ux_dist_once,priority:1;not null" json:"group_id"`
	AccountID     uint      `gorm:"uniqueIndex:ux_dist_once,priority:2;not null" json:"account_id"`
	DueDate       string    `gorm:"size:10;uniqueIndex:ux_dist_once,priority:3;not null" json:"due_date"`
	CoinAmount    int64     `gorm:"not null" json:"coin_amount"`
	LedgerEntryID uint      `gorm:"not null" json:"ledger_entry_id"`
	ExecutedAt    time.Time `json:"executed_at"`
}
