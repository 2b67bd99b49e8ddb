package models

import "time"

// Exchange record statuses. Transitions are pending -> completed or
// pending -> failed only, never backward.
const (
	ExchangePending   = "pending"
	ExchangeCompleted = "completed"
	ExchangeFailed    = "failed"
)

// Exchange failure reasons persisted for auditing.
const (
	ExchangeFailUserNotFound = "USER_NOT_FOUND"
	ExchangeFailPointsUpdate = "POINTS_UPDATE_FAILED"
)

// ExchangeRecord is the audit/state row for one coin-to-points conversion
// attempt from the partner forum. ForumTransactionID is the replay guard.
type ExchangeRecord struct {
	ID                 string     `gorm:"size:36;primaryKey" json:"id"`
	ForumUserID        string     `gorm:"size:64;index;not null" json:"forum_user_id"`
	ForumTransactionID string     `gorm:"size:128;uniqueIndex;not null" json:"forum_transaction_id"`
	UserEmail          string     `gorm:"size:255;index" json:"user_email"`
	AccountID          *uint      `gorm:"index" json:"account_id,omitempty"`
	CoinAmount         int64      `gorm:"not null" json:"coin_amount"`
	PointsAmount       int64      `json:"points_amount"`
	ExchangeRate       float64    `json:"exchange_rate"`
	Status             string     `gorm:"size:16;index;not null" json:"status"`
	FailureReason      string     `gorm:"size:64" json:"failure_reason,omitempty"`
	Signature          string     `gorm:"size:128" json:"-"`
	RequestTimestamp   int64      `json:"request_timestamp"`
	SourceIP           string     `gorm:"size:45" json:"source_ip"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}
