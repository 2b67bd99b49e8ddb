package models

import "time"

// MerchantTop is a paid top placement for a merchant listing. The purchase is
// a ledger debit (merchant_top); the expiry cron notifies owners before
// ExpiresAt and marks Notified so each placement is notified once.
type MerchantTop struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	MerchantID uint      `gorm:"index;not null" json:"merchant_id"`
	AccountID  uint      `gorm:"index;not null" json:"account_id"`
	Cost       int64     `gorm:"not null" json:"cost"`
	ExpiresAt  time.Time `gorm:"index;not null" json:"expires_at"`
	Notified   bool      `gorm:"default:false" json:"notified"`
	CreatedAt  time.Time `json:"created_at"`
}
