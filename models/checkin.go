package models

import "time"

// CheckIn stores daily check-in records. The awarded points flow through the
// ledger; PointsAwarded here mirrors the ledger amount for quick display.
type CheckIn struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	AccountID     uint      `gorm:"index;not null" json:"account_id"`
	CheckinDate   time.Time `gorm:"index;not null" json:"checkin_date"`
	PointsAwarded int64     `json:"points_awarded"`
	Streak        int       `json:"streak"`
	CreatedAt     time.Time `json:"created_at"`
}
