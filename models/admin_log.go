package models

import "time"

// AdminLog is one immutable audit record for a privileged mutation.
// Writes are best-effort and must never abort the operation they document.
type AdminLog struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	AdminID     uint      `gorm:"index;not null" json:"admin_id"`
	Action      string    `gorm:"size:64;index;not null" json:"action"`
	TargetType  string    `gorm:"size:32" json:"target_type,omitempty"`
	TargetID    string    `gorm:"size:64" json:"target_id,omitempty"`
	OldData     string    `gorm:"type:text" json:"old_data,omitempty"`
	NewData     string    `gorm:"type:text" json:"new_data,omitempty"`
	Description string    `gorm:"size:512" json:"description,omitempty"`
	IP          string    `gorm:"size:45" json:"ip,omitempty"`
	UserAgent   string    `gorm:"size:255" json:"user_agent,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
