package models

import "time"

// UserGroup is a named collection of accounts eligible for scheduled rewards.
type UserGroup struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:128;uniqueIndex;not null" json:"name"`
	Description string    `gorm:"size:512" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// GroupMembership links an account to a group. Removal stops future rewards
// but never retracts past distribution logs.
type GroupMembership struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	GroupID   uint      `gorm:"uniqueIndex:ux_group_member,priority:1;not null" json:"group_id"`
	AccountID uint      `gorm:"uniqueIndex:ux_group_member,priority:2;not null" json:"account_id"`
	AddedByID uint      `json:"added_by_id"`
	CreatedAt time.Time `json:"created_at"`
}
