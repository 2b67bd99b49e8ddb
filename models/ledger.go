package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// TxType is the closed set of ledger transaction types.
type TxType string

const (
	TxRegistration     TxType = "registration"
	TxCheckin          TxType = "checkin"
	TxMerchantRegister TxType = "merchant_register"
	TxMerchantEdit     TxType = "merchant_edit"
	TxInvitationReward TxType = "invitation_reward"
	TxInvitedReward    TxType = "invited_reward"
	TxMerchantTop      TxType = "merchant_top"
	TxViewContact      TxType = "view_contact"
	TxContactViewed    TxType = "contact_viewed"
	TxCoinExchange     TxType = "coin_exchange"
	TxGroupReward      TxType = "group_reward"
	TxSystemAdjustment TxType = "system_adjustment"
)

var txTypes = map[TxType]bool{
	TxRegistration:     true,
	TxCheckin:          true,
	TxMerchantRegister: true,
	TxMerchantEdit:     true,
	TxInvitationReward: true,
	TxInvitedReward:    true,
	TxMerchantTop:      true,
	TxViewContact:      true,
	TxContactViewed:    true,
	TxCoinExchange:     true,
	TxGroupReward:      true,
	TxSystemAdjustment: true,
}

// Valid reports whether t belongs to the closed enum.
func (t TxType) Valid() bool { return txTypes[t] }

// Metadata is a typed key-value payload stored as JSON. Documented keys:
//
//	coin_exchange:  exchange_record_id, coin_amount, exchange_rate
//	group_reward:   group_id, due_date
//	system_adjustment: reason
type Metadata map[string]interface{}

// Value implements driver.Valuer.
func (m Metadata) Value() (driver.Value, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner.
func (m *Metadata) Scan(src interface{}) error {
	if src == nil {
		*m = nil
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("metadata: unsupported scan type %T", src)
	}
}

// LedgerEntry is one immutable signed point movement for one account.
// Corrections are new offsetting entries; rows are never updated or deleted.
type LedgerEntry struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	AccountID         uint      `gorm:"index:idx_ledger_account_created,priority:1;not null" json:"account_id"`
	Amount            int64     `gorm:"not null" json:"amount"`
	Type              TxType    `gorm:"size:32;index;not null" json:"type"`
	Description       string    `gorm:"size:255" json:"description"`
	RelatedAccountID  *uint     `json:"related_account_id,omitempty"`
	RelatedMerchantID *uint     `json:"related_merchant_id,omitempty"`
	Metadata          Metadata  `gorm:"type:text" json:"metadata,omitempty"`
	BalanceAfter      int64     `gorm:"not null" json:"balance_after"`
	CreatedAt         time.Time `gorm:"index:idx_ledger_account_created,priority:2" json:"created_at"`
}
