package services

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"gorm.io/gorm"

	"github.com/cosmarket/points/models"
)

var (
	// ErrInviteCodeNotFound is returned for an unknown code.
	ErrInviteCodeNotFound = errors.New("invite code not found")
	// ErrInviteCodeExhausted is returned when a code's uses are spent or it
	// has expired.
	ErrInviteCodeExhausted = errors.New("invite code exhausted or expired")
	// ErrAlreadyRedeemed is returned when the account has used a code before.
	ErrAlreadyRedeemed = errors.New("account already redeemed an invite code")
)

const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// InviteService manages invitation codes and the ledger rewards tied to them.
type InviteService struct {
	db     *gorm.DB
	ledger *LedgerService
}

// NewInviteService creates an invite service.
func NewInviteService(db *gorm.DB, ledger *LedgerService) *InviteService {
	return &InviteService{db: db, ledger: ledger}
}

// CreateCode issues a new invite code.
func (s *InviteService) CreateCode(createdByID uint, maxUses int, inviterReward, inviteeReward int64, expiresAt *time.Time) (*models.InviteCode, error) {
	code, err := randomCode(8)
	if err != nil {
		return nil, err
	}
	ic := models.InviteCode{
		Code:          code,
		CreatedByID:   createdByID,
		MaxUses:       maxUses,
		InviterReward: inviterReward,
		InviteeReward: inviteeReward,
		ExpiresAt:     expiresAt,
	}
	if err := s.db.Create(&ic).Error; err != nil {
		return nil, err
	}
	return &ic, nil
}

// RedemptionResult reports one successful redemption.
type RedemptionResult struct {
	InviteeAwarded int64 `json:"invitee_awarded"`
	InviterAwarded int64 `json:"inviter_awarded"`
	Balance        int64 `json:"balance"`
}

// Redeem applies a code for an account: the invitee and the code's creator
// are credited through the ledger in one transaction. An account may redeem
// at most one code, enforced by the redemption table's unique index.
func (s *InviteService) Redeem(code string, accountID uint) (*RedemptionResult, error) {
	var result RedemptionResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var ic models.InviteCode
		if err := tx.Where("code = ?", code).First(&ic).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInviteCodeNotFound
			}
			return err
		}
		if ic.MaxUses > 0 && ic.UsedCount >= ic.MaxUses {
			return ErrInviteCodeExhausted
		}
		if ic.ExpiresAt != nil && ic.ExpiresAt.Before(time.Now()) {
			return ErrInviteCodeExhausted
		}

		if err := tx.Create(&models.InviteRedemption{CodeID: ic.ID, AccountID: accountID}).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyRedeemed
			}
			return err
		}

		if ic.InviteeReward > 0 {
			entry, err := s.ledger.RecordIn(tx, RecordParams{
				AccountID:        accountID,
				Amount:           ic.InviteeReward,
				Type:             models.TxInvitedReward,
				Description:      fmt.Sprintf("Joined with invite code %s", ic.Code),
				RelatedAccountID: &ic.CreatedByID,
			})
			if err != nil {
				return err
			}
			result.InviteeAwarded = ic.InviteeReward
			result.Balance = entry.BalanceAfter
		}

		if ic.InviterReward > 0 {
			if _, err := s.ledger.RecordIn(tx, RecordParams{
				AccountID:        ic.CreatedByID,
				Amount:           ic.InviterReward,
				Type:             models.TxInvitationReward,
				Description:      fmt.Sprintf("Invite code %s was used", ic.Code),
				RelatedAccountID: &accountID,
			}); err != nil {
				return err
			}
			result.InviterAwarded = ic.InviterReward
		}

		return tx.Model(&ic).Update("used_count", gorm.Expr("used_count + 1")).Error
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// GrantRegistrationBonus credits the one-time registration bonus. Called from
// the account-creation hook of the auth system.
func (s *InviteService) GrantRegistrationBonus(accountID uint, amount int64) error {
	if amount <= 0 {
		return nil
	}
	_, err := s.ledger.Record(RecordParams{
		AccountID:   accountID,
		Amount:      amount,
		Type:        models.TxRegistration,
		Description: "Registration bonus",
	})
	return err
}

// ListCodes returns codes newest-first.
func (s *InviteService) ListCodes(page, pageSize int) ([]models.InviteCode, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	var total int64
	if err := s.db.Model(&models.InviteCode{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var codes []models.InviteCode
	if err := s.db.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&codes).Error; err != nil {
		return nil, 0, err
	}
	return codes, total, nil
}

func randomCode(n int) (string, error) {
	buf := make([]byte, n)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range buf {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = codeAlphabet[idx.Int64()]
	}
	return string(buf), nil
}
