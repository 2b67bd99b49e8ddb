package services

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cosmarket/points/models"
)

// ErrAlreadyCheckedIn is returned for a second check-in on the same day.
var ErrAlreadyCheckedIn = errors.New("already checked in today")

// CheckinService grants the daily check-in reward through the ledger and
// tracks consecutive-day streaks.
type CheckinService struct {
	db     *gorm.DB
	ledger *LedgerService
	reward int64
}

// NewCheckinService creates a check-in service with the configured daily
// reward.
func NewCheckinService(db *gorm.DB, ledger *LedgerService, reward int64) *CheckinService {
	return &CheckinService{db: db, ledger: ledger, reward: reward}
}

// CheckinResult reports one successful check-in.
type CheckinResult struct {
	PointsAwarded int64 `json:"points_awarded"`
	Streak        int   `json:"streak"`
	Balance       int64 `json:"balance"`
}

// CheckIn records today's check-in for the account.
func (s *CheckinService) CheckIn(accountID uint, now time.Time) (*CheckinResult, error) {
	todayStart := dateOnly(now)
	tomorrowStart := todayStart.AddDate(0, 0, 1)

	var result CheckinResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		// Lock the account row before reading today's state, so two
		// concurrent check-ins serialize here instead of both passing the
		// already-checked-in test. RecordIn re-takes the same lock later in
		// this transaction, which is a no-op.
		var account models.Account
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&account, accountID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAccountNotFound
			}
			return err
		}

		var last models.CheckIn
		err := tx.Where("account_id = ?", accountID).Order("checkin_date DESC").First(&last).Error

		streak := 1
		if err == nil {
			if !last.CheckinDate.Before(todayStart) && last.CheckinDate.Before(tomorrowStart) {
				return ErrAlreadyCheckedIn
			}
			if isYesterday(last.CheckinDate, todayStart) {
				streak = last.Streak + 1
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		entry, err := s.ledger.RecordIn(tx, RecordParams{
			AccountID:   accountID,
			Amount:      s.reward,
			Type:        models.TxCheckin,
			Description: "Daily check-in reward",
		})
		if err != nil {
			return err
		}

		record := models.CheckIn{
			AccountID:     accountID,
			CheckinDate:   now,
			PointsAwarded: s.reward,
			Streak:        streak,
		}
		if err := tx.Create(&record).Error; err != nil {
			return err
		}

		result = CheckinResult{
			PointsAwarded: s.reward,
			Streak:        streak,
			Balance:       entry.BalanceAfter,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Status returns the account's current streak and last check-in time.
func (s *CheckinService) Status(accountID uint) (*models.CheckIn, error) {
	var last models.CheckIn
	err := s.db.Where("account_id = ?", accountID).Order("checkin_date DESC").First(&last).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &last, nil
}

func isYesterday(last, todayStart time.Time) bool {
	yesterdayStart := todayStart.AddDate(0, 0, -1)
	return !last.Before(yesterdayStart) && last.Before(todayStart)
}
