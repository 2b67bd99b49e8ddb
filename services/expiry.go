package services

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/cosmarket/points/models"
	"github.com/cosmarket/points/utils"
)

// Exchange records still pending after this long are considered stuck and
// surfaced to operators (runbook: investigate and mark failed by hand, never
// auto-retry).
const stalePendingAge = 24 * time.Hour

// ExpiryService backs the expiry-check cron: merchant-top expiry notices and
// the stale-pending exchange sweep.
type ExpiryService struct {
	db         *gorm.DB
	notifier   Notifier
	noticeDays int
}

// NewExpiryService creates an expiry service.
func NewExpiryService(db *gorm.DB, notifier Notifier, noticeDays int) *ExpiryService {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	if noticeDays <= 0 {
		noticeDays = 3
	}
	return &ExpiryService{db: db, notifier: notifier, noticeDays: noticeDays}
}

// ExpiryReport summarizes one expiry-check run.
type ExpiryReport struct {
	Notified     int `json:"notified"`
	Failed       int `json:"failed"`
	StalePending int `json:"stale_pending"`
}

// Run notifies owners of placements expiring within the notice window,
// marking each so it is notified once, and counts stuck pending exchange
// records for operator visibility.
func (s *ExpiryService) Run(now time.Time) (*ExpiryReport, error) {
	report := &ExpiryReport{}
	deadline := now.AddDate(0, 0, s.noticeDays)

	var tops []models.MerchantTop
	err := s.db.Where("notified = ? AND expires_at > ? AND expires_at <= ?", false, now, deadline).
		Find(&tops).Error
	if err != nil {
		return nil, err
	}

	for _, top := range tops {
		s.notifier.Notify(top.AccountID, "merchant_top_expiry",
			fmt.Sprintf("Your top placement for merchant %d expires on %s",
				top.MerchantID, top.ExpiresAt.Format("2006-01-02")))
		if err := s.db.Model(&top).Update("notified", true).Error; err != nil {
			report.Failed++
			continue
		}
		report.Notified++
	}

	var stale int64
	err = s.db.Model(&models.ExchangeRecord{}).
		Where("status = ? AND created_at < ?", models.ExchangePending, now.Add(-stalePendingAge)).
		Count(&stale).Error
	if err != nil {
		return nil, err
	}
	report.StalePending = int(stale)
	if stale > 0 && utils.Sugar != nil {
		utils.Sugar.Warnw("exchange records stuck pending", "count", stale)
	}

	return report, nil
}
