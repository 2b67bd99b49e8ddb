package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cosmarket/points/models"
)

func TestExpiryNotifiesUpcomingPlacementsOnce(t *testing.T) {
	db := newTestDB(t)
	notifier := &captureNotifier{}
	svc := NewExpiryService(db, notifier, 3)

	now := time.Date(2026, time.March, 16, 9, 0, 0, 0, time.UTC)
	acc := newTestAccount(t, db, "owner@example.com", 0)

	soon := models.MerchantTop{MerchantID: 1, AccountID: acc.ID, Cost: 50, ExpiresAt: now.AddDate(0, 0, 2)}
	far := models.MerchantTop{MerchantID: 2, AccountID: acc.ID, Cost: 50, ExpiresAt: now.AddDate(0, 0, 30)}
	gone := models.MerchantTop{MerchantID: 3, AccountID: acc.ID, Cost: 50, ExpiresAt: now.AddDate(0, 0, -1)}
	require.NoError(t, db.Create(&soon).Error)
	require.NoError(t, db.Create(&far).Error)
	require.NoError(t, db.Create(&gone).Error)

	report, err := svc.Run(now)
	require.NoError(t, err)
	require.Equal(t, 1, report.Notified)
	require.Len(t, notifier.calls, 1)

	// Second run: the placement is marked notified and not re-sent.
	report, err = svc.Run(now)
	require.NoError(t, err)
	require.Zero(t, report.Notified)
	require.Len(t, notifier.calls, 1)
}

func TestExpiryCountsStalePendingExchanges(t *testing.T) {
	db := newTestDB(t)
	svc := NewExpiryService(db, &captureNotifier{}, 3)

	now := time.Now()
	stale := models.ExchangeRecord{
		ID: "stale", ForumUserID: "f", ForumTransactionID: "tx-stale",
		Status: models.ExchangePending,
	}
	require.NoError(t, db.Create(&stale).Error)
	require.NoError(t, db.Model(&stale).Update("created_at", now.Add(-48*time.Hour)).Error)

	fresh := models.ExchangeRecord{
		ID: "fresh", ForumUserID: "f", ForumTransactionID: "tx-fresh",
		Status: models.ExchangePending,
	}
	require.NoError(t, db.Create(&fresh).Error)

	report, err := svc.Run(now)
	require.NoError(t, err)
	require.Equal(t, 1, report.StalePending)
}
