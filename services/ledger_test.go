package services

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cosmarket/points/models"
)

func TestRecordKeepsBalanceEqualToEntrySum(t *testing.T) {
	db := newTestDB(t)
	svc := NewLedgerService(db)
	acc := newTestAccount(t, db, "alice@example.com", 0)

	amounts := []int64{50, 20, -30, 5, -10}
	types := []models.TxType{
		models.TxRegistration, models.TxCheckin, models.TxMerchantTop,
		models.TxGroupReward, models.TxViewContact,
	}

	var want int64
	for i, amt := range amounts {
		entry, err := svc.Record(RecordParams{AccountID: acc.ID, Amount: amt, Type: types[i]})
		require.NoError(t, err)
		want += amt
		require.Equal(t, want, entry.BalanceAfter)
	}

	balance, err := svc.GetBalance(acc.ID)
	require.NoError(t, err)
	require.Equal(t, want, balance)

	var sum int64
	require.NoError(t, db.Model(&models.LedgerEntry{}).
		Where("account_id = ?", acc.ID).
		Select("COALESCE(SUM(amount),0)").Scan(&sum).Error)
	require.Equal(t, balance, sum)
}

func TestRecordRejectsOverdraft(t *testing.T) {
	db := newTestDB(t)
	svc := NewLedgerService(db)
	acc := newTestAccount(t, db, "bob@example.com", 0)

	_, err := svc.Record(RecordParams{AccountID: acc.ID, Amount: 10, Type: models.TxCheckin})
	require.NoError(t, err)

	_, err = svc.Record(RecordParams{AccountID: acc.ID, Amount: -11, Type: models.TxMerchantTop})
	require.ErrorIs(t, err, ErrInsufficientBalance)

	// The failed debit must leave no trace.
	balance, err := svc.GetBalance(acc.ID)
	require.NoError(t, err)
	require.Equal(t, int64(10), balance)

	var count int64
	require.NoError(t, db.Model(&models.LedgerEntry{}).
		Where("account_id = ?", acc.ID).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestRecordValidation(t *testing.T) {
	db := newTestDB(t)
	svc := NewLedgerService(db)
	acc := newTestAccount(t, db, "carol@example.com", 0)

	_, err := svc.Record(RecordParams{AccountID: acc.ID, Amount: 0, Type: models.TxCheckin})
	require.ErrorIs(t, err, ErrZeroAmount)

	_, err = svc.Record(RecordParams{AccountID: acc.ID, Amount: 5, Type: "made_up"})
	require.ErrorIs(t, err, ErrInvalidTxType)

	_, err = svc.Record(RecordParams{AccountID: 9999, Amount: 5, Type: models.TxCheckin})
	require.ErrorIs(t, err, ErrAccountNotFound)
}

func TestListFiltersAndPagination(t *testing.T) {
	db := newTestDB(t)
	svc := NewLedgerService(db)
	acc := newTestAccount(t, db, "dave@example.com", 0)

	for i := 0; i < 3; i++ {
		_, err := svc.Record(RecordParams{AccountID: acc.ID, Amount: 10, Type: models.TxCheckin})
		require.NoError(t, err)
	}
	_, err := svc.Record(RecordParams{AccountID: acc.ID, Amount: -5, Type: models.TxMerchantTop})
	require.NoError(t, err)

	entries, total, err := svc.List(acc.ID, TxFilter{}, 1, 10)
	require.NoError(t, err)
	require.Equal(t, int64(4), total)
	require.Len(t, entries, 4)

	// Newest first.
	require.Equal(t, models.TxMerchantTop, entries[0].Type)

	entries, total, err = svc.List(acc.ID, TxFilter{Type: models.TxCheckin}, 1, 10)
	require.NoError(t, err)
	require.Equal(t, int64(3), total)
	require.Len(t, entries, 3)

	entries, total, err = svc.List(acc.ID, TxFilter{Direction: "expense"}, 1, 10)
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, int64(-5), entries[0].Amount)

	entries, _, err = svc.List(acc.ID, TxFilter{}, 2, 3)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestGetStatistics(t *testing.T) {
	db := newTestDB(t)
	svc := NewLedgerService(db)
	acc := newTestAccount(t, db, "erin@example.com", 0)

	for _, amt := range []int64{100, 50, -30, -20} {
		typ := models.TxGroupReward
		if amt < 0 {
			typ = models.TxMerchantTop
		}
		_, err := svc.Record(RecordParams{AccountID: acc.ID, Amount: amt, Type: typ})
		require.NoError(t, err)
	}

	stats, err := svc.GetStatistics(acc.ID)
	require.NoError(t, err)
	require.Equal(t, int64(100), stats.Balance)
	require.Equal(t, int64(150), stats.TotalCredits)
	require.Equal(t, int64(50), stats.TotalDebits)
}
