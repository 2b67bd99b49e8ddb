package services

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/cosmarket/points/models"
)

type captureNotifier struct {
	mu    sync.Mutex
	calls []uint
}

func (c *captureNotifier) Notify(accountID uint, kind, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, accountID)
}

func setupGroup(t *testing.T, db *gorm.DB, rule models.RewardRule, memberPoints ...int64) (*models.UserGroup, []*models.Account) {
	t.Helper()
	group := models.UserGroup{Name: fmt.Sprintf("group-%s", t.Name())}
	require.NoError(t, db.Create(&group).Error)

	accounts := make([]*models.Account, 0, len(memberPoints))
	for i, pts := range memberPoints {
		acc := newTestAccount(t, db, fmt.Sprintf("member%d@%s.test", i, t.Name()), pts)
		require.NoError(t, db.Create(&models.GroupMembership{GroupID: group.ID, AccountID: acc.ID}).Error)
		accounts = append(accounts, acc)
	}

	rule.GroupID = group.ID
	require.NoError(t, db.Create(&rule).Error)
	return &group, accounts
}

func TestRunDuePaysEachMemberOnce(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerService(db)
	notifier := &captureNotifier{}
	dist := NewDistributor(db, ledger, notifier)

	now := time.Date(2026, time.March, 16, 9, 0, 0, 0, time.UTC)
	_, accounts := setupGroup(t, db, models.RewardRule{
		CoinAmount:  25,
		CadenceKind: models.CadenceDaily,
		NextDueDate: "2026-03-16",
		Active:      true,
	}, 0, 0)

	report, err := dist.RunDue(now)
	require.NoError(t, err)
	require.Equal(t, 1, report.RulesRun)
	require.Equal(t, 2, report.Processed)
	require.Zero(t, report.Failed)
	require.Len(t, notifier.calls, 2)

	for _, acc := range accounts {
		balance, err := ledger.GetBalance(acc.ID)
		require.NoError(t, err)
		require.Equal(t, int64(25), balance)
	}

	// Second run the same day: the schedule advanced, nothing is due.
	report, err = dist.RunDue(now)
	require.NoError(t, err)
	require.Zero(t, report.RulesRun)

	for _, acc := range accounts {
		balance, err := ledger.GetBalance(acc.ID)
		require.NoError(t, err)
		require.Equal(t, int64(25), balance)
	}
}

func TestRunDueSkipsAlreadyPaidMembers(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerService(db)
	dist := NewDistributor(db, ledger, &captureNotifier{})

	now := time.Date(2026, time.March, 16, 9, 0, 0, 0, time.UTC)
	group, accounts := setupGroup(t, db, models.RewardRule{
		CoinAmount:  10,
		CadenceKind: models.CadenceDaily,
		NextDueDate: "2026-03-16",
		Active:      true,
	}, 0, 0)

	// One member was already paid for this due date (e.g. by pay-now).
	entry, err := ledger.Record(RecordParams{
		AccountID: accounts[0].ID, Amount: 10, Type: models.TxGroupReward,
	})
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.DistributionLog{
		GroupID:       group.ID,
		AccountID:     accounts[0].ID,
		DueDate:       "2026-03-16",
		CoinAmount:    10,
		LedgerEntryID: entry.ID,
		ExecutedAt:    now,
	}).Error)

	report, err := dist.RunDue(now)
	require.NoError(t, err)
	require.Equal(t, 1, report.Processed)
	require.Equal(t, 1, report.Skipped)

	balance, err := ledger.GetBalance(accounts[0].ID)
	require.NoError(t, err)
	require.Equal(t, int64(10), balance)
}

func TestRunDueIgnoresInactiveAndFutureRules(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerService(db)
	dist := NewDistributor(db, ledger, &captureNotifier{})

	now := time.Date(2026, time.March, 16, 9, 0, 0, 0, time.UTC)

	inactive := models.UserGroup{Name: "inactive"}
	require.NoError(t, db.Create(&inactive).Error)
	require.NoError(t, db.Create(&models.RewardRule{
		GroupID: inactive.ID, CoinAmount: 5, CadenceKind: models.CadenceDaily,
		NextDueDate: "2026-03-16", Active: false,
	}).Error)

	future := models.UserGroup{Name: "future"}
	require.NoError(t, db.Create(&future).Error)
	require.NoError(t, db.Create(&models.RewardRule{
		GroupID: future.ID, CoinAmount: 5, CadenceKind: models.CadenceDaily,
		NextDueDate: "2026-03-17", Active: true,
	}).Error)

	report, err := dist.RunDue(now)
	require.NoError(t, err)
	require.Zero(t, report.RulesRun)
}

func TestRunDueCollectsPerMemberFailures(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerService(db)
	dist := NewDistributor(db, ledger, &captureNotifier{})

	now := time.Date(2026, time.March, 16, 9, 0, 0, 0, time.UTC)
	group, accounts := setupGroup(t, db, models.RewardRule{
		CoinAmount:  15,
		CadenceKind: models.CadenceDaily,
		NextDueDate: "2026-03-16",
		Active:      true,
	}, 0, 0)

	// A membership pointing at a deleted account fails but must not sink the
	// rest of the run.
	require.NoError(t, db.Create(&models.GroupMembership{GroupID: group.ID, AccountID: 9999}).Error)

	report, err := dist.RunDue(now)
	require.NoError(t, err)
	require.Equal(t, 2, report.Processed)
	require.Equal(t, 1, report.Failed)
	require.Len(t, report.Failures, 1)
	require.Equal(t, uint(9999), report.Failures[0].AccountID)

	for _, acc := range accounts {
		balance, err := ledger.GetBalance(acc.ID)
		require.NoError(t, err)
		require.Equal(t, int64(15), balance)
	}
}

func TestRunDueAdvancesScheduleFromDueDate(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerService(db)
	dist := NewDistributor(db, ledger, &captureNotifier{})

	// Weekly rule due last Monday; the job runs late, on Wednesday.
	now := time.Date(2026, time.March, 18, 9, 0, 0, 0, time.UTC)
	group, _ := setupGroup(t, db, models.RewardRule{
		CoinAmount:   5,
		CadenceKind:  models.CadenceWeekly,
		CadenceParam: int(time.Monday),
		NextDueDate:  "2026-03-16",
		Active:       true,
	}, 0)

	_, err := dist.RunDue(now)
	require.NoError(t, err)

	var rule models.RewardRule
	require.NoError(t, db.Where("group_id = ?", group.ID).First(&rule).Error)
	// Next Monday after the missed one, not a drifted date.
	require.Equal(t, "2026-03-23", rule.NextDueDate)
}

func TestRunDueAdvancesScheduleEastOfUTC(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerService(db)
	dist := NewDistributor(db, ledger, &captureNotifier{})

	// Daily rule two days behind, run on a server east of UTC. The advance
	// must land on tomorrow's date, not stall on today's and stay a day
	// behind forever.
	zone := time.FixedZone("UTC+13", 13*3600)
	now := time.Date(2026, time.March, 16, 9, 0, 0, 0, zone)
	group, _ := setupGroup(t, db, models.RewardRule{
		CoinAmount:  5,
		CadenceKind: models.CadenceDaily,
		NextDueDate: "2026-03-14",
		Active:      true,
	}, 0)

	_, err := dist.RunDue(now)
	require.NoError(t, err)

	var rule models.RewardRule
	require.NoError(t, db.Where("group_id = ?", group.ID).First(&rule).Error)
	require.Equal(t, "2026-03-17", rule.NextDueDate)
}

func TestPayGroupNowIsIdempotentPerDay(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerService(db)
	dist := NewDistributor(db, ledger, &captureNotifier{})

	now := time.Date(2026, time.March, 16, 9, 0, 0, 0, time.UTC)
	group, accounts := setupGroup(t, db, models.RewardRule{
		CoinAmount:  40,
		CadenceKind: models.CadenceMonthly,
		NextDueDate: "2026-04-01",
		Active:      true,
	}, 0)

	report, err := dist.PayGroupNow(group.ID, now)
	require.NoError(t, err)
	require.Equal(t, 1, report.Processed)

	report, err = dist.PayGroupNow(group.ID, now)
	require.NoError(t, err)
	require.Zero(t, report.Processed)
	require.Equal(t, 1, report.Skipped)

	balance, err := ledger.GetBalance(accounts[0].ID)
	require.NoError(t, err)
	require.Equal(t, int64(40), balance)

	// Pay-now leaves the schedule alone.
	var rule models.RewardRule
	require.NoError(t, db.Where("group_id = ?", group.ID).First(&rule).Error)
	require.Equal(t, "2026-04-01", rule.NextDueDate)
}

func TestPayGroupNowWithoutRule(t *testing.T) {
	db := newTestDB(t)
	dist := NewDistributor(db, NewLedgerService(db), &captureNotifier{})

	_, err := dist.PayGroupNow(12345, time.Now())
	require.ErrorIs(t, err, ErrRuleNotFound)
}
