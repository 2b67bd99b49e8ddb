package services

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/cosmarket/points/models"
	"github.com/cosmarket/points/utils"
)

// ErrRuleNotFound is returned when a group has no reward rule.
var ErrRuleNotFound = errors.New("reward rule not found")

// Distributor pays group rewards for due rules. Payments are idempotent per
// (group, member, due date) through the distribution log's unique index, so
// re-running a day — or racing the daily job against an admin pay-now — can
// never double-pay.
type Distributor struct {
	db       *gorm.DB
	ledger   *LedgerService
	notifier Notifier
}

// NewDistributor creates a distributor.
func NewDistributor(db *gorm.DB, ledger *LedgerService, notifier Notifier) *Distributor {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &Distributor{db: db, ledger: ledger, notifier: notifier}
}

// MemberFailure records one member that could not be paid.
type MemberFailure struct {
	GroupID   uint   `json:"group_id"`
	AccountID uint   `json:"account_id"`
	Error     string `json:"error"`
}

// RunReport summarizes one distribution run.
type RunReport struct {
	RulesRun  int             `json:"rules_run"`
	Processed int             `json:"processed"`
	Skipped   int             `json:"skipped"`
	Failed    int             `json:"failed"`
	Failures  []MemberFailure `json:"failures,omitempty"`
}

// RunDue pays every active rule whose next due date is today or earlier, then
// advances each rule's schedule. Per-member failures are collected and never
// abort the rest of the run.
func (d *Distributor) RunDue(now time.Time) (*RunReport, error) {
	today := FormatDueDate(now)

	var rules []models.RewardRule
	if err := d.db.Where("active = ? AND next_due_date <= ?", true, today).Find(&rules).Error; err != nil {
		return nil, err
	}

	report := &RunReport{}
	for _, rule := range rules {
		report.RulesRun++
		d.payRule(&rule, rule.NextDueDate, report)

		if err := d.advanceSchedule(&rule, now); err != nil && utils.Sugar != nil {
			utils.Sugar.Errorw("failed to advance reward schedule",
				"group_id", rule.GroupID, "rule_id", rule.ID, "error", err)
		}
	}
	return report, nil
}

// PayGroupNow pays one group's rule immediately, keyed to today's date. The
// rule's schedule is untouched; pressing it twice on the same day is a no-op
// for already-paid members.
func (d *Distributor) PayGroupNow(groupID uint, now time.Time) (*RunReport, error) {
	var rule models.RewardRule
	if err := d.db.Where("group_id = ?", groupID).First(&rule).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRuleNotFound
		}
		return nil, err
	}

	report := &RunReport{RulesRun: 1}
	d.payRule(&rule, FormatDueDate(now), report)
	return report, nil
}

func (d *Distributor) payRule(rule *models.RewardRule, dueDate string, report *RunReport) {
	var members []models.GroupMembership
	if err := d.db.Where("group_id = ?", rule.GroupID).Find(&members).Error; err != nil {
		report.Failed++
		report.Failures = append(report.Failures, MemberFailure{
			GroupID: rule.GroupID,
			Error:   fmt.Sprintf("load members: %v", err),
		})
		return
	}

	for _, m := range members {
		paid, err := d.payMember(rule, m.AccountID, dueDate)
		switch {
		case err != nil:
			report.Failed++
			report.Failures = append(report.Failures, MemberFailure{
				GroupID:   rule.GroupID,
				AccountID: m.AccountID,
				Error:     err.Error(),
			})
		case paid:
			report.Processed++
			d.notifier.Notify(m.AccountID, "group_reward",
				fmt.Sprintf("You received %d points as a group reward (%s)", rule.CoinAmount, dueDate))
		default:
			report.Skipped++
		}
	}
}

// payMember credits one member for one due date. The ledger entry and the
// distribution log row commit together; a duplicate-key error means another
// run already paid this (group, member, due date) and resolves to skip.
func (d *Distributor) payMember(rule *models.RewardRule, accountID uint, dueDate string) (bool, error) {
	var existing int64
	if err := d.db.Model(&models.DistributionLog{}).
		Where("group_id = ? AND account_id = ? AND due_date = ?", rule.GroupID, accountID, dueDate).
		Count(&existing).Error; err != nil {
		return false, err
	}
	if existing > 0 {
		return false, nil
	}

	err := d.db.Transaction(func(tx *gorm.DB) error {
		entry, err := d.ledger.RecordIn(tx, RecordParams{
			AccountID:   accountID,
			Amount:      rule.CoinAmount,
			Type:        models.TxGroupReward,
			Description: fmt.Sprintf("Group reward for group %d on %s", rule.GroupID, dueDate),
			Metadata: models.Metadata{
				"group_id": rule.GroupID,
				"due_date": dueDate,
			},
		})
		if err != nil {
			return err
		}

		return tx.Create(&models.DistributionLog{
			GroupID:       rule.GroupID,
			AccountID:     accountID,
			DueDate:       dueDate,
			CoinAmount:    rule.CoinAmount,
			LedgerEntryID: entry.ID,
			ExecutedAt:    time.Now(),
		}).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// advanceSchedule moves the rule's next due date forward using the rule's own
// due date as the cadence reference, so a late run never shifts the schedule.
// Several periods may have elapsed; step until the due date is in the future.
func (d *Distributor) advanceSchedule(rule *models.RewardRule, now time.Time) error {
	due, err := ParseDueDate(rule.NextDueDate)
	if err != nil {
		due = dateOnly(now)
	}

	// Compare formatted dates, as RunDue does. ParseDueDate yields UTC while
	// now carries the server zone; comparing the instants would leave the
	// schedule a day behind on servers east of UTC.
	today := FormatDueDate(now)
	next := NextDueDate(rule.CadenceKind, rule.CadenceParam, due)
	for FormatDueDate(next) <= today {
		next = NextDueDate(rule.CadenceKind, rule.CadenceParam, next)
	}

	return d.db.Model(rule).Update("next_due_date", FormatDueDate(next)).Error
}
