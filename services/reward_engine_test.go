package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cosmarket/points/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNextDueDateDaily(t *testing.T) {
	got := NextDueDate(models.CadenceDaily, 0, date(2026, time.March, 15))
	require.Equal(t, date(2026, time.March, 16), got)

	// Time-of-day on the reference must not matter.
	noon := time.Date(2026, time.March, 15, 12, 30, 0, 0, time.UTC)
	require.Equal(t, got, NextDueDate(models.CadenceDaily, 0, noon))
}

func TestNextDueDateWeekly(t *testing.T) {
	// 2026-03-16 is a Monday.
	monday := date(2026, time.March, 16)

	// Wednesday from Monday: 2 days out.
	require.Equal(t, date(2026, time.March, 18),
		NextDueDate(models.CadenceWeekly, int(time.Wednesday), monday))

	// Same weekday never resolves to the reference itself.
	require.Equal(t, date(2026, time.March, 23),
		NextDueDate(models.CadenceWeekly, int(time.Monday), monday))

	// Sunday (param 0) from Monday: 6 days out.
	require.Equal(t, date(2026, time.March, 22),
		NextDueDate(models.CadenceWeekly, 0, monday))

	// Result is always 1..7 days in the future.
	for wd := 0; wd < 7; wd++ {
		next := NextDueDate(models.CadenceWeekly, wd, monday)
		gap := int(next.Sub(monday).Hours() / 24)
		require.GreaterOrEqual(t, gap, 1)
		require.LessOrEqual(t, gap, 7)
		require.Equal(t, time.Weekday(wd), next.Weekday())
	}
}

func TestNextDueDateMonthly(t *testing.T) {
	// Day still upcoming in the current month.
	require.Equal(t, date(2026, time.March, 20),
		NextDueDate(models.CadenceMonthly, 20, date(2026, time.March, 5)))

	// Day already passed (or is today): next month.
	require.Equal(t, date(2026, time.April, 5),
		NextDueDate(models.CadenceMonthly, 5, date(2026, time.March, 5)))
	require.Equal(t, date(2026, time.April, 5),
		NextDueDate(models.CadenceMonthly, 5, date(2026, time.March, 10)))
}

func TestNextDueDateMonthlyClampsShortMonths(t *testing.T) {
	// Day 31 from late February resolves to March 31.
	require.Equal(t, date(2026, time.March, 31),
		NextDueDate(models.CadenceMonthly, 31, date(2026, time.February, 28)))

	// Day 31 after March 31 clamps to April 30.
	require.Equal(t, date(2026, time.April, 30),
		NextDueDate(models.CadenceMonthly, 31, date(2026, time.March, 31)))

	// Day 30 in February clamps to the 28th (2026 is not a leap year).
	require.Equal(t, date(2026, time.February, 28),
		NextDueDate(models.CadenceCustom, 30, date(2026, time.February, 1)))

	// Leap year February keeps the 29th.
	require.Equal(t, date(2028, time.February, 29),
		NextDueDate(models.CadenceCustom, 30, date(2028, time.February, 1)))
}

func TestNextDueDateJanuary31DoesNotSkipFebruary(t *testing.T) {
	// Advancing from January 31 with day 31 must land in February (clamped),
	// not jump to March.
	require.Equal(t, date(2026, time.February, 28),
		NextDueDate(models.CadenceMonthly, 31, date(2026, time.January, 31)))
}

func TestNextDueDateYearRollover(t *testing.T) {
	require.Equal(t, date(2027, time.January, 15),
		NextDueDate(models.CadenceMonthly, 15, date(2026, time.December, 20)))
}

func TestDueDateRoundTrip(t *testing.T) {
	d := date(2026, time.July, 4)
	parsed, err := ParseDueDate(FormatDueDate(d))
	require.NoError(t, err)
	require.Equal(t, d, parsed)

	_, err = ParseDueDate("not-a-date")
	require.Error(t, err)
}
