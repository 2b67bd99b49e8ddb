package services

import (
	"time"

	"github.com/cosmarket/points/models"
)

// DueDateLayout is the calendar-date format used by reward rules and
// distribution logs.
const DueDateLayout = "2006-01-02"

// NextDueDate computes the due date following reference for a cadence. Pure:
// the clock is always passed in explicitly.
//
//   - daily: reference + 1 day.
//   - weekly (param = weekday 0-6): next strict-future occurrence of that
//     weekday; when reference already falls on it, 7 days out.
//   - monthly/custom (param = day-of-month 1-31): that day later in the
//     current month if still upcoming, otherwise in the next month. Months
//     shorter than the requested day clamp to their last day.
func NextDueDate(kind string, param int, reference time.Time) time.Time {
	ref := dateOnly(reference)

	switch kind {
	case models.CadenceDaily:
		return ref.AddDate(0, 0, 1)

	case models.CadenceWeekly:
		target := time.Weekday(((param % 7) + 7) % 7)
		days := int(target-ref.Weekday()+7) % 7
		if days == 0 {
			days = 7
		}
		return ref.AddDate(0, 0, days)

	case models.CadenceMonthly, models.CadenceCustom:
		day := param
		if day < 1 {
			day = 1
		}
		if cur := monthOccurrence(ref.Year(), ref.Month(), day, ref.Location()); cur.After(ref) {
			return cur
		}
		// First of the next month; time.Date normalizes month 13 into January.
		next := time.Date(ref.Year(), ref.Month()+1, 1, 0, 0, 0, 0, ref.Location())
		return monthOccurrence(next.Year(), next.Month(), day, ref.Location())

	default:
		// Unknown cadence behaves as daily so an active rule never stalls.
		return ref.AddDate(0, 0, 1)
	}
}

// monthOccurrence returns the given day-of-month in year/month, clamped to
// the month's last day.
func monthOccurrence(year int, month time.Month, day int, loc *time.Location) time.Time {
	if last := daysInMonth(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// FormatDueDate renders a time as a calendar due date.
func FormatDueDate(t time.Time) string {
	return t.Format(DueDateLayout)
}

// ParseDueDate parses a stored calendar due date.
func ParseDueDate(s string) (time.Time, error) {
	return time.Parse(DueDateLayout, s)
}
