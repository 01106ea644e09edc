package service

import (
	"time"
)

// NextSettlementDate returns the next occurrence of the expense's
// settlement day on or after the given day, in UTC. Settlement days beyond
// the length of a month clamp to that month's last day (the 31st settles
// February on the 28th or 29th) rather than rolling into the next month.
func NextSettlementDate(now time.Time, settlementDay int) time.Time {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	due := clampedDate(today.Year(), today.Month(), settlementDay)
	if due.Before(today) {
		// Step from the first of the month so a late-month today cannot
		// normalize past February (Jan 31 + 1 month is Mar 3).
		next := time.Date(today.Year(), today.Month()+1, 1, 0, 0, 0, 0, time.UTC)
		due = clampedDate(next.Year(), next.Month(), settlementDay)
	}
	return due
}

// ScheduledDate returns when settlement actually runs for a due date:
// leadDays ahead, to absorb payment-processor settlement latency
func ScheduledDate(dueDate time.Time, leadDays int) time.Time {
	return dueDate.AddDate(0, 0, -leadDays)
}

// PeriodMonth normalizes a date to the first day of its calendar month,
// the key under which withdrawal uniqueness is enforced
func PeriodMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// clampedDate builds a date clamping day to the month's actual length
func clampedDate(year int, month time.Month, day int) time.Time {
	if last := lastDayOfMonth(year, month); day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func lastDayOfMonth(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
