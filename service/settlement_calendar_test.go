package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNextSettlementDate_LaterThisMonth(t *testing.T) {
	got := NextSettlementDate(day(2026, time.March, 10), 15)
	assert.Equal(t, day(2026, time.March, 15), got)
}

func TestNextSettlementDate_Today(t *testing.T) {
	got := NextSettlementDate(day(2026, time.March, 15), 15)
	assert.Equal(t, day(2026, time.March, 15), got)
}

func TestNextSettlementDate_RollsToNextMonth(t *testing.T) {
	got := NextSettlementDate(day(2026, time.March, 20), 15)
	assert.Equal(t, day(2026, time.April, 15), got)
}

func TestNextSettlementDate_RollsFromMonthEnd(t *testing.T) {
	// A late-January today must land in February, not skip over it
	got := NextSettlementDate(day(2026, time.January, 31), 15)
	assert.Equal(t, day(2026, time.February, 15), got)

	got = NextSettlementDate(day(2026, time.January, 30), 1)
	assert.Equal(t, day(2026, time.February, 1), got)

	got = NextSettlementDate(day(2026, time.February, 28), 5)
	assert.Equal(t, day(2026, time.March, 5), got)
}

func TestNextSettlementDate_RollsAcrossYearEnd(t *testing.T) {
	got := NextSettlementDate(day(2026, time.December, 31), 15)
	assert.Equal(t, day(2027, time.January, 15), got)
}

func TestNextSettlementDate_ClampsToMonthEnd(t *testing.T) {
	// Day 31 in a 30-day month settles on the 30th
	got := NextSettlementDate(day(2026, time.April, 1), 31)
	assert.Equal(t, day(2026, time.April, 30), got)

	// February clamps to the 28th in a non-leap year
	got = NextSettlementDate(day(2026, time.February, 1), 31)
	assert.Equal(t, day(2026, time.February, 28), got)

	// ...and the 29th in a leap year
	got = NextSettlementDate(day(2028, time.February, 1), 31)
	assert.Equal(t, day(2028, time.February, 29), got)
}

func TestNextSettlementDate_ClampAppliesAfterRollToo(t *testing.T) {
	// Past January's 31st: next occurrence is February's clamped month end
	got := NextSettlementDate(day(2027, time.February, 1), 31)
	assert.Equal(t, day(2027, time.February, 28), got)
}

func TestNextSettlementDate_IgnoresTimeOfDay(t *testing.T) {
	now := time.Date(2026, time.March, 15, 23, 59, 59, 0, time.UTC)
	got := NextSettlementDate(now, 15)
	assert.Equal(t, day(2026, time.March, 15), got)
}

func TestScheduledDate(t *testing.T) {
	assert.Equal(t, day(2026, time.March, 13), ScheduledDate(day(2026, time.March, 15), 2))

	// Lead days can cross into the previous month
	assert.Equal(t, day(2026, time.February, 27), ScheduledDate(day(2026, time.March, 1), 2))
}

func TestPeriodMonth(t *testing.T) {
	assert.Equal(t, day(2026, time.March, 1), PeriodMonth(day(2026, time.March, 31)))
	assert.Equal(t, day(2026, time.March, 1), PeriodMonth(day(2026, time.March, 1)))
}
