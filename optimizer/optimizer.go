// Package optimizer converts a set of pledge ceilings plus a fixed target
// cost into per-backer charge amounts. It is a pure function: no I/O, no
// state, invoked once per settlement so every backer in the same run sees
// amounts computed from the same snapshot of the pledge set.
package optimizer

import (
	"github.com/shopspring/decimal"
)

// Result holds the outcome of one optimization run
type Result struct {
	// Amounts are the per-backer charges, index-aligned with the input
	// ceilings. Each amount never exceeds its ceiling.
	Amounts []decimal.Decimal

	// TotalPledged is the sum of all ceilings
	TotalPledged decimal.Decimal

	// Savings is how much the pool's combined ceilings exceed the target
	// cost; zero when underfunded
	Savings decimal.Decimal

	// PoolOpen reports whether the expense can accept new pledges. A fully
	// funded pool is closed.
	PoolOpen bool

	// CapacityHint estimates, for an underfunded pool, how many total
	// backers could eventually fill it at the platform minimum pledge
	CapacityHint int
}

// Optimize computes the fair per-backer charge for one settlement.
//
// When the pool is overfunded (total ceilings >= target), every ceiling is
// scaled by target/total and rounded to cents per element, with no
// redistribution of the rounding remainder: the sum of amounts may drift
// from the target by a few cents in either direction. That drift is a
// deliberate trade of exactness for per-backer independence; callers
// needing exact settlement must add a remainder pass.
//
// When the pool is underfunded, every backer pays their full ceiling and
// the pool stays open.
func Optimize(ceilings []decimal.Decimal, targetCost, minPledge decimal.Decimal) Result {
	total := decimal.Zero
	for _, c := range ceilings {
		total = total.Add(c)
	}

	res := Result{
		TotalPledged: total,
		Savings:      decimal.Zero,
		PoolOpen:     true,
	}

	if len(ceilings) == 0 || targetCost.LessThanOrEqual(decimal.Zero) {
		return res
	}

	if total.GreaterThanOrEqual(targetCost) {
		// Fully funded: scale every ceiling down proportionally. The ratio
		// only shrinks as new pledges grow the total, so an existing
		// backer's amount never increases when someone joins.
		ratio := targetCost.Div(total)
		amounts := make([]decimal.Decimal, len(ceilings))
		for i, c := range ceilings {
			amounts[i] = c.Mul(ratio).Round(2)
		}
		res.Amounts = amounts
		res.Savings = total.Sub(targetCost)
		res.PoolOpen = false
		return res
	}

	// Underfunded: everyone pays their ceiling in full
	amounts := make([]decimal.Decimal, len(ceilings))
	copy(amounts, ceilings)
	res.Amounts = amounts
	res.CapacityHint = capacityHint(targetCost.Sub(total), minPledge, len(ceilings))
	return res
}

// capacityHint estimates how many backers the pool could hold in total if
// the remaining shortfall were covered at the minimum pledge
func capacityHint(shortfall, minPledge decimal.Decimal, current int) int {
	if minPledge.LessThanOrEqual(decimal.Zero) {
		return current
	}
	extra := shortfall.Div(minPledge).Floor().IntPart()
	return int(extra) + current
}
