package optimizer

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func decs(ss ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, len(ss))
	for i, s := range ss {
		out[i] = dec(s)
	}
	return out
}

var minPledge = dec("1.00")

func TestOptimize_Overfunded(t *testing.T) {
	res := Optimize(decs("5", "5", "5"), dec("10"), minPledge)

	require.Len(t, res.Amounts, 3)
	for _, a := range res.Amounts {
		assert.True(t, a.Equal(dec("3.33")), "got %s", a)
	}
	assert.False(t, res.PoolOpen)
	assert.True(t, res.TotalPledged.Equal(dec("15")))
	assert.True(t, res.Savings.Equal(dec("5")))

	// Per-element rounding drifts the sum a cent below the target
	sum := decimal.Zero
	for _, a := range res.Amounts {
		sum = sum.Add(a)
	}
	assert.True(t, sum.Equal(dec("9.99")), "got %s", sum)
}

func TestOptimize_ExactlyFunded(t *testing.T) {
	res := Optimize(decs("4", "6"), dec("10"), minPledge)

	require.Len(t, res.Amounts, 2)
	assert.True(t, res.Amounts[0].Equal(dec("4")))
	assert.True(t, res.Amounts[1].Equal(dec("6")))
	assert.False(t, res.PoolOpen)
	assert.True(t, res.Savings.IsZero())
}

func TestOptimize_Underfunded(t *testing.T) {
	res := Optimize(decs("2", "2"), dec("10"), minPledge)

	require.Len(t, res.Amounts, 2)
	assert.True(t, res.Amounts[0].Equal(dec("2")))
	assert.True(t, res.Amounts[1].Equal(dec("2")))
	assert.True(t, res.PoolOpen)
	assert.True(t, res.Savings.IsZero())
	// 6 remaining at min pledge 1 -> room for 6 more backers on top of 2
	assert.Equal(t, 8, res.CapacityHint)
}

func TestOptimize_NoPledges(t *testing.T) {
	res := Optimize(nil, dec("10"), minPledge)

	assert.Empty(t, res.Amounts)
	assert.True(t, res.PoolOpen)
	assert.True(t, res.Savings.IsZero())
	assert.True(t, res.TotalPledged.IsZero())
}

func TestOptimize_ZeroTarget(t *testing.T) {
	res := Optimize(decs("5", "5"), decimal.Zero, minPledge)

	assert.Empty(t, res.Amounts)
	assert.True(t, res.PoolOpen)
	assert.True(t, res.TotalPledged.Equal(dec("10")))
}

func TestOptimize_FairnessBound(t *testing.T) {
	// No backer is ever charged more than their ceiling
	cases := [][]string{
		{"5", "5", "5"},
		{"0.01", "99.99", "12.34"},
		{"33.33", "33.33", "33.34"},
		{"120", "0.50"},
	}
	targets := []string{"10", "50", "100", "120.50"}

	for _, c := range cases {
		for _, tc := range targets {
			ceilings := decs(c...)
			res := Optimize(ceilings, dec(tc), minPledge)
			require.Len(t, res.Amounts, len(ceilings))
			for i, a := range res.Amounts {
				assert.True(t, a.LessThanOrEqual(ceilings[i]),
					"amount %s exceeds ceiling %s (target %s)", a, ceilings[i], tc)
			}
		}
	}
}

func TestOptimize_OverfundedSumWithinEpsilon(t *testing.T) {
	ceilings := decs("7.77", "13.13", "0.99", "42.42", "5.55")
	target := dec("50")
	res := Optimize(ceilings, target, minPledge)

	sum := decimal.Zero
	for _, a := range res.Amounts {
		sum = sum.Add(a)
	}
	epsilon := dec("0.01").Mul(decimal.NewFromInt(int64(len(ceilings))))
	assert.True(t, sum.Sub(target).Abs().LessThanOrEqual(epsilon),
		"sum %s drifts more than %s from target %s", sum, epsilon, target)
}

func TestOptimize_UnderfundedAmountsExact(t *testing.T) {
	ceilings := decs("1.11", "2.22", "3.33")
	res := Optimize(ceilings, dec("100"), minPledge)

	require.Len(t, res.Amounts, 3)
	for i, a := range res.Amounts {
		assert.True(t, a.Equal(ceilings[i]))
	}
}

func TestOptimize_MonotonicNonIncrease(t *testing.T) {
	// Adding a backer to an already-closed pool never increases any
	// existing backer's amount
	base := decs("5", "10", "2.50")
	target := dec("12")

	before := Optimize(base, target, minPledge)
	require.False(t, before.PoolOpen)

	grown := append(append([]decimal.Decimal{}, base...), dec("4"))
	after := Optimize(grown, target, minPledge)

	for i := range base {
		assert.True(t, after.Amounts[i].LessThanOrEqual(before.Amounts[i]),
			"backer %d: %s > %s after pool grew", i, after.Amounts[i], before.Amounts[i])
	}
}

func TestOptimize_CapacityHintMinPledgeGuard(t *testing.T) {
	res := Optimize(decs("2"), dec("10"), decimal.Zero)
	assert.Equal(t, 1, res.CapacityHint)
}
