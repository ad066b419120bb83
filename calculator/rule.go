package calculator

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// RULES
// =============================================================================

// Rule turns a yearly income into a base and a rate. A rule with Parts is
// composite: its amount is the sum of its parts' amounts and its Rate
// function is never consulted.
type Rule struct {
	Code  string
	Base  func(income decimal.Decimal) decimal.Decimal
	Rate  func(income decimal.Decimal) decimal.Decimal
	Parts []string
}

// Composite reports whether the rule sums other rules.
func (r Rule) Composite() bool { return len(r.Parts) > 0 }

// fixed is a rate that does not depend on income.
func fixed(rate decimal.Decimal) func(decimal.Decimal) decimal.Decimal {
	return func(decimal.Decimal) decimal.Decimal { return rate }
}

// identity is the base of rules applied to the whole income.
func identity(income decimal.Decimal) decimal.Decimal { return income }

// clamp bounds x to [lo, hi].
func clamp(x, lo, hi decimal.Decimal) decimal.Decimal {
	return decimal.Max(lo, decimal.Min(x, hi))
}

// =============================================================================
// PIECEWISE-LINEAR RATES
// =============================================================================

// point is a knot of a piecewise-linear function.
type point struct {
	x, y decimal.Decimal
}

// linear is a continuous piecewise-linear function through its knots,
// constant before the first knot and after the last one. Knots must be
// sorted by x with no duplicates.
type linear []point

func (l linear) at(mc mathContext, x decimal.Decimal) decimal.Decimal {
	if x.LessThanOrEqual(l[0].x) {
		return l[0].y
	}
	for i := 1; i < len(l); i++ {
		if x.Equal(l[i].x) {
			return l[i].y
		}
		if x.LessThan(l[i].x) {
			return interpolate(mc, l[i-1], l[i], x)
		}
	}
	return l[len(l)-1].y
}

// interpolate evaluates the segment p0-p1 at x. At x == p1.x it yields
// exactly p1.y, so adjacent segments agree on their shared knot.
func interpolate(mc mathContext, p0, p1 point, x decimal.Decimal) decimal.Decimal {
	rise := mc.mul(p1.y.Sub(p0.y), x.Sub(p0.x))
	return mc.round(p0.y.Add(mc.div(rise, p1.x.Sub(p0.x))))
}

func (mc mathContext) linearRate(knots ...point) func(decimal.Decimal) decimal.Decimal {
	l := linear(knots)
	return func(income decimal.Decimal) decimal.Decimal { return l.at(mc, income) }
}
