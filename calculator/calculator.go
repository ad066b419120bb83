/*
Package calculator computes social contributions from an income.

PURPOSE:
  A Calculator holds the rule set of one fiscal year. Each rule maps a
  yearly income to a taxable base and a rate (percent); the contribution
  is base * rate / 100.

KEY CONCEPTS:
  PASS / PRCI: Year-specific ceilings every threshold is derived from.
  Threshold:   Base clamped against multiples of PASS.
  Piecewise:   Rate varying linearly between knots, continuous at each knot.
  Composite:   Sum of other rules (MAL1 = MLD1T1 + MLD1T2, ...).

ROUNDING:
  Three levels, all set per year in Rounding:
  1. Internal: every product/quotient at Places decimals (half-even).
  2. Cents:    each rule's amount to 2 decimals.
  3. External: Round(), what a caller shows or books.

MONTHLY INCOME:
  ComputeFromMonthlyIncome annualizes (x12), computes, then divides every
  field by 12. The yearly formulas are the only source of truth.

SEE ALSO:
  - rules.go: the rule set shared by all years
  - years.go: PASS/PRCI/CSG and rounding per year
  - registry.go: year -> Calculator lookup
*/
package calculator

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidConfig is returned by New for unusable year constants.
	ErrInvalidConfig = errors.New("invalid calculator configuration")

	// ErrUnknownRule is returned when a rule code is not configured.
	ErrUnknownRule = errors.New("unknown contribution rule")
)

var (
	hundred = decimal.NewFromInt(100)
	twelve  = decimal.NewFromInt(12)
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config is what distinguishes one fiscal year from another.
type Config struct {
	Year     int
	PASS     decimal.Decimal
	PRCI     decimal.Decimal
	CSG      decimal.Decimal // multiplier applied to income for CSG/CRDS
	Rounding Rounding
}

// Constants are the thresholds derived from a Config.
type Constants struct {
	PASS     decimal.Decimal
	PRCI     decimal.Decimal
	CSG      decimal.Decimal
	Pass0115 decimal.Decimal // 11.5% of PASS
	Pass40   decimal.Decimal // 40% of PASS
	Pass110  decimal.Decimal // 110% of PASS
	Pass140  decimal.Decimal // 140% of PASS
	PassX4   decimal.Decimal
	PassX5   decimal.Decimal
}

func (cfg Config) validate() error {
	switch {
	case cfg.Year <= 0:
		return fmt.Errorf("%w: year %d", ErrInvalidConfig, cfg.Year)
	case !cfg.PASS.IsPositive():
		return fmt.Errorf("%w: PASS must be positive", ErrInvalidConfig)
	case !cfg.PRCI.IsPositive():
		return fmt.Errorf("%w: PRCI must be positive", ErrInvalidConfig)
	case cfg.PRCI.GreaterThan(cfg.PASS.Mul(decimal.NewFromInt(4))):
		return fmt.Errorf("%w: PRCI above 4 x PASS", ErrInvalidConfig)
	case !cfg.CSG.IsPositive():
		return fmt.Errorf("%w: CSG must be positive", ErrInvalidConfig)
	case cfg.Rounding.Places < 2 || cfg.Rounding.Places > 28:
		return fmt.Errorf("%w: internal precision %d", ErrInvalidConfig, cfg.Rounding.Places)
	case cfg.Rounding.ExternalPlaces < 0 || cfg.Rounding.ExternalPlaces > 2:
		return fmt.Errorf("%w: external precision %d", ErrInvalidConfig, cfg.Rounding.ExternalPlaces)
	}
	return nil
}

// =============================================================================
// CALCULATOR
// =============================================================================

// Calculator is immutable once built and safe for concurrent use.
type Calculator struct {
	year      int
	constants Constants
	rounding  Rounding
	mc        mathContext
	rules     []Rule
	index     map[string]int
}

// New builds the calculator of cfg.Year with the standard rule set.
func New(cfg Config) (*Calculator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	mc := mathContext{places: cfg.Rounding.Places, mode: cfg.Rounding.Internal}
	pct := func(p string) decimal.Decimal { return mc.mul(cfg.PASS, decimal.RequireFromString(p)) }
	consts := Constants{
		PASS:     cfg.PASS,
		PRCI:     cfg.PRCI,
		CSG:      cfg.CSG,
		Pass0115: pct("0.115"),
		Pass40:   pct("0.4"),
		Pass110:  pct("1.1"),
		Pass140:  pct("1.4"),
		PassX4:   pct("4"),
		PassX5:   pct("5"),
	}

	c := &Calculator{
		year:      cfg.Year,
		constants: consts,
		rounding:  cfg.Rounding,
		mc:        mc,
		rules:     standardRules(mc, consts),
	}
	if err := c.buildIndex(); err != nil {
		return nil, err
	}
	return c, nil
}

// MustNew is New for the shipped year tables, which are known to be valid.
func MustNew(cfg Config) *Calculator {
	c, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return c
}

// buildIndex maps codes to positions and checks that composite parts exist and
// are themselves simple rules.
func (c *Calculator) buildIndex() error {
	c.index = make(map[string]int, len(c.rules))
	for i, r := range c.rules {
		if _, dup := c.index[r.Code]; dup {
			return fmt.Errorf("%w: duplicate rule %s", ErrInvalidConfig, r.Code)
		}
		c.index[r.Code] = i
	}
	for _, r := range c.rules {
		for _, part := range r.Parts {
			i, ok := c.index[part]
			if !ok {
				return fmt.Errorf("%w: %s references unknown rule %s", ErrInvalidConfig, r.Code, part)
			}
			if c.rules[i].Composite() {
				return fmt.Errorf("%w: %s nests composite rule %s", ErrInvalidConfig, r.Code, part)
			}
		}
	}
	return nil
}

func (c *Calculator) Year() int            { return c.year }
func (c *Calculator) Constants() Constants { return c.constants }
func (c *Calculator) Rounding() Rounding   { return c.rounding }

// Codes lists rule codes in evaluation order.
func (c *Calculator) Codes() []string {
	codes := make([]string, len(c.rules))
	for i, r := range c.rules {
		codes[i] = r.Code
	}
	return codes
}

// ComputeFromYearlyIncome evaluates every rule against a yearly income.
func (c *Calculator) ComputeFromYearlyIncome(income decimal.Decimal) Contributions {
	out := make(Contributions, len(c.rules))
	for _, r := range c.rules {
		out[r.Code] = c.compute(r, income)
	}
	return out
}

// ComputeFromMonthlyIncome evaluates every rule against twelve times the
// monthly income and brings income, base and amount back to one month.
// Rates are per-year percentages and are kept as is.
func (c *Calculator) ComputeFromMonthlyIncome(income decimal.Decimal) Contributions {
	yearly := c.ComputeFromYearlyIncome(income.Mul(twelve))
	for code, y := range yearly {
		yearly[code] = Contribution{
			Code:       code,
			Income:     c.mc.div(y.Income, twelve),
			BaseIncome: c.mc.div(y.BaseIncome, twelve),
			Rate:       y.Rate,
			Amount:     c.mc.div(y.Amount, twelve),
		}
	}
	return yearly
}

// Compute evaluates a single rule against a yearly income.
func (c *Calculator) Compute(code string, income decimal.Decimal) (Contribution, error) {
	i, ok := c.index[code]
	if !ok {
		return Contribution{}, fmt.Errorf("%w: %s", ErrUnknownRule, code)
	}
	return c.compute(c.rules[i], income), nil
}

// Round applies the year's external rounding.
func (c *Calculator) Round(amount decimal.Decimal) decimal.Decimal {
	return c.rounding.External.Round(amount, c.rounding.ExternalPlaces)
}

func (c *Calculator) compute(r Rule, income decimal.Decimal) Contribution {
	base := c.mc.round(r.Base(income))

	if r.Composite() {
		amount := decimal.Zero
		for _, part := range r.Parts {
			amount = amount.Add(c.compute(c.rules[c.index[part]], income).Amount)
		}
		return Contribution{Code: r.Code, Income: income, BaseIncome: base, Rate: c.effectiveRate(amount, base), Amount: amount}
	}

	rate := c.mc.round(r.Rate(income))
	amount := c.mc.div(c.mc.mul(base, rate), hundred)
	return Contribution{
		Code:       r.Code,
		Income:     income,
		BaseIncome: base,
		Rate:       rate,
		Amount:     c.rounding.Cents.Round(amount, 2),
	}
}

// effectiveRate is shown on composite rules only; nothing computes with it.
func (c *Calculator) effectiveRate(amount, base decimal.Decimal) decimal.Decimal {
	if base.IsZero() {
		return decimal.Zero
	}
	return Ceiling.Round(amount.Mul(hundred).DivRound(base, c.mc.places), 2)
}
