/*
Package income models money earned over a span of calendar days.

PURPOSE:
  An Income is the single value type every other package passes around:
  the aggregate stores them per month, the calculator consumes their
  amounts, the event log persists them inside events.

KEY CONCEPTS:
  Amount:   Integer minor units. Never negative.
  Span:     Start and End are calendar days, End inclusive.
  Category: Where the figure comes from (declared, estimated, computed).

IMMUTABILITY:
  Income is a plain value. Every operation in prorate.go returns a new
  value and never touches its argument.

SEE ALSO:
  - prorate.go: scaling and month spreading
  - contributor/aggregate.go: validation order for declared incomes
*/
package income

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// CATEGORY
// =============================================================================

// Category tells where an income figure comes from.
type Category string

const (
	CategoryReal      Category = "real"
	CategoryEstimated Category = "estimated"
	CategoryAutomatic Category = "auto"
	CategorySystem    Category = "system"
)

// ParseCategory maps a wire name to a Category. The empty string means
// Estimated, which is what a contributor declares before any real figure
// is known.
func ParseCategory(s string) (Category, error) {
	switch Category(s) {
	case CategoryReal, CategoryEstimated, CategoryAutomatic, CategorySystem:
		return Category(s), nil
	case "":
		return CategoryEstimated, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrNegativeAmount  = errors.New("income amount is negative")
	ErrInvertedPeriod  = errors.New("income period ends before it starts")
	ErrUnknownCategory = errors.New("unknown income category")
)

// =============================================================================
// INCOME
// =============================================================================

// Income is an amount earned between Start and End (both inclusive).
type Income struct {
	Amount   int64     `json:"amount"`
	Category Category  `json:"category"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
}

// New builds an Income with both dates truncated to calendar days.
func New(amount int64, category Category, start, end time.Time) Income {
	return Income{Amount: amount, Category: category, Start: Day(start), End: Day(end)}
}

// YearIncome is an income spanning January 1st to December 31st of year.
func YearIncome(amount int64, year int, category Category) Income {
	return Income{Amount: amount, Category: category, Start: StartOfYear(year), End: EndOfYear(year)}
}

// Validate reports a negative amount or an inverted span.
func (i Income) Validate() error {
	if i.Amount < 0 {
		return ErrNegativeAmount
	}
	if i.End.Before(i.Start) {
		return ErrInvertedPeriod
	}
	return nil
}

// Year is the calendar year the income starts in.
func (i Income) Year() int { return i.Start.Year() }

// SingleYear reports whether Start and End fall in the same calendar year.
func (i Income) SingleYear() bool { return i.Start.Year() == i.End.Year() }

// Months is the number of calendar months touched by the span, partial
// months included. A single day counts as one month.
func (i Income) Months() int {
	n := monthIndex(i.End) - monthIndex(i.Start) + 1
	if n < 1 {
		return 1
	}
	return n
}

func (i Income) String() string {
	return fmt.Sprintf("%d (%s) %s..%s", i.Amount, i.Category, FormatDate(i.Start), FormatDate(i.End))
}
