package calculator

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ROUNDING MODES
// =============================================================================

// RoundingMode selects how a decimal is cut to a number of places.
type RoundingMode int

const (
	HalfEven RoundingMode = iota
	HalfUp
	Floor
	Ceiling
	Down
	Up
)

var roundingNames = map[RoundingMode]string{
	HalfEven: "half_even",
	HalfUp:   "half_up",
	Floor:    "floor",
	Ceiling:  "ceiling",
	Down:     "down",
	Up:       "up",
}

func (m RoundingMode) String() string {
	if s, ok := roundingNames[m]; ok {
		return s
	}
	return fmt.Sprintf("RoundingMode(%d)", int(m))
}

// ParseRoundingMode accepts the names printed by String, case-insensitively.
func ParseRoundingMode(s string) (RoundingMode, error) {
	for m, name := range roundingNames {
		if strings.EqualFold(name, s) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown rounding mode %q", s)
}

// Round cuts d to places decimals.
func (m RoundingMode) Round(d decimal.Decimal, places int32) decimal.Decimal {
	switch m {
	case HalfUp:
		return d.Round(places)
	case Floor:
		return d.RoundFloor(places)
	case Ceiling:
		return d.RoundCeil(places)
	case Down:
		return d.RoundDown(places)
	case Up:
		return d.RoundUp(places)
	default:
		return d.RoundBank(places)
	}
}

// Rounding is the full rounding policy of one fiscal year.
type Rounding struct {
	// Places and Internal drive every intermediate product and quotient.
	Places   int32
	Internal RoundingMode

	// Cents is applied to each rule's contribution, to two decimals.
	Cents RoundingMode

	// External is what Round applies to amounts handed to callers.
	External       RoundingMode
	ExternalPlaces int32
}

// =============================================================================
// MATH CONTEXT - fixed-scale decimal arithmetic
// =============================================================================

type mathContext struct {
	places int32
	mode   RoundingMode
}

func (mc mathContext) round(d decimal.Decimal) decimal.Decimal {
	return mc.mode.Round(d, mc.places)
}

func (mc mathContext) mul(a, b decimal.Decimal) decimal.Decimal {
	return mc.round(a.Mul(b))
}

// div carries four guard digits before applying the context mode so the
// quotient is not rounded twice in the same direction.
func (mc mathContext) div(a, b decimal.Decimal) decimal.Decimal {
	return mc.round(a.DivRound(b, mc.places+4))
}
