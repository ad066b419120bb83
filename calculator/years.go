package calculator

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// SHIPPED FISCAL YEARS
// =============================================================================

// Config2018 floors amounts handed to callers.
func Config2018() Config {
	return Config{
		Year: 2018,
		PASS: decimal.NewFromInt(39732),
		PRCI: decimal.NewFromInt(37846),
		CSG:  decimal.RequireFromString("1.4"),
		Rounding: Rounding{
			Places:         12,
			Internal:       HalfEven,
			Cents:          Ceiling,
			External:       Floor,
			ExternalPlaces: 0,
		},
	}
}

// Config2019 switched external rounding to half-even.
func Config2019() Config {
	return Config{
		Year: 2019,
		PASS: decimal.NewFromInt(40524),
		PRCI: decimal.NewFromInt(37960),
		CSG:  decimal.RequireFromString("1.35"),
		Rounding: Rounding{
			Places:         12,
			Internal:       HalfEven,
			Cents:          Ceiling,
			External:       HalfEven,
			ExternalPlaces: 0,
		},
	}
}

// Shipped lists the year tables compiled into the binary.
func Shipped() []Config {
	return []Config{Config2018(), Config2019()}
}
