package config

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/contribution-engine/calculator"
)

// =============================================================================
// FISCAL YEAR TABLES
// =============================================================================

// Table defines a fiscal year in the config file. A table for a shipped
// year replaces it.
//
//	[[calculator.tables]]
//	year = 2020
//	pass = "41136"
//	prci = "38404"
//	csg = "1.35"
//	external_rounding = "half_even"
type Table struct {
	Year             int    `toml:"year"`
	PASS             string `toml:"pass"`
	PRCI             string `toml:"prci"`
	CSG              string `toml:"csg"`
	ExternalRounding string `toml:"external_rounding"` // default half_even
}

// CalculatorConfig converts t. Rounding other than the external mode
// follows the shipped years.
func (t Table) CalculatorConfig() (calculator.Config, error) {
	if t.Year <= 0 {
		return calculator.Config{}, fmt.Errorf("calculator table: year is required")
	}
	cfg := calculator.Config2019()
	cfg.Year = t.Year

	fields := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"pass", t.PASS, &cfg.PASS},
		{"prci", t.PRCI, &cfg.PRCI},
		{"csg", t.CSG, &cfg.CSG},
	}
	for _, f := range fields {
		v, err := decimal.NewFromString(f.raw)
		if err != nil {
			return calculator.Config{}, fmt.Errorf("calculator table %d: %s %q is not a number", t.Year, f.name, f.raw)
		}
		*f.dst = v
	}

	if t.ExternalRounding != "" {
		mode, err := calculator.ParseRoundingMode(t.ExternalRounding)
		if err != nil {
			return calculator.Config{}, fmt.Errorf("calculator table %d: %w", t.Year, err)
		}
		cfg.Rounding.External = mode
	}
	return cfg, nil
}

// Configs is the shipped years merged with the configured tables, then
// narrowed to Years when set.
func (c Calculator) Configs() ([]calculator.Config, error) {
	configs := calculator.Shipped()
	for _, t := range c.Tables {
		cfg, err := t.CalculatorConfig()
		if err != nil {
			return nil, err
		}
		replaced := false
		for i := range configs {
			if configs[i].Year == cfg.Year {
				configs[i] = cfg
				replaced = true
			}
		}
		if !replaced {
			configs = append(configs, cfg)
		}
	}
	return calculator.SelectYears(configs, c.Years), nil
}

// Registry builds the calculator registry of c.
func (c Calculator) Registry() (*calculator.Registry, error) {
	configs, err := c.Configs()
	if err != nil {
		return nil, err
	}
	return calculator.NewRegistry(configs...)
}
