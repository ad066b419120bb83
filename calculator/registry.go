/*
registry.go - Fiscal year to Calculator lookup

PURPOSE:
  Income is always computed with the calculator of the year it belongs to.
  The registry is built once at startup from an explicit list of year
  tables and never changes afterwards, so lookups take no lock.

FALLBACK:
  A year without its own table is computed with the most recent table:

    registry with 2018, 2019
    For(2019) -> 2019
    For(2017) -> 2019
    For(2024) -> 2019

  An empty registry is a startup error (ErrNoCalculatorAvailable), never
  a calculator with zero rules.

SEE ALSO:
  - years.go: shipped year tables
  - contributor/aggregate.go: picks the calculator of the contribution year
*/
package calculator

import (
	"errors"
	"fmt"
	"sort"
)

// ErrNoCalculatorAvailable means no year table could be loaded.
var ErrNoCalculatorAvailable = errors.New("no contribution calculator available")

// Registry is read-only after NewRegistry returns.
type Registry struct {
	byYear map[int]*Calculator
	latest *Calculator
}

// NewRegistry builds one calculator per config. Years must be unique.
func NewRegistry(configs ...Config) (*Registry, error) {
	if len(configs) == 0 {
		return nil, ErrNoCalculatorAvailable
	}

	r := &Registry{byYear: make(map[int]*Calculator, len(configs))}
	for _, cfg := range configs {
		if _, dup := r.byYear[cfg.Year]; dup {
			return nil, fmt.Errorf("%w: year %d configured twice", ErrInvalidConfig, cfg.Year)
		}
		c, err := New(cfg)
		if err != nil {
			return nil, fmt.Errorf("calculator %d: %w", cfg.Year, err)
		}
		r.byYear[cfg.Year] = c
		if r.latest == nil || c.Year() > r.latest.Year() {
			r.latest = c
		}
	}
	return r, nil
}

// DefaultRegistry holds every shipped year.
func DefaultRegistry() (*Registry, error) {
	return NewRegistry(Shipped()...)
}

// SelectYears keeps the configs whose year is listed. An empty list keeps
// everything.
func SelectYears(configs []Config, years []int) []Config {
	if len(years) == 0 {
		return configs
	}
	wanted := make(map[int]bool, len(years))
	for _, y := range years {
		wanted[y] = true
	}
	var out []Config
	for _, cfg := range configs {
		if wanted[cfg.Year] {
			out = append(out, cfg)
		}
	}
	return out
}

// For returns the calculator of year, or the most recent one when year has
// no table of its own.
func (r *Registry) For(year int) *Calculator {
	if c, ok := r.byYear[year]; ok {
		return c
	}
	return r.latest
}

// Lookup returns the calculator of exactly year.
func (r *Registry) Lookup(year int) (*Calculator, bool) {
	c, ok := r.byYear[year]
	return c, ok
}

// Latest is the calculator with the highest year.
func (r *Registry) Latest() *Calculator { return r.latest }

// Years lists configured years in ascending order.
func (r *Registry) Years() []int {
	years := make([]int, 0, len(r.byYear))
	for y := range r.byYear {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}
