package calculator

import (
	"github.com/shopspring/decimal"
)

// Contribution is what one rule yields for one income.
type Contribution struct {
	Code       string          `json:"code"`
	Income     decimal.Decimal `json:"income"`
	BaseIncome decimal.Decimal `json:"base_income"`
	Rate       decimal.Decimal `json:"rate"`
	Amount     decimal.Decimal `json:"amount"`
}

// Equal compares every field by value, ignoring decimal scale.
func (c Contribution) Equal(o Contribution) bool {
	return c.Code == o.Code &&
		c.Income.Equal(o.Income) &&
		c.BaseIncome.Equal(o.BaseIncome) &&
		c.Rate.Equal(o.Rate) &&
		c.Amount.Equal(o.Amount)
}

// Contributions maps a rule code to its contribution.
type Contributions map[string]Contribution

// Clone returns a shallow copy; Contribution values are immutable.
func (cs Contributions) Clone() Contributions {
	out := make(Contributions, len(cs))
	for k, v := range cs {
		out[k] = v
	}
	return out
}
