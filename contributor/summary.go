package contributor

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/contribution-engine/calculator"
	"github.com/warp/contribution-engine/income"
)

// Summary is the reply to every command: what the contributor earns and
// owes over the contribution year.
type Summary struct {
	ContributorID string                     `json:"contributor_id"`
	Year          int                        `json:"year"`
	Start         time.Time                  `json:"start"`
	End           time.Time                  `json:"end"`
	TotalIncome   int64                      `json:"total_income"`
	Totals        map[string]decimal.Decimal `json:"totals"`
	Months        []MonthSummary             `json:"months"`
}

// MonthSummary is one month's income and contributions, sorted by code.
type MonthSummary struct {
	Month         time.Month                `json:"month"`
	Income        int64                     `json:"income"`
	Contributions []calculator.Contribution `json:"contributions"`
}

// Empty reports whether no contribution has been computed.
func (s Summary) Empty() bool { return len(s.Months) == 0 }

// Summarize builds the Summary of a state. Months without contributions
// are left out.
func Summarize(s State) Summary {
	sum := Summary{
		ContributorID: s.ContributorID,
		Year:          s.ContributionYear,
		TotalIncome:   s.TotalIncome(),
		Totals:        map[string]decimal.Decimal{},
	}

	months := make([]time.Month, 0, len(s.Contributions))
	for m := range s.Contributions {
		months = append(months, m)
	}
	sort.Slice(months, func(i, j int) bool { return months[i] < months[j] })

	for _, m := range months {
		cs := s.Contributions[m]
		ms := MonthSummary{
			Month:         m,
			Income:        s.MonthlyIncomes[m].Amount,
			Contributions: make([]calculator.Contribution, 0, len(cs)),
		}
		for code, c := range cs {
			ms.Contributions = append(ms.Contributions, c)
			sum.Totals[code] = sum.Totals[code].Add(c.Amount)
		}
		sort.Slice(ms.Contributions, func(i, j int) bool { return ms.Contributions[i].Code < ms.Contributions[j].Code })
		sum.Months = append(sum.Months, ms)
	}

	if len(months) > 0 {
		sum.Start = income.StartOfMonth(s.ContributionYear, months[0])
		sum.End = income.EndOfMonth(s.ContributionYear, months[len(months)-1])
	}
	return sum
}
