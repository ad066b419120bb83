/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the aggregate's state and events from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Commands:
    RegisterRequest, ApplyIncomeRequest, SummaryDTO

  Read model:
    ContributorDTO, ContributionMonthDTO

  Calculators:
    CalculatorDTO, PreviewDTO

AMOUNTS:
  Decimals are rendered as JSON strings ("2687.1") so no client parses
  them into floats. Totals carry both the exact sum and the amount after
  the year's external rounding.

VALIDATION:
  Done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/warp/contribution-engine/calculator"
	"github.com/warp/contribution-engine/contributor"
	"github.com/warp/contribution-engine/income"
	"github.com/warp/contribution-engine/readside"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// RegisterRequest is the body of POST /api/contributors.
type RegisterRequest struct {
	ContributorID        string `json:"contributor_id"`
	RegistrationDate     string `json:"registration_date"` // YYYY-MM-DD
	PreviousYearlyIncome int64  `json:"previous_yearly_income"`
	IncomeType           string `json:"income_type"`
}

// ApplyIncomeRequest is the body of POST /api/contributors/{id}/incomes.
type ApplyIncomeRequest struct {
	Income     int64  `json:"income"`
	IncomeType string `json:"income_type"`
	Start      string `json:"start"` // YYYY-MM-DD
	End        string `json:"end"`   // YYYY-MM-DD, inclusive
	ScaleToEnd bool   `json:"scale_to_end"`
	DryRun     bool   `json:"dry_run"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// ContributionDTO is one rule's result.
type ContributionDTO struct {
	Code       string          `json:"code"`
	Income     decimal.Decimal `json:"income"`
	BaseIncome decimal.Decimal `json:"base_income"`
	Rate       decimal.Decimal `json:"rate"`
	Amount     decimal.Decimal `json:"amount"`
}

// TotalDTO is a rule's total over the covered months.
type TotalDTO struct {
	Code    string          `json:"code"`
	Amount  decimal.Decimal `json:"amount"`
	Rounded decimal.Decimal `json:"rounded"`
}

// MonthDTO is one month of a summary.
type MonthDTO struct {
	Month         int               `json:"month"`
	Income        int64             `json:"income"`
	Contributions []ContributionDTO `json:"contributions"`
}

// SummaryDTO is the reply to register and apply-income.
type SummaryDTO struct {
	ContributorID string     `json:"contributor_id"`
	Year          int        `json:"year"`
	Start         string     `json:"start"`
	End           string     `json:"end"`
	TotalIncome   int64      `json:"total_income"`
	Totals        []TotalDTO `json:"totals"`
	Months        []MonthDTO `json:"months"`
	DryRun        bool       `json:"dry_run,omitempty"`
}

// ContributorDTO is a read-model contributor row.
type ContributorDTO struct {
	ContributorID    string `json:"contributor_id"`
	Region           string `json:"region"`
	RegistrationDate string `json:"registration_date"`
}

// ContributionMonthDTO is a read-model contribution row.
type ContributionMonthDTO struct {
	Year          int               `json:"year"`
	Month         int               `json:"month"`
	Contributions []ContributionDTO `json:"contributions"`
}

// CalculatorDTO describes one configured fiscal year.
type CalculatorDTO struct {
	Year             int             `json:"year"`
	PASS             decimal.Decimal `json:"pass"`
	PRCI             decimal.Decimal `json:"prci"`
	CSG              decimal.Decimal `json:"csg"`
	ExternalRounding string          `json:"external_rounding"`
	Rules            []string        `json:"rules"`
}

// PreviewDTO is a one-off computation without any contributor.
type PreviewDTO struct {
	Year          int               `json:"year"`
	Income        decimal.Decimal   `json:"income"`
	Monthly       bool              `json:"monthly"`
	Contributions []ContributionDTO `json:"contributions"`
	Totals        []TotalDTO        `json:"totals"`
}

// ErrorResponse is returned for every failed request.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toContributionDTO(c calculator.Contribution) ContributionDTO {
	return ContributionDTO{
		Code:       c.Code,
		Income:     c.Income,
		BaseIncome: c.BaseIncome,
		Rate:       c.Rate,
		Amount:     c.Amount,
	}
}

func toContributionDTOs(cs []calculator.Contribution) []ContributionDTO {
	out := make([]ContributionDTO, len(cs))
	for i, c := range cs {
		out[i] = toContributionDTO(c)
	}
	return out
}

func toTotalDTOs(totals map[string]decimal.Decimal, calc *calculator.Calculator) []TotalDTO {
	out := make([]TotalDTO, 0, len(totals))
	for code, amount := range totals {
		out = append(out, TotalDTO{Code: code, Amount: amount, Rounded: calc.Round(amount)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func toSummaryDTO(s contributor.Summary, calc *calculator.Calculator, dryRun bool) SummaryDTO {
	dto := SummaryDTO{
		ContributorID: s.ContributorID,
		Year:          s.Year,
		TotalIncome:   s.TotalIncome,
		Totals:        toTotalDTOs(s.Totals, calc),
		Months:        make([]MonthDTO, len(s.Months)),
		DryRun:        dryRun,
	}
	if !s.Start.IsZero() {
		dto.Start = income.FormatDate(s.Start)
		dto.End = income.FormatDate(s.End)
	}
	for i, m := range s.Months {
		dto.Months[i] = MonthDTO{
			Month:         int(m.Month),
			Income:        m.Income,
			Contributions: toContributionDTOs(m.Contributions),
		}
	}
	return dto
}

func toContributorDTO(r readside.ContributorRow) ContributorDTO {
	return ContributorDTO{
		ContributorID:    r.ContributorID,
		Region:           r.Region,
		RegistrationDate: income.FormatDate(r.RegistrationDate),
	}
}

func toContributionMonthDTO(r readside.ContributionRow) ContributionMonthDTO {
	return ContributionMonthDTO{
		Year:          r.Year,
		Month:         int(r.Month),
		Contributions: toContributionDTOs(r.Contributions),
	}
}

func toCalculatorDTO(c *calculator.Calculator) CalculatorDTO {
	k := c.Constants()
	return CalculatorDTO{
		Year:             c.Year(),
		PASS:             k.PASS,
		PRCI:             k.PRCI,
		CSG:              k.CSG,
		ExternalRounding: c.Rounding().External.String(),
		Rules:            c.Codes(),
	}
}
