/*
aggregate.go - Command handling for the contributor aggregate

PURPOSE:
  Turns a command and the current state into the events to record and
  the reply to send back. Nothing here touches storage: Handle is a
  function of (state, command, clock, calculators).

REGISTER:
  1. Refuse if already registered
  2. Registered{prior income over the whole previous year}
  3. IncomeApplied{prior income annualized onto the registration year}
  Both events go to the log as one batch.

APPLY INCOME (checks in this order, first failure wins):
  1. registered                         else ErrNotRegistered
  2. start <= end                       else ErrIllegalPeriod
  3. start and end in the same year     else ErrNotSingleYearPeriod
  4. year == contribution year          else ErrNotCurrentContributionYear
  5. amount >= 0                        else ErrNegativeIncome
  Then normalize (ScaleToEnd: stretch to Dec 31, otherwise widen to whole
  months), spread over months, compute each month's contributions.

CONCURRENCY:
  Months are computed in parallel and joined before the event is built.
  A reply is only produced once every month is done.

SEE ALSO:
  - apply.go: how events change state
  - income/prorate.go: normalization and spreading
  - calculator/registry.go: calculator selection by year
*/
package contributor

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/warp/contribution-engine/calculator"
	"github.com/warp/contribution-engine/income"
)

// Decision is the outcome of a handled command.
type Decision struct {
	// Events to append, in order, as one batch. Empty for dry runs.
	Events []Event

	// State after Events are applied. For a dry run this is the state the
	// command was handled against.
	State State

	// Reply summarizes the resulting contributions, including for dry runs.
	Reply Summary

	DryRun bool
}

// Aggregate handles commands. It is stateless and safe to share.
type Aggregate struct {
	calculators *calculator.Registry
	now         func() time.Time
}

// Option customizes an Aggregate.
type Option func(*Aggregate)

// WithClock replaces time.Now for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregate) { a.now = now }
}

// NewAggregate builds an Aggregate computing with calculators.
func NewAggregate(calculators *calculator.Registry, opts ...Option) *Aggregate {
	a := &Aggregate{
		calculators: calculators,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handle decides what cmd does to s. Refusals are *CommandError values; any
// other error comes from ctx.
func (a *Aggregate) Handle(ctx context.Context, s State, cmd Command) (Decision, error) {
	switch cmd := cmd.(type) {
	case Register:
		return a.register(ctx, s, cmd)
	case ApplyIncome:
		return a.applyIncome(ctx, s, cmd)
	}
	panic("contributor: unknown command")
}

// =============================================================================
// REGISTER
// =============================================================================

func (a *Aggregate) register(ctx context.Context, s State, cmd Register) (Decision, error) {
	id := cmd.ContributorID
	switch {
	case s.Registered:
		return Decision{}, reject(id, ErrAlreadyRegistered, "contributor %s registered on %s", s.ContributorID, income.FormatDate(s.RegistrationDate))
	case id == "":
		return Decision{}, reject(id, ErrMissingContributorID, "register needs a contributor id")
	case cmd.RegistrationDate.IsZero():
		return Decision{}, reject(id, ErrMissingRegistration, "register needs a registration date")
	case cmd.PriorYearlyIncome < 0:
		return Decision{}, reject(id, ErrNegativeIncome, "prior yearly income %d is negative", cmd.PriorYearlyIncome)
	}

	category := cmd.Category
	if category == "" {
		category = income.CategoryEstimated
	}
	date := income.Day(cmd.RegistrationDate)
	year := date.Year()
	prior := income.YearIncome(cmd.PriorYearlyIncome, year-1, category)

	registered := Registered{
		ContributorID:     id,
		RegistrationDate:  date,
		PriorYearlyIncome: prior,
	}

	applied, err := a.incomeApplied(ctx, id, year, income.ScaleToFullYear(prior, year))
	if err != nil {
		return Decision{}, err
	}

	next := Apply(Apply(s, registered), applied)
	return Decision{
		Events: []Event{registered, applied},
		State:  next,
		Reply:  Summarize(next),
	}, nil
}

// =============================================================================
// APPLY INCOME
// =============================================================================

func (a *Aggregate) applyIncome(ctx context.Context, s State, cmd ApplyIncome) (Decision, error) {
	id := cmd.ContributorID
	inc := cmd.Income

	switch {
	case !s.Registered:
		return Decision{}, reject(id, ErrNotRegistered, "contributor %s is not registered", id)
	case inc.End.Before(inc.Start):
		return Decision{}, reject(id, ErrIllegalPeriod, "period %s..%s ends before it starts", income.FormatDate(inc.Start), income.FormatDate(inc.End))
	case !inc.SingleYear():
		return Decision{}, reject(id, ErrNotSingleYearPeriod, "period %s..%s spans several years", income.FormatDate(inc.Start), income.FormatDate(inc.End))
	case inc.Year() != s.ContributionYear:
		return Decision{}, reject(id, ErrNotCurrentContributionYear, "income for %d, contribution year is %d", inc.Year(), s.ContributionYear)
	case inc.Amount < 0:
		return Decision{}, reject(id, ErrNegativeIncome, "income amount %d is negative", inc.Amount)
	}

	var normalized income.Income
	if cmd.ScaleToEnd {
		normalized = income.ScaleToEndOfYear(inc)
	} else {
		normalized = income.ToCompleteMonths(inc)
	}

	applied, err := a.incomeApplied(ctx, id, s.ContributionYear, normalized)
	if err != nil {
		return Decision{}, err
	}

	next := Apply(s, applied)
	if cmd.DryRun {
		return Decision{State: s, Reply: Summarize(next), DryRun: true}, nil
	}
	return Decision{
		Events: []Event{applied},
		State:  next,
		Reply:  Summarize(next),
	}, nil
}

// =============================================================================
// CALCULATION
// =============================================================================

func (a *Aggregate) incomeApplied(ctx context.Context, id string, year int, inc income.Income) (IncomeApplied, error) {
	byMonth, err := a.contributionsByMonth(ctx, a.calculators.For(year), income.SpreadOverMonths(inc))
	if err != nil {
		return IncomeApplied{}, err
	}
	return IncomeApplied{
		ContributorID: id,
		Income:        inc,
		Year:          year,
		Timestamp:     a.now(),
		Contributions: byMonth,
	}, nil
}

// contributionsByMonth computes every month concurrently. Each goroutine
// writes its own slot, so no lock is needed.
func (a *Aggregate) contributionsByMonth(ctx context.Context, calc *calculator.Calculator, incomes map[time.Month]income.Income) (map[time.Month]calculator.Contributions, error) {
	var slots [13]calculator.Contributions

	g, ctx := errgroup.WithContext(ctx)
	for m, inc := range incomes {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			slots[m] = calc.ComputeFromMonthlyIncome(decimal.NewFromInt(inc.Amount))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[time.Month]calculator.Contributions, len(incomes))
	for m := range incomes {
		out[m] = slots[m]
	}
	return out, nil
}
