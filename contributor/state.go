/*
Package contributor is the event-sourced contributor aggregate.

PURPOSE:
  Tracks one contributor's declared income over a contribution year and
  the social contributions owed for each month of it.

ARCHITECTURE:
  command -> Aggregate.Handle -> events + reply
  events  -> Apply (fold)     -> State

  Handle is the only place that validates and calculates. Apply never
  fails and never calculates: it only reads what the event carries (plus
  the month spreading of income, which is deterministic). Replaying the
  same events therefore always rebuilds the same State.

LIFECYCLE:
  Unregistered --Register--> Registered --ApplyIncome--> Registered ...

IMMUTABILITY:
  State holds maps; Apply copies every map it touches and returns a new
  State, so a State handed out is never modified behind the holder's back.

SEE ALSO:
  - aggregate.go: command handling
  - apply.go: event application
  - service.go: per-contributor serialization on top of an EventLog
*/
package contributor

import (
	"time"

	"github.com/warp/contribution-engine/calculator"
	"github.com/warp/contribution-engine/income"
)

// =============================================================================
// STATE
// =============================================================================

// State is everything the aggregate knows about one contributor.
type State struct {
	ContributorID      string
	Registered         bool
	RegistrationDate   time.Time
	PriorYearlyIncomes map[int]income.Income
	ContributionYear   int
	MonthlyIncomes     map[time.Month]income.Income
	Contributions      map[time.Month]calculator.Contributions

	// Version is the number of events applied so far.
	Version int64
}

// Empty is the state of a contributor nothing has happened to yet.
func Empty(contributorID string) State {
	return State{
		ContributorID:      contributorID,
		PriorYearlyIncomes: map[int]income.Income{},
		MonthlyIncomes:     map[time.Month]income.Income{},
		Contributions:      map[time.Month]calculator.Contributions{},
	}
}

// TotalIncome is the sum of the monthly incomes of the contribution year.
func (s State) TotalIncome() int64 {
	return income.Total(s.MonthlyIncomes)
}

func (s State) clone() State {
	out := s
	out.PriorYearlyIncomes = make(map[int]income.Income, len(s.PriorYearlyIncomes))
	for y, inc := range s.PriorYearlyIncomes {
		out.PriorYearlyIncomes[y] = inc
	}
	out.MonthlyIncomes = make(map[time.Month]income.Income, len(s.MonthlyIncomes))
	for m, inc := range s.MonthlyIncomes {
		out.MonthlyIncomes[m] = inc
	}
	out.Contributions = make(map[time.Month]calculator.Contributions, len(s.Contributions))
	for m, cs := range s.Contributions {
		out.Contributions[m] = cs
	}
	return out
}
