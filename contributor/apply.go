package contributor

import (
	"fmt"

	"github.com/warp/contribution-engine/income"
)

// Apply folds one event into s and returns the new state. s is left
// untouched.
func Apply(s State, e Event) State {
	next := s.clone()
	next.Version++

	switch e := e.(type) {
	case Registered:
		next.ContributorID = e.ContributorID
		next.Registered = true
		next.RegistrationDate = e.RegistrationDate
		next.ContributionYear = e.RegistrationDate.Year()
		next.PriorYearlyIncomes[e.PriorYearlyIncome.Year()] = e.PriorYearlyIncome

	case IncomeApplied:
		for m, inc := range income.SpreadOverMonths(e.Income) {
			next.MonthlyIncomes[m] = inc
		}
		for m, cs := range e.Contributions {
			merged := next.Contributions[m].Clone()
			for code, c := range cs {
				merged[code] = c
			}
			next.Contributions[m] = merged
		}

	default:
		panic(fmt.Sprintf("contributor: unknown event %T", e))
	}

	return next
}

// Replay folds events in order starting from the empty state.
func Replay(contributorID string, events []Event) State {
	s := Empty(contributorID)
	for _, e := range events {
		s = Apply(s, e)
	}
	return s
}
