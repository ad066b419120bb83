package contributor

import (
	"time"

	"github.com/warp/contribution-engine/calculator"
	"github.com/warp/contribution-engine/income"
)

// =============================================================================
// EVENTS - closed set, see Apply
// =============================================================================

// EventKind names an event type on the wire and in the log.
type EventKind string

const (
	KindRegistered    EventKind = "registered"
	KindIncomeApplied EventKind = "income_applied"
)

// Event is a fact recorded in a contributor's log.
type Event interface {
	Kind() EventKind
	AggregateID() string
	event()
}

// Registered marks the start of tracking. PriorYearlyIncome spans the full
// year before the registration year.
type Registered struct {
	ContributorID     string        `json:"contributor_id"`
	RegistrationDate  time.Time     `json:"registration_date"`
	PriorYearlyIncome income.Income `json:"prior_yearly_income"`
}

// IncomeApplied records a normalized income and the contributions of every
// month it covers.
type IncomeApplied struct {
	ContributorID string                                 `json:"contributor_id"`
	Income        income.Income                          `json:"income"`
	Year          int                                    `json:"year"`
	Timestamp     time.Time                              `json:"timestamp"`
	Contributions map[time.Month]calculator.Contributions `json:"contributions"`
}

func (Registered) Kind() EventKind    { return KindRegistered }
func (IncomeApplied) Kind() EventKind { return KindIncomeApplied }

func (e Registered) AggregateID() string    { return e.ContributorID }
func (e IncomeApplied) AggregateID() string { return e.ContributorID }

func (Registered) event()    {}
func (IncomeApplied) event() {}
