package contributor

import (
	"time"

	"github.com/warp/contribution-engine/income"
)

// =============================================================================
// COMMANDS - closed set, see Aggregate.Handle
// =============================================================================

// Command is a request to change a contributor.
type Command interface {
	AggregateID() string
	command()
}

// Register starts tracking a contributor from RegistrationDate on. The
// prior yearly income seeds the previous year and, annualized, every
// month of the registration year until real figures are declared.
type Register struct {
	ContributorID     string
	RegistrationDate  time.Time
	PriorYearlyIncome int64
	Category          income.Category
}

// ApplyIncome declares income for part of the contribution year.
type ApplyIncome struct {
	ContributorID string
	Income        income.Income

	// ScaleToEnd projects the income until December 31st instead of
	// keeping it on the months it covers.
	ScaleToEnd bool

	// DryRun computes the outcome without recording anything.
	DryRun bool
}

func (c Register) AggregateID() string    { return c.ContributorID }
func (c ApplyIncome) AggregateID() string { return c.ContributorID }

func (Register) command()    {}
func (ApplyIncome) command() {}
