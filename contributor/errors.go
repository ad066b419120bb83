/*
errors.go - Rejections of contributor commands

PURPOSE:
  Every way a command can be refused, in one place. A refused command
  never appends an event and never changes state.

ERROR CATEGORIES:
  1. State errors   - command not allowed in the current lifecycle state
  2. Period errors  - declared income outside what the aggregate accepts
  3. Lookup errors  - nothing to report for a contributor

USAGE:
  Callers match sentinels with errors.Is and read the stable code from
  CommandError for wire responses:

    var ce *contributor.CommandError
    if errors.As(err, &ce) {
        writeError(w, status(ce), ce.Code, ce.Message)
    }

SEE ALSO:
  - aggregate.go: check order of ApplyIncome
  - api/handlers.go: HTTP status mapping
*/
package contributor

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrAlreadyRegistered is returned by Register on a registered contributor.
	ErrAlreadyRegistered = errors.New("contributor already registered")

	// ErrNotRegistered is returned by ApplyIncome before Register.
	ErrNotRegistered = errors.New("contributor not registered yet")

	// ErrIllegalPeriod is returned when an income period ends before it starts.
	ErrIllegalPeriod = errors.New("illegal income period")

	// ErrNotSingleYearPeriod is returned when an income period crosses a
	// calendar year boundary.
	ErrNotSingleYearPeriod = errors.New("income period spans several years")

	// ErrNotCurrentContributionYear is returned for income declared outside
	// the contribution year being tracked.
	ErrNotCurrentContributionYear = errors.New("income outside current contribution year")

	ErrNegativeIncome       = errors.New("income amount is negative")
	ErrMissingContributorID = errors.New("contributor id is required")
	ErrMissingRegistration  = errors.New("registration date is required")

	// ErrNoContributions is returned when a contributor has nothing computed.
	ErrNoContributions = errors.New("no contributions computed")
)

var errorCodes = map[error]string{
	ErrAlreadyRegistered:          "E_ALREADY_REGISTERED",
	ErrNotRegistered:              "E_NOT_REGISTERED_YET",
	ErrIllegalPeriod:              "E_ILLEGAL_PERIOD",
	ErrNotSingleYearPeriod:        "E_NOT_SINGLE_YEAR_PERIOD",
	ErrNotCurrentContributionYear: "E_NOT_CURRENT_CONTRIBUTION_YEAR",
	ErrNegativeIncome:             "E_NEGATIVE_INCOME",
	ErrMissingContributorID:       "E_MISSING_CONTRIBUTOR_ID",
	ErrMissingRegistration:        "E_MISSING_REGISTRATION_DATE",
	ErrNoContributions:            "E_NO_CONTRIBUTIONS",
}

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// CommandError is a refused command: a stable code plus a human message.
type CommandError struct {
	Code          string
	Message       string
	ContributorID string
	Err           error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

func reject(contributorID string, sentinel error, format string, args ...any) *CommandError {
	return &CommandError{
		Code:          errorCodes[sentinel],
		Message:       fmt.Sprintf(format, args...),
		ContributorID: contributorID,
		Err:           sentinel,
	}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRejection returns true for a refused command, as opposed to a failure
// of the log or the transport.
func IsRejection(err error) bool {
	var ce *CommandError
	return errors.As(err, &ce)
}

// IsNotFound returns true when the contributor is unknown or has nothing
// to report.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotRegistered) || errors.Is(err, ErrNoContributions)
}

// IsConflict returns true when the command clashes with existing state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyRegistered)
}
