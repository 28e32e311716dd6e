package schedule

import (
	"fmt"
	"time"

	"github.com/aegisops/rosterd/pkg/db"
)

// ValidationCode identifies a business rule rejection.
type ValidationCode string

const (
	CodeDateInPast          ValidationCode = "DATE_IN_PAST"
	CodeOverlap             ValidationCode = "OVERLAP"
	CodeOutOfContractPeriod ValidationCode = "OUT_OF_CONTRACT_PERIOD"
	CodeNoGuardsAvailable   ValidationCode = "NO_GUARDS_AVAILABLE"
	CodeGuardUnavailable    ValidationCode = "GUARD_UNAVAILABLE"
)

// ValidationError is a typed business error. It is raised at the point of
// detection and never retried; the boundary translates it into a
// structured response.
type ValidationError struct {
	Code    ValidationCode
	Message string
	// Conflicts carries the conflicting shifts for CodeOverlap.
	Conflicts []db.Shift
	// PeriodStart/PeriodEnd carry the contract bounds for
	// CodeOutOfContractPeriod.
	PeriodStart time.Time
	PeriodEnd   time.Time
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewDateInPastError reports a shift date that is not strictly after today.
func NewDateInPastError(date time.Time) *ValidationError {
	return &ValidationError{
		Code:    CodeDateInPast,
		Message: fmt.Sprintf("shift date %s must be after the current date", date.Format("2006-01-02")),
	}
}

// NewOverlapError reports conflicting shifts at the target location.
func NewOverlapError(conflicts []db.Shift) *ValidationError {
	return &ValidationError{
		Code:      CodeOverlap,
		Message:   fmt.Sprintf("%d conflicting shift(s) at the same location and window", len(conflicts)),
		Conflicts: conflicts,
	}
}

// NewOutOfContractPeriodError reports a shift date outside the contract's
// [start, end] period.
func NewOutOfContractPeriodError(date, periodStart, periodEnd time.Time) *ValidationError {
	return &ValidationError{
		Code: CodeOutOfContractPeriod,
		Message: fmt.Sprintf("shift date %s is outside the contract period %s..%s",
			date.Format("2006-01-02"), periodStart.Format("2006-01-02"), periodEnd.Format("2006-01-02")),
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
	}
}

// NewNoGuardsAvailableError reports that no guard can take the shift.
func NewNoGuardsAvailableError() *ValidationError {
	return &ValidationError{
		Code:    CodeNoGuardsAvailable,
		Message: "no guards are available for the requested window",
	}
}

// NewGuardUnavailableError reports an assignment attempt for a guard that
// is busy or on leave.
func NewGuardUnavailableError(guardCode, status string) *ValidationError {
	return &ValidationError{
		Code:    CodeGuardUnavailable,
		Message: fmt.Sprintf("guard %s is %s for the requested window", guardCode, status),
	}
}
