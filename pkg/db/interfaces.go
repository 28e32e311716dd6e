package db

import (
	"context"
	"time"
)

// ShiftStore defines the shift persistence operations.
type ShiftStore interface {
	// ListShiftsForDate returns all shifts at a location on a calendar day,
	// including terminal ones; callers filter by status.
	ListShiftsForDate(ctx context.Context, locationID string, date time.Time) ([]Shift, error)
	GetShift(ctx context.Context, id string) (*Shift, error)
	// InsertShift persists a new shift. It returns ErrShiftWindowTaken when
	// the shift's window collides with a non-terminal shift at the same
	// location, enforced by the storage layer itself.
	InsertShift(ctx context.Context, shift *Shift) error
	// ShiftExistsForSchedule reports whether a shift already exists for the
	// exact (contract, schedule, date) triple, regardless of status.
	ShiftExistsForSchedule(ctx context.Context, contractID, scheduleID string, date time.Time) (bool, error)
	CancelShift(ctx context.Context, id string) error
}

// AssignmentStore defines the guard assignment persistence operations.
type AssignmentStore interface {
	// ListBookingsOverlapping returns bookings whose shift window intersects
	// [start, end), across all locations. Cancelled and declined
	// assignments and terminal shifts are excluded.
	ListBookingsOverlapping(ctx context.Context, start, end time.Time) ([]GuardBooking, error)
	InsertAssignment(ctx context.Context, assignment *Assignment) error
}

// DirectoryStore defines the guard/manager mirror operations. Upserts and
// deletes are version-gated: the write applies only when the carried
// version is strictly greater than the stored one, and the boolean result
// reports whether it was applied.
type DirectoryStore interface {
	UpsertGuard(ctx context.Context, entry *GuardEntry) (bool, error)
	DeleteGuard(ctx context.Context, code string, version int64) (bool, error)
	ListActiveGuards(ctx context.Context) ([]GuardEntry, error)
	UpsertManager(ctx context.Context, entry *ManagerEntry) (bool, error)
	DeleteManager(ctx context.Context, code string, version int64) (bool, error)
	// SetGuardAvailability flips the availability flag without touching the
	// rest of the entry, for deactivation events that carry no profile data.
	SetGuardAvailability(ctx context.Context, code string, available bool, version int64) (bool, error)
}

// ContractStore tracks the contract IDs known to the scheduler, fed by
// contract activation events. Only the ID and version are kept; contract
// terms are always re-fetched live.
type ContractStore interface {
	UpsertContractRef(ctx context.Context, contractID string, version int64) (bool, error)
	ListContractIDs(ctx context.Context) ([]string, error)
}

// AbsenceStore defines the approved-absence operations.
type AbsenceStore interface {
	UpsertAbsence(ctx context.Context, absence *Absence) (bool, error)
	RevokeAbsence(ctx context.Context, id string, version int64) (bool, error)
	ListApprovedAbsences(ctx context.Context, date time.Time) ([]Absence, error)
}

// RunLocker serializes the shift generation job. Acquire returns false
// when another run already holds the lock; the release function is a
// no-op in that case.
type RunLocker interface {
	AcquireGenerationLock(ctx context.Context) (release func(), acquired bool, err error)
}
