package db

import "time"

// ShiftStatus is the lifecycle status of a shift record.
type ShiftStatus string

const (
	ShiftStatusDraft     ShiftStatus = "DRAFT"
	ShiftStatusConfirmed ShiftStatus = "CONFIRMED"
	ShiftStatusCancelled ShiftStatus = "CANCELLED"
	ShiftStatusCompleted ShiftStatus = "COMPLETED"
)

// Terminal reports whether the status excludes the shift from scheduling
// decisions. Cancelled and completed shifts no longer occupy their window.
func (s ShiftStatus) Terminal() bool {
	return s == ShiftStatusCancelled || s == ShiftStatusCompleted
}

// ApprovalStatus tracks the approval workflow state of a shift.
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "PENDING"
	ApprovalStatusApproved ApprovalStatus = "APPROVED"
	ApprovalStatusRejected ApprovalStatus = "REJECTED"
)

// AssignmentStatus is the state of a guard-to-shift assignment.
type AssignmentStatus string

const (
	AssignmentStatusActive    AssignmentStatus = "ACTIVE"
	AssignmentStatusCancelled AssignmentStatus = "CANCELLED"
	AssignmentStatusDeclined  AssignmentStatus = "DECLINED"
)

// Shift represents a shift record owned by the scheduling service.
// Start and End are full timestamps; for overnight shifts End falls on the
// day after Date. The calendar fields are derived from Date/Start/End at
// creation time and are never mutated independently.
type Shift struct {
	ID             string
	LocationID     string
	Date           time.Time
	Start          time.Time
	End            time.Time
	DayOfWeek      int
	ISOWeek        int
	Quarter        int
	Weekend        bool
	Holiday        bool
	Night          bool
	RequiredGuards int
	AssignedGuards int
	Status         ShiftStatus
	ApprovalStatus ApprovalStatus
	ContractID     string
	ScheduleID     string
	CreatedAt      time.Time
}

// Assignment links a guard to a shift.
type Assignment struct {
	ID        string
	ShiftID   string
	GuardCode string
	Status    AssignmentStatus
	CreatedAt time.Time
}

// GuardBooking is an assignment joined with its shift window, used to
// check whether a guard is already booked somewhere during a window.
type GuardBooking struct {
	GuardCode  string
	ShiftID    string
	LocationID string
	Start      time.Time
	End        time.Time
}

// GuardEntry is the local mirror of a guard record owned by the identity
// service. Version is the identity service's monotonic counter; the mirror
// never accepts a write that does not advance it.
type GuardEntry struct {
	Code      string
	Name      string
	Email     string
	Phone     string
	Status    string
	Available bool
	Version   int64
	DeletedAt *time.Time
	UpdatedAt time.Time
}

// ManagerEntry is the local mirror of a manager record owned by the
// identity service.
type ManagerEntry struct {
	Code      string
	Name      string
	Email     string
	Phone     string
	Status    string
	Version   int64
	DeletedAt *time.Time
	UpdatedAt time.Time
}

// Absence is an approved leave period for a guard.
type Absence struct {
	ID        string
	GuardCode string
	FromDate  time.Time
	ToDate    time.Time
	Approved  bool
	Version   int64
}

// Covers reports whether the absence covers the given calendar day.
// Both bounds are inclusive.
func (a Absence) Covers(date time.Time) bool {
	d := date.Truncate(24 * time.Hour)
	return !d.Before(a.FromDate.Truncate(24*time.Hour)) && !d.After(a.ToDate.Truncate(24*time.Hour))
}
