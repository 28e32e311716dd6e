package bus

import "time"

// Query subjects served by the contract, location and calendar services.
const (
	SubjectGetContract               = "contracts.get"
	SubjectGetContractShiftSchedules = "contracts.schedules"
	SubjectCheckLocationClosed       = "locations.closed"
	SubjectCheckPublicHoliday        = "calendar.holiday"
)

// Lifecycle event names consumed from the identity and contract domains,
// plus the audit event this service produces.
const (
	EventUserCreated        = "identity.user.created"
	EventUserUpdated        = "identity.user.updated"
	EventUserDeleted        = "identity.user.deleted"
	EventGuardInfoUpdated   = "identity.guard.info"
	EventGuardDeactivated   = "identity.guard.deactivated"
	EventManagerInfoUpdated = "identity.manager.info"
	EventContractActivated  = "contracts.activated"
	EventAbsenceApproved    = "absence.approved"
	EventAbsenceRevoked     = "absence.revoked"
	EventShiftsGenerated    = "scheduling.shifts.generated"
)

// GetContractRequest asks the contract service for one contract.
type GetContractRequest struct {
	ContractID string `json:"contractId"`
}

// Contract is the per-call snapshot of contract terms. It is never cached
// locally; contract terms can change, so every validation re-fetches it.
type Contract struct {
	ContractID         string    `json:"contractId"`
	ContractNumber     string    `json:"contractNumber"`
	Status             string    `json:"status"`
	StartDate          time.Time `json:"startDate"`
	EndDate            time.Time `json:"endDate"`
	AutoGenerateShifts bool      `json:"autoGenerateShifts"`
	ExcludeHolidays    bool      `json:"excludeHolidays"`
}

// GetContractResponse is the contract service's reply.
type GetContractResponse struct {
	Success      bool      `json:"success"`
	Contract     *Contract `json:"contract,omitempty"`
	ErrorMessage *string   `json:"errorMessage,omitempty"`
}

// CheckLocationClosedRequest asks whether a location has a recorded
// special closure on a date.
type CheckLocationClosedRequest struct {
	LocationID string    `json:"locationId"`
	Date       time.Time `json:"date"`
}

// CheckLocationClosedResponse carries the closure verdict. Reason and
// DayType are optional facts and stay nil when the location is open.
type CheckLocationClosedResponse struct {
	IsClosed bool    `json:"isClosed"`
	Reason   *string `json:"reason,omitempty"`
	DayType  *string `json:"dayType,omitempty"`
}

// CheckPublicHolidayRequest asks whether a date is a public holiday.
type CheckPublicHolidayRequest struct {
	Date time.Time `json:"date"`
}

// CheckPublicHolidayResponse carries the holiday verdict.
type CheckPublicHolidayResponse struct {
	IsHoliday bool    `json:"isHoliday"`
	Name      *string `json:"name,omitempty"`
}

// GetContractShiftSchedulesRequest asks for a contract's recurring shift
// schedule definitions.
type GetContractShiftSchedulesRequest struct {
	ContractID string `json:"contractId"`
}

// ShiftSchedule is one recurring schedule definition. RRule is an
// RFC 5545 recurrence rule selecting the shift days; the clock strings
// are "15:04".
type ShiftSchedule struct {
	ScheduleID     string `json:"scheduleId"`
	LocationID     string `json:"locationId"`
	RRule          string `json:"rrule"`
	StartTime      string `json:"startTime"`
	EndTime        string `json:"endTime"`
	RequiredGuards int    `json:"requiredGuards"`
}

// GetContractShiftSchedulesResponse is the contract service's reply.
type GetContractShiftSchedulesResponse struct {
	Success      bool            `json:"success"`
	Schedules    []ShiftSchedule `json:"schedules,omitempty"`
	ErrorMessage *string         `json:"errorMessage,omitempty"`
}

// UserEvent is the identity domain's user lifecycle payload. Role
// distinguishes guard and manager records; Version is the identity
// service's monotonic counter for the entity.
type UserEvent struct {
	Code      string `json:"code"`
	Role      string `json:"role"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Status    string `json:"status"`
	Available bool   `json:"available"`
	Version   int64  `json:"version"`
}

// GuardDeactivatedEvent marks a guard as unavailable for scheduling.
type GuardDeactivatedEvent struct {
	Code    string `json:"code"`
	Version int64  `json:"version"`
}

// ContractActivatedEvent announces a newly activated contract.
type ContractActivatedEvent struct {
	ContractID string `json:"contractId"`
	Version    int64  `json:"version"`
}

// AbsenceEvent carries an approved or revoked guard absence.
type AbsenceEvent struct {
	AbsenceID string    `json:"absenceId"`
	GuardCode string    `json:"guardCode"`
	FromDate  time.Time `json:"fromDate"`
	ToDate    time.Time `json:"toDate"`
	Version   int64     `json:"version"`
}

// ShiftsGeneratedEvent is the audit event emitted after a generation run.
type ShiftsGeneratedEvent struct {
	ContractID           string    `json:"contractId"`
	GenerationDate       time.Time `json:"generationDate"`
	ShiftsCreatedCount   int       `json:"shiftsCreatedCount"`
	ShiftsSkippedCount   int       `json:"shiftsSkippedCount"`
	SkipReasons          []string  `json:"skipReasons"`
	Status               string    `json:"status"`
	CreatedShiftIDs      []string  `json:"createdShiftIds"`
	GenerationDurationMs int64     `json:"generationDurationMs"`
}
