package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aegisops/rosterd/pkg/core/availability"
	"github.com/aegisops/rosterd/pkg/core/schedule"
	"github.com/aegisops/rosterd/pkg/db"
)

// CreateShiftInput describes one shift-creation request. StartTime and
// EndTime are "15:04" clock strings; an end at or before the start means
// the shift runs overnight.
type CreateShiftInput struct {
	LocationID     string
	Date           time.Time
	StartTime      string
	EndTime        string
	RequiredGuards int
	ContractID     string
}

// CreateShiftResult is the successful outcome of a creation request.
type CreateShiftResult struct {
	Shift        *db.Shift
	Availability *availability.Result
	// Shortfall is set when fewer guards are available than required; the
	// shift is still created.
	Shortfall bool
}

// CreateShiftStore defines the persistence the orchestrator needs.
type CreateShiftStore interface {
	ListShiftsForDate(ctx context.Context, locationID string, date time.Time) ([]db.Shift, error)
	InsertShift(ctx context.Context, shift *db.Shift) error
	availability.Store
}

// Notifier delivers fire-and-forget notices about created shifts.
type Notifier interface {
	NotifyShiftCreated(ctx context.Context, shift *db.Shift) error
}

// CreateShift handles one shift-creation request as a single pass:
// date sanity, conflict check, contract-period check (fail-closed),
// guard-availability check, persist, notify. Every failure before the
// insert is side-effect-free, so no rollback logic exists. The storage
// layer's no-overlap constraint closes the window between the read-side
// conflict check and the insert.
func CreateShift(
	ctx context.Context,
	store CreateShiftStore,
	gateway QueryGateway,
	notifier Notifier,
	logger *zap.Logger,
	input CreateShiftInput,
) (*CreateShiftResult, error) {
	date := schedule.DateOnly(input.Date)
	logger.Info("Creating shift",
		zap.String("location_id", input.LocationID),
		zap.Time("date", date),
		zap.String("start", input.StartTime),
		zap.String("end", input.EndTime))

	if input.RequiredGuards <= 0 {
		return nil, fmt.Errorf("required guards must be positive, got %d", input.RequiredGuards)
	}

	// Step 1: the shift date must be strictly after the current date.
	today := schedule.DateOnly(time.Now())
	if !date.After(today) {
		return nil, schedule.NewDateInPastError(date)
	}

	window, err := schedule.BuildWindow(date, input.StartTime, input.EndTime)
	if err != nil {
		return nil, err
	}

	// Step 2: conflict check at the destination location and date.
	existing, err := store.ListShiftsForDate(ctx, input.LocationID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list shifts for conflict check: %w", err)
	}
	if conflicts := schedule.FindOverlaps(existing, window, ""); len(conflicts) > 0 {
		return nil, schedule.NewOverlapError(conflicts)
	}

	// Step 3: contract-period check, fail-closed.
	if input.ContractID != "" {
		contract, err := fetchContract(ctx, gateway, input.ContractID)
		if err != nil {
			return nil, err
		}
		periodStart := schedule.DateOnly(contract.StartDate)
		periodEnd := schedule.DateOnly(contract.EndDate)
		if date.Before(periodStart) || date.After(periodEnd) {
			return nil, schedule.NewOutOfContractPeriodError(date, periodStart, periodEnd)
		}
	}

	// Step 4: guard availability. Zero available guards blocks creation;
	// a shortfall against the required count is only a warning.
	avail, err := availability.Resolve(ctx, store, logger, input.LocationID, date, window)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve guard availability: %w", err)
	}
	if avail.Available == 0 {
		return nil, schedule.NewNoGuardsAvailableError()
	}
	shortfall := avail.Available < input.RequiredGuards
	if shortfall {
		logger.Warn("Creating shift with guard shortfall",
			zap.String("location_id", input.LocationID),
			zap.Time("date", date),
			zap.Int("required", input.RequiredGuards),
			zap.Int("available", avail.Available))
	}

	// Step 5: derive calendar fields and persist.
	isHoliday, _ := checkHoliday(ctx, gateway, logger, date)
	cal := schedule.DeriveCalendar(date, window)

	shift := &db.Shift{
		ID:             uuid.New().String(),
		LocationID:     input.LocationID,
		Date:           date,
		Start:          window.Start,
		End:            window.End,
		DayOfWeek:      cal.DayOfWeek,
		ISOWeek:        cal.ISOWeek,
		Quarter:        cal.Quarter,
		Weekend:        cal.Weekend,
		Holiday:        isHoliday,
		Night:          cal.Night,
		RequiredGuards: input.RequiredGuards,
		Status:         db.ShiftStatusDraft,
		ApprovalStatus: db.ApprovalStatusPending,
		ContractID:     input.ContractID,
	}

	if err := store.InsertShift(ctx, shift); err != nil {
		if errors.Is(err, db.ErrShiftWindowTaken) {
			// A concurrent creation won the race between our conflict check
			// and the insert; report it the same way as step 2.
			current, listErr := store.ListShiftsForDate(ctx, input.LocationID, date)
			if listErr != nil {
				return nil, schedule.NewOverlapError(nil)
			}
			return nil, schedule.NewOverlapError(schedule.FindOverlaps(current, window, ""))
		}
		return nil, fmt.Errorf("failed to insert shift: %w", err)
	}

	logger.Info("Shift created",
		zap.String("shift_id", shift.ID),
		zap.String("location_id", shift.LocationID),
		zap.Bool("night", shift.Night),
		zap.Bool("shortfall", shortfall))

	// Step 6: notify, fire-and-forget. A notification failure never fails
	// the operation.
	if notifier != nil {
		if err := notifier.NotifyShiftCreated(ctx, shift); err != nil {
			logger.Warn("Shift creation notice failed", zap.String("shift_id", shift.ID), zap.Error(err))
		}
	}

	return &CreateShiftResult{Shift: shift, Availability: avail, Shortfall: shortfall}, nil
}
