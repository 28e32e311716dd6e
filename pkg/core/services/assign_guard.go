package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aegisops/rosterd/pkg/core/availability"
	"github.com/aegisops/rosterd/pkg/core/schedule"
	"github.com/aegisops/rosterd/pkg/db"
)

// AssignGuardStore defines the persistence guard assignment needs.
type AssignGuardStore interface {
	GetShift(ctx context.Context, id string) (*db.Shift, error)
	InsertAssignment(ctx context.Context, assignment *db.Assignment) error
	availability.Store
}

// AssignGuard books a guard onto a shift after re-checking that the guard
// is actually available for the shift's window. Busy or on-leave guards
// are rejected with a typed validation error.
func AssignGuard(ctx context.Context, store AssignGuardStore, logger *zap.Logger, shiftID, guardCode string) (*db.Assignment, error) {
	shift, err := store.GetShift(ctx, shiftID)
	if err != nil {
		return nil, fmt.Errorf("failed to load shift %s: %w", shiftID, err)
	}
	if shift.Status.Terminal() {
		return nil, fmt.Errorf("shift %s is %s and cannot be assigned", shiftID, shift.Status)
	}

	window := schedule.ShiftWindow(shift)
	avail, err := availability.Resolve(ctx, store, logger, shift.LocationID, shift.Date, window)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve guard availability: %w", err)
	}

	var entry *availability.GuardAvailability
	for i := range avail.Guards {
		if avail.Guards[i].GuardCode == guardCode {
			entry = &avail.Guards[i]
			break
		}
	}
	if entry == nil {
		return nil, fmt.Errorf("guard %s is not an active directory entry", guardCode)
	}
	if entry.Status != availability.StatusAvailable {
		return nil, schedule.NewGuardUnavailableError(guardCode, string(entry.Status))
	}

	assignment := &db.Assignment{
		ID:        uuid.New().String(),
		ShiftID:   shift.ID,
		GuardCode: guardCode,
		Status:    db.AssignmentStatusActive,
	}
	if err := store.InsertAssignment(ctx, assignment); err != nil {
		return nil, fmt.Errorf("failed to insert assignment: %w", err)
	}

	logger.Info("Guard assigned to shift",
		zap.String("shift_id", shift.ID),
		zap.String("guard_code", guardCode))

	return assignment, nil
}

// CancelShiftStore defines the persistence shift cancellation needs.
type CancelShiftStore interface {
	GetShift(ctx context.Context, id string) (*db.Shift, error)
	CancelShift(ctx context.Context, id string) error
}

// CancelShift soft-terminates a shift. A cancelled shift keeps its record
// but stops occupying its window, so the slot frees up immediately.
func CancelShift(ctx context.Context, store CancelShiftStore, logger *zap.Logger, shiftID string) error {
	shift, err := store.GetShift(ctx, shiftID)
	if err != nil {
		return fmt.Errorf("failed to load shift %s: %w", shiftID, err)
	}
	if shift.Status.Terminal() {
		return fmt.Errorf("shift %s is already %s", shiftID, shift.Status)
	}

	if err := store.CancelShift(ctx, shiftID); err != nil {
		return fmt.Errorf("failed to cancel shift %s: %w", shiftID, err)
	}

	logger.Info("Shift cancelled", zap.String("shift_id", shiftID))
	return nil
}
