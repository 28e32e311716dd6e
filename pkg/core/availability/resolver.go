package availability

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aegisops/rosterd/pkg/core/schedule"
	"github.com/aegisops/rosterd/pkg/db"
)

// Status classifies a guard for a candidate shift window.
type Status string

const (
	StatusAvailable Status = "AVAILABLE"
	StatusBusy      Status = "BUSY"
	StatusOnLeave   Status = "ON_LEAVE"
)

// GuardAvailability is the per-guard classification.
type GuardAvailability struct {
	GuardCode string
	GuardName string
	Status    Status
	// BusyShiftID names one shift the guard is already booked on when
	// Status is BUSY.
	BusyShiftID string
}

// Result holds the classification of every active guard in the directory
// mirror plus the aggregate counts. Available+Busy+OnLeave always equals
// len(Guards).
type Result struct {
	Guards    []GuardAvailability
	Available int
	Busy      int
	OnLeave   int
}

// Store defines the data the resolver reads.
type Store interface {
	ListActiveGuards(ctx context.Context) ([]db.GuardEntry, error)
	ListBookingsOverlapping(ctx context.Context, start, end time.Time) ([]db.GuardBooking, error)
	ListApprovedAbsences(ctx context.Context, date time.Time) ([]db.Absence, error)
}

// Resolve classifies every active guard for the candidate window:
//   - ON_LEAVE when an approved absence covers the shift date
//   - BUSY when any non-cancelled assignment's shift window intersects the
//     candidate window, at any location (a guard cannot be double-booked
//     anywhere, not just at the target location)
//   - AVAILABLE otherwise
func Resolve(ctx context.Context, store Store, logger *zap.Logger, locationID string, date time.Time, window schedule.Window) (*Result, error) {
	guards, err := store.ListActiveGuards(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active guards: %w", err)
	}

	bookings, err := store.ListBookingsOverlapping(ctx, window.Start, window.End)
	if err != nil {
		return nil, fmt.Errorf("failed to list overlapping bookings: %w", err)
	}

	absences, err := store.ListApprovedAbsences(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list approved absences: %w", err)
	}

	onLeave := make(map[string]bool, len(absences))
	for _, a := range absences {
		if a.Approved && a.Covers(date) {
			onLeave[a.GuardCode] = true
		}
	}

	busyShift := make(map[string]string, len(bookings))
	for _, b := range bookings {
		booked := schedule.Window{Start: b.Start, End: b.End}
		if window.Overlaps(booked) {
			if _, seen := busyShift[b.GuardCode]; !seen {
				busyShift[b.GuardCode] = b.ShiftID
			}
		}
	}

	result := &Result{Guards: make([]GuardAvailability, 0, len(guards))}
	for _, g := range guards {
		entry := GuardAvailability{GuardCode: g.Code, GuardName: g.Name}
		switch {
		case onLeave[g.Code]:
			entry.Status = StatusOnLeave
			result.OnLeave++
		case busyShift[g.Code] != "":
			entry.Status = StatusBusy
			entry.BusyShiftID = busyShift[g.Code]
			result.Busy++
		default:
			entry.Status = StatusAvailable
			result.Available++
		}
		result.Guards = append(result.Guards, entry)
	}

	logger.Debug("Resolved guard availability",
		zap.String("location_id", locationID),
		zap.Time("date", date),
		zap.Int("available", result.Available),
		zap.Int("busy", result.Busy),
		zap.Int("on_leave", result.OnLeave))

	return result, nil
}
