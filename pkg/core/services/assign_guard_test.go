package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aegisops/rosterd/pkg/core/schedule"
	"github.com/aegisops/rosterd/pkg/db"
)

// assignMock implements AssignGuardStore and CancelShiftStore
type assignMock struct {
	shifts      map[string]*db.Shift
	guards      []db.GuardEntry
	bookings    []db.GuardBooking
	absences    []db.Absence
	assignments []*db.Assignment
	cancelled   []string
}

func (m *assignMock) GetShift(ctx context.Context, id string) (*db.Shift, error) {
	shift, ok := m.shifts[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return shift, nil
}

func (m *assignMock) InsertAssignment(ctx context.Context, assignment *db.Assignment) error {
	m.assignments = append(m.assignments, assignment)
	return nil
}

func (m *assignMock) CancelShift(ctx context.Context, id string) error {
	m.cancelled = append(m.cancelled, id)
	m.shifts[id].Status = db.ShiftStatusCancelled
	return nil
}

func (m *assignMock) ListActiveGuards(ctx context.Context) ([]db.GuardEntry, error) {
	return m.guards, nil
}

func (m *assignMock) ListBookingsOverlapping(ctx context.Context, start, end time.Time) ([]db.GuardBooking, error) {
	return m.bookings, nil
}

func (m *assignMock) ListApprovedAbsences(ctx context.Context, date time.Time) ([]db.Absence, error) {
	return m.absences, nil
}

func assignableShift() *db.Shift {
	date := schedule.DateOnly(time.Now()).AddDate(0, 0, 3)
	return &db.Shift{
		ID:             "SH1",
		LocationID:     "L1",
		Date:           date,
		Start:          date.Add(8 * time.Hour),
		End:            date.Add(16 * time.Hour),
		RequiredGuards: 1,
		Status:         db.ShiftStatusDraft,
		ApprovalStatus: db.ApprovalStatusPending,
	}
}

func TestAssignGuard_AvailableGuardIsAssigned(t *testing.T) {
	shift := assignableShift()
	store := &assignMock{
		shifts: map[string]*db.Shift{"SH1": shift},
		guards: []db.GuardEntry{{Code: "G1", Name: "Asha", Available: true}},
	}

	assignment, err := AssignGuard(context.Background(), store, zap.NewNop(), "SH1", "G1")
	require.NoError(t, err)

	assert.Equal(t, "SH1", assignment.ShiftID)
	assert.Equal(t, "G1", assignment.GuardCode)
	assert.Equal(t, db.AssignmentStatusActive, assignment.Status)
	assert.NotEmpty(t, assignment.ID)
	require.Len(t, store.assignments, 1)
}

func TestAssignGuard_BusyGuardIsRejected(t *testing.T) {
	shift := assignableShift()
	store := &assignMock{
		shifts: map[string]*db.Shift{"SH1": shift},
		guards: []db.GuardEntry{{Code: "G1", Available: true}},
		bookings: []db.GuardBooking{{
			GuardCode:  "G1",
			ShiftID:    "SH-other",
			LocationID: "L9",
			Start:      shift.Start.Add(-time.Hour),
			End:        shift.Start.Add(2 * time.Hour),
		}},
	}

	_, err := AssignGuard(context.Background(), store, zap.NewNop(), "SH1", "G1")

	var verr *schedule.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, schedule.CodeGuardUnavailable, verr.Code)
	assert.Empty(t, store.assignments)
}

func TestAssignGuard_OnLeaveGuardIsRejected(t *testing.T) {
	shift := assignableShift()
	store := &assignMock{
		shifts: map[string]*db.Shift{"SH1": shift},
		guards: []db.GuardEntry{{Code: "G1", Available: true}},
		absences: []db.Absence{{
			ID:        "A1",
			GuardCode: "G1",
			FromDate:  shift.Date.AddDate(0, 0, -1),
			ToDate:    shift.Date.AddDate(0, 0, 1),
			Approved:  true,
		}},
	}

	_, err := AssignGuard(context.Background(), store, zap.NewNop(), "SH1", "G1")

	var verr *schedule.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, schedule.CodeGuardUnavailable, verr.Code)
}

func TestAssignGuard_UnknownGuardIsRejected(t *testing.T) {
	store := &assignMock{
		shifts: map[string]*db.Shift{"SH1": assignableShift()},
		guards: []db.GuardEntry{{Code: "G1", Available: true}},
	}

	_, err := AssignGuard(context.Background(), store, zap.NewNop(), "SH1", "G-nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "G-nope")
}

func TestAssignGuard_TerminalShiftIsRejected(t *testing.T) {
	shift := assignableShift()
	shift.Status = db.ShiftStatusCancelled
	store := &assignMock{
		shifts: map[string]*db.Shift{"SH1": shift},
		guards: []db.GuardEntry{{Code: "G1", Available: true}},
	}

	_, err := AssignGuard(context.Background(), store, zap.NewNop(), "SH1", "G1")
	require.Error(t, err)
	assert.Empty(t, store.assignments)
}

func TestAssignGuard_MissingShift(t *testing.T) {
	store := &assignMock{shifts: map[string]*db.Shift{}}

	_, err := AssignGuard(context.Background(), store, zap.NewNop(), "SH-missing", "G1")
	assert.True(t, errors.Is(err, db.ErrNotFound))
}

func TestCancelShift_SoftTerminates(t *testing.T) {
	shift := assignableShift()
	store := &assignMock{shifts: map[string]*db.Shift{"SH1": shift}}

	err := CancelShift(context.Background(), store, zap.NewNop(), "SH1")
	require.NoError(t, err)
	assert.Equal(t, []string{"SH1"}, store.cancelled)
	assert.Equal(t, db.ShiftStatusCancelled, shift.Status)
}

func TestCancelShift_AlreadyTerminalIsRejected(t *testing.T) {
	shift := assignableShift()
	shift.Status = db.ShiftStatusCompleted
	store := &assignMock{shifts: map[string]*db.Shift{"SH1": shift}}

	err := CancelShift(context.Background(), store, zap.NewNop(), "SH1")
	require.Error(t, err)
	assert.Empty(t, store.cancelled)
}
