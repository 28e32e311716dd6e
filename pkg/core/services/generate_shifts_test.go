package services

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aegisops/rosterd/pkg/bus"
	"github.com/aegisops/rosterd/pkg/core/schedule"
	"github.com/aegisops/rosterd/pkg/db"
)

// generationMock implements a test double for GenerationStore
type generationMock struct {
	contractIDs []string
	existing    map[string]bool
	inserted    []*db.Shift
	insertErr   error
}

func scheduleKey(contractID, scheduleID string, date time.Time) string {
	return fmt.Sprintf("%s|%s|%s", contractID, scheduleID, date.Format("2006-01-02"))
}

func (m *generationMock) ShiftExistsForSchedule(ctx context.Context, contractID, scheduleID string, date time.Time) (bool, error) {
	return m.existing[scheduleKey(contractID, scheduleID, date)], nil
}

func (m *generationMock) InsertShift(ctx context.Context, shift *db.Shift) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.inserted = append(m.inserted, shift)
	if m.existing == nil {
		m.existing = map[string]bool{}
	}
	m.existing[scheduleKey(shift.ContractID, shift.ScheduleID, shift.Date)] = true
	return nil
}

func (m *generationMock) ListContractIDs(ctx context.Context) ([]string, error) {
	return m.contractIDs, nil
}

// mockLocker implements a test double for db.RunLocker
type mockLocker struct {
	held     bool
	acquired int
	released int
}

func (m *mockLocker) AcquireGenerationLock(ctx context.Context) (func(), bool, error) {
	if m.held {
		return func() {}, false, nil
	}
	m.acquired++
	m.held = true
	return func() {
		m.released++
		m.held = false
	}, true, nil
}

// capturePublisher records published events
type capturePublisher struct {
	events []bus.ShiftsGeneratedEvent
}

func (p *capturePublisher) PublishEvent(ctx context.Context, event string, payload any) error {
	if ev, ok := payload.(bus.ShiftsGeneratedEvent); ok {
		p.events = append(p.events, ev)
	}
	return nil
}

// nextWeekday returns the first date strictly after today matching the weekday.
func nextWeekday(day time.Weekday) time.Time {
	d := schedule.DateOnly(time.Now()).AddDate(0, 0, 1)
	for d.Weekday() != day {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

func autoGenContract(id string) *bus.Contract {
	today := schedule.DateOnly(time.Now())
	return &bus.Contract{
		ContractID:         id,
		ContractNumber:     "CN-" + id,
		Status:             "ACTIVE",
		StartDate:          today.AddDate(0, -1, 0),
		EndDate:            today.AddDate(1, 0, 0),
		AutoGenerateShifts: true,
	}
}

func mondaySchedule() bus.ShiftSchedule {
	return bus.ShiftSchedule{
		ScheduleID:     "S1",
		LocationID:     "L2",
		RRule:          "FREQ=WEEKLY;BYDAY=MO",
		StartTime:      "08:00",
		EndTime:        "16:00",
		RequiredGuards: 2,
	}
}

func TestGenerator_CreatesOneShiftPerScheduleOccurrence(t *testing.T) {
	store := &generationMock{contractIDs: []string{"C1"}}
	gw := &mockGateway{contract: autoGenContract("C1"), schedules: []bus.ShiftSchedule{mondaySchedule()}}
	publisher := &capturePublisher{}
	locker := &mockLocker{}

	// A 7-day look-ahead window contains exactly one Monday.
	gen := NewGenerator(store, locker, gw, publisher, zap.NewNop(), 7)
	reports, err := gen.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 1)

	assert.Equal(t, 1, reports[0].CreatedCount)
	assert.Equal(t, 0, reports[0].SkippedCount)
	require.Len(t, store.inserted, 1)

	shift := store.inserted[0]
	assert.Equal(t, time.Monday, shift.Date.Weekday())
	assert.Equal(t, nextWeekday(time.Monday), shift.Date)
	assert.Equal(t, "L2", shift.LocationID)
	assert.Equal(t, "C1", shift.ContractID)
	assert.Equal(t, "S1", shift.ScheduleID)
	assert.Equal(t, 2, shift.RequiredGuards)
	assert.Equal(t, db.ShiftStatusDraft, shift.Status)
	assert.Equal(t, 8*time.Hour, shift.End.Sub(shift.Start))

	assert.Equal(t, 1, locker.acquired)
	assert.Equal(t, 1, locker.released)
}

func TestGenerator_SecondRunCreatesNothing(t *testing.T) {
	store := &generationMock{contractIDs: []string{"C1"}}
	gw := &mockGateway{contract: autoGenContract("C1"), schedules: []bus.ShiftSchedule{mondaySchedule()}}
	gen := NewGenerator(store, &mockLocker{}, gw, &capturePublisher{}, zap.NewNop(), 7)

	first, err := gen.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, first[0].CreatedCount)

	second, err := gen.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second[0].CreatedCount)
	assert.Equal(t, 1, second[0].SkippedCount)
	assert.Contains(t, second[0].SkipReasons[0], SkipReasonAlreadyExists)
	assert.Len(t, store.inserted, 1)
}

func TestGenerator_SkipsClosedLocation(t *testing.T) {
	monday := nextWeekday(time.Monday)
	store := &generationMock{contractIDs: []string{"C1"}}
	gw := &mockGateway{
		contract:    autoGenContract("C1"),
		schedules:   []bus.ShiftSchedule{mondaySchedule()},
		closedDates: map[string]bool{"L2|" + dateKey(monday): true},
	}
	gen := NewGenerator(store, &mockLocker{}, gw, &capturePublisher{}, zap.NewNop(), 7)

	reports, err := gen.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 1)

	assert.Equal(t, 0, reports[0].CreatedCount)
	require.Equal(t, 1, reports[0].SkippedCount)
	assert.Contains(t, reports[0].SkipReasons[0], SkipReasonLocationClosed)
	assert.Empty(t, store.inserted)
}

func TestGenerator_SkipsHolidayWhenContractExcludesIt(t *testing.T) {
	monday := nextWeekday(time.Monday)
	contract := autoGenContract("C1")
	contract.ExcludeHolidays = true

	store := &generationMock{contractIDs: []string{"C1"}}
	gw := &mockGateway{
		contract:     contract,
		schedules:    []bus.ShiftSchedule{mondaySchedule()},
		holidayDates: map[string]bool{dateKey(monday): true},
	}
	gen := NewGenerator(store, &mockLocker{}, gw, &capturePublisher{}, zap.NewNop(), 7)

	reports, err := gen.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, reports[0].SkippedCount)
	assert.Contains(t, reports[0].SkipReasons[0], SkipReasonPublicHoliday)
	assert.Empty(t, store.inserted)
}

func TestGenerator_HolidayWithoutExclusionStillCreates(t *testing.T) {
	monday := nextWeekday(time.Monday)
	store := &generationMock{contractIDs: []string{"C1"}}
	gw := &mockGateway{
		contract:     autoGenContract("C1"),
		schedules:    []bus.ShiftSchedule{mondaySchedule()},
		holidayDates: map[string]bool{dateKey(monday): true},
	}
	gen := NewGenerator(store, &mockLocker{}, gw, &capturePublisher{}, zap.NewNop(), 7)

	reports, err := gen.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, reports[0].CreatedCount)
	assert.True(t, store.inserted[0].Holiday)
}

func TestGenerator_LockHeldReturnsError(t *testing.T) {
	gen := NewGenerator(&generationMock{}, &mockLocker{held: true}, &mockGateway{}, &capturePublisher{}, zap.NewNop(), 7)

	_, err := gen.Run(context.Background())
	assert.ErrorIs(t, err, ErrGenerationInProgress)
}

func TestGenerator_NonAutoGenerateContractIsIgnored(t *testing.T) {
	contract := autoGenContract("C1")
	contract.AutoGenerateShifts = false

	store := &generationMock{contractIDs: []string{"C1"}}
	publisher := &capturePublisher{}
	gen := NewGenerator(store, &mockLocker{}, &mockGateway{contract: contract}, publisher, zap.NewNop(), 7)

	reports, err := gen.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, reports)
	assert.Empty(t, publisher.events)
}

func TestGenerator_ContractLookupFailureIsReported(t *testing.T) {
	store := &generationMock{contractIDs: []string{"C1", "C2"}}
	gw := &mockGateway{contractErr: bus.ErrTimeout}
	publisher := &capturePublisher{}
	gen := NewGenerator(store, &mockLocker{}, gw, publisher, zap.NewNop(), 7)

	reports, err := gen.Run(context.Background())
	require.NoError(t, err)

	// Both contracts report the failure; neither aborts the run.
	require.Len(t, reports, 2)
	for _, r := range reports {
		assert.Equal(t, GenerationStatusWithErrors, r.Status)
		assert.NotEmpty(t, r.Errors)
	}
	assert.Len(t, publisher.events, 2)
}

func TestGenerator_InvalidRRuleIsIsolated(t *testing.T) {
	bad := mondaySchedule()
	bad.ScheduleID = "S-bad"
	bad.RRule = "FREQ=NONSENSE"

	store := &generationMock{contractIDs: []string{"C1"}}
	gw := &mockGateway{
		contract:  autoGenContract("C1"),
		schedules: []bus.ShiftSchedule{bad, mondaySchedule()},
	}
	gen := NewGenerator(store, &mockLocker{}, gw, &capturePublisher{}, zap.NewNop(), 7)

	reports, err := gen.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 1)

	// The bad schedule lands in the error list; the good one still ran.
	assert.Equal(t, GenerationStatusWithErrors, reports[0].Status)
	assert.Equal(t, 1, reports[0].CreatedCount)
	require.Len(t, reports[0].Errors, 1)
	assert.True(t, strings.Contains(reports[0].Errors[0], "S-bad"))
}

func TestGenerator_WindowTakenByLiveCreationIsSkip(t *testing.T) {
	store := &generationMock{contractIDs: []string{"C1"}, insertErr: db.ErrShiftWindowTaken}
	gw := &mockGateway{contract: autoGenContract("C1"), schedules: []bus.ShiftSchedule{mondaySchedule()}}
	gen := NewGenerator(store, &mockLocker{}, gw, &capturePublisher{}, zap.NewNop(), 7)

	reports, err := gen.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, reports[0].SkippedCount)
	assert.Contains(t, reports[0].SkipReasons[0], SkipReasonWindowTaken)
	assert.Equal(t, GenerationStatusCompleted, reports[0].Status)
}

func TestGenerator_PublishesAuditEvent(t *testing.T) {
	store := &generationMock{contractIDs: []string{"C1"}}
	gw := &mockGateway{contract: autoGenContract("C1"), schedules: []bus.ShiftSchedule{mondaySchedule()}}
	publisher := &capturePublisher{}
	gen := NewGenerator(store, &mockLocker{}, gw, publisher, zap.NewNop(), 7)

	_, err := gen.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, publisher.events, 1)
	ev := publisher.events[0]
	assert.Equal(t, "C1", ev.ContractID)
	assert.Equal(t, 1, ev.ShiftsCreatedCount)
	assert.Equal(t, 0, ev.ShiftsSkippedCount)
	assert.Len(t, ev.CreatedShiftIDs, 1)
	assert.Equal(t, GenerationStatusCompleted, ev.Status)
}
