package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/teambition/rrule-go"
	"go.uber.org/zap"

	"github.com/aegisops/rosterd/pkg/bus"
	"github.com/aegisops/rosterd/pkg/core/schedule"
	"github.com/aegisops/rosterd/pkg/db"
)

// Skip reasons recorded in generation reports.
const (
	SkipReasonAlreadyExists  = "already_exists"
	SkipReasonPublicHoliday  = "public_holiday"
	SkipReasonLocationClosed = "location_closed"
	SkipReasonWindowTaken    = "window_taken"
)

// Generation run statuses.
const (
	GenerationStatusCompleted  = "COMPLETED"
	GenerationStatusWithErrors = "COMPLETED_WITH_ERRORS"
)

// ErrGenerationInProgress is returned when another generation run holds
// the run lock. The caller simply tries again later; the idempotency
// guard is a secondary defense, not a substitute for the lock.
var ErrGenerationInProgress = errors.New("shift generation already in progress")

// GenerationStore defines the persistence the generation job needs.
type GenerationStore interface {
	ShiftExistsForSchedule(ctx context.Context, contractID, scheduleID string, date time.Time) (bool, error)
	InsertShift(ctx context.Context, shift *db.Shift) error
	ListContractIDs(ctx context.Context) ([]string, error)
}

// EventPublisher emits outbound audit events. Implemented by
// bus.Publisher.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event string, payload any) error
}

// GenerationReport summarizes one contract's generation run. It is
// emitted as an audit event and otherwise discardable.
type GenerationReport struct {
	ContractID      string
	CreatedShiftIDs []string
	CreatedCount    int
	SkippedCount    int
	SkipReasons     []string
	Errors          []string
	Duration        time.Duration
	Status          string
}

// Generator derives shifts from contract schedules within a look-ahead
// window and creates the missing ones idempotently. Re-running it over an
// already processed window creates nothing: existence of the exact
// (schedule, date) pair is the guard, no run ledger is kept.
type Generator struct {
	store     GenerationStore
	locker    db.RunLocker
	gateway   QueryGateway
	publisher EventPublisher
	logger    *zap.Logger

	lookAheadDays int
}

// NewGenerator creates the generation job. lookAheadDays bounds how far
// past tomorrow shifts are derived.
func NewGenerator(store GenerationStore, locker db.RunLocker, gateway QueryGateway, publisher EventPublisher, logger *zap.Logger, lookAheadDays int) *Generator {
	if lookAheadDays <= 0 {
		lookAheadDays = 14
	}
	return &Generator{
		store:         store,
		locker:        locker,
		gateway:       gateway,
		publisher:     publisher,
		logger:        logger,
		lookAheadDays: lookAheadDays,
	}
}

// Run executes one generation pass over every known contract. The whole
// pass runs under the generation lock so a scheduled run and a manual
// trigger cannot interleave; a second caller gets ErrGenerationInProgress.
func (g *Generator) Run(ctx context.Context) ([]GenerationReport, error) {
	release, acquired, err := g.locker.AcquireGenerationLock(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire generation lock: %w", err)
	}
	if !acquired {
		g.logger.Warn("Skipping generation run, lock held by another run")
		return nil, ErrGenerationInProgress
	}
	defer release()

	contractIDs, err := g.store.ListContractIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list contracts: %w", err)
	}

	g.logger.Info("Starting generation run",
		zap.Int("contracts", len(contractIDs)),
		zap.Int("look_ahead_days", g.lookAheadDays))

	reports := make([]GenerationReport, 0, len(contractIDs))
	for _, contractID := range contractIDs {
		report := g.runContract(ctx, contractID)
		if report == nil {
			continue
		}
		g.publishReport(ctx, report)
		reports = append(reports, *report)
	}
	return reports, nil
}

// RunContract executes a generation pass for a single contract, under the
// same run lock as a full pass.
func (g *Generator) RunContract(ctx context.Context, contractID string) (*GenerationReport, error) {
	release, acquired, err := g.locker.AcquireGenerationLock(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire generation lock: %w", err)
	}
	if !acquired {
		return nil, ErrGenerationInProgress
	}
	defer release()

	report := g.runContract(ctx, contractID)
	if report == nil {
		return nil, nil
	}
	g.publishReport(ctx, report)
	return report, nil
}

// runContract derives and creates this contract's missing shifts.
// Returns nil when the contract is not flagged for auto-generation.
// Per-(schedule, date) failures land in the report's error list and never
// abort the rest of the run.
func (g *Generator) runContract(ctx context.Context, contractID string) *GenerationReport {
	started := time.Now()
	report := &GenerationReport{ContractID: contractID, Status: GenerationStatusCompleted}

	// Contract terms are fetched live every run, fail-closed.
	contract, err := fetchContract(ctx, g.gateway, contractID)
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
		report.Status = GenerationStatusWithErrors
		report.Duration = time.Since(started)
		return report
	}
	if !contract.AutoGenerateShifts {
		g.logger.Debug("Contract not flagged for auto-generation", zap.String("contract_id", contractID))
		return nil
	}

	schedules, err := g.gateway.GetContractShiftSchedules(ctx, contractID)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("schedule lookup failed: %v", err))
		report.Status = GenerationStatusWithErrors
		report.Duration = time.Since(started)
		return report
	}

	windowStart := schedule.DateOnly(time.Now()).AddDate(0, 0, 1)
	windowEnd := windowStart.AddDate(0, 0, g.lookAheadDays)
	// Clamp to the contract period, bounds inclusive.
	if ps := schedule.DateOnly(contract.StartDate); windowStart.Before(ps) {
		windowStart = ps
	}
	if pe := schedule.DateOnly(contract.EndDate).AddDate(0, 0, 1); windowEnd.After(pe) {
		windowEnd = pe
	}
	if !windowStart.Before(windowEnd) {
		g.logger.Debug("Contract period outside the look-ahead window", zap.String("contract_id", contractID))
		report.Duration = time.Since(started)
		return report
	}

	holidays := map[time.Time]bool{}
	for _, sched := range schedules {
		g.runSchedule(ctx, contract, sched, windowStart, windowEnd, holidays, report)
	}

	if len(report.Errors) > 0 {
		report.Status = GenerationStatusWithErrors
	}
	report.Duration = time.Since(started)

	g.logger.Info("Contract generation finished",
		zap.String("contract_id", contractID),
		zap.Int("created", report.CreatedCount),
		zap.Int("skipped", report.SkippedCount),
		zap.Int("errors", len(report.Errors)),
		zap.Duration("duration", report.Duration))

	return report
}

// runSchedule expands one recurring schedule over [windowStart, windowEnd)
// and creates the missing shifts.
func (g *Generator) runSchedule(
	ctx context.Context,
	contract *bus.Contract,
	sched bus.ShiftSchedule,
	windowStart, windowEnd time.Time,
	holidays map[time.Time]bool,
	report *GenerationReport,
) {
	rule, err := rrule.StrToRRule(sched.RRule)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("schedule %s: invalid rrule: %v", sched.ScheduleID, err))
		return
	}
	rule.DTStart(windowStart)

	// Between's range is inclusive; windowEnd is exclusive.
	for _, occurrence := range rule.Between(windowStart, windowEnd.Add(-time.Second), true) {
		date := schedule.DateOnly(occurrence)
		if err := g.generateOne(ctx, contract, sched, date, holidays, report); err != nil {
			report.Errors = append(report.Errors,
				fmt.Sprintf("schedule %s date %s: %v", sched.ScheduleID, date.Format("2006-01-02"), err))
		}
	}
}

// generateOne creates the shift for one (schedule, date) pair unless a
// skip rule applies.
func (g *Generator) generateOne(
	ctx context.Context,
	contract *bus.Contract,
	sched bus.ShiftSchedule,
	date time.Time,
	holidays map[time.Time]bool,
	report *GenerationReport,
) error {
	isHoliday, cached := holidays[date]
	if !cached {
		isHoliday, _ = checkHoliday(ctx, g.gateway, g.logger, date)
		holidays[date] = isHoliday
	}
	if isHoliday && contract.ExcludeHolidays {
		g.skip(report, date, SkipReasonPublicHoliday)
		return nil
	}

	if closed, reason := checkLocationClosed(ctx, g.gateway, g.logger, sched.LocationID, date); closed {
		g.logger.Debug("Location closed on date",
			zap.String("location_id", sched.LocationID),
			zap.Time("date", date),
			zap.String("reason", reason))
		g.skip(report, date, SkipReasonLocationClosed)
		return nil
	}

	// Idempotency guard: the exact (contract, schedule, date) pair must
	// not exist yet, regardless of status.
	exists, err := g.store.ShiftExistsForSchedule(ctx, contract.ContractID, sched.ScheduleID, date)
	if err != nil {
		return fmt.Errorf("existence check failed: %w", err)
	}
	if exists {
		g.skip(report, date, SkipReasonAlreadyExists)
		return nil
	}

	window, err := schedule.BuildWindow(date, sched.StartTime, sched.EndTime)
	if err != nil {
		return err
	}
	cal := schedule.DeriveCalendar(date, window)

	shift := &db.Shift{
		ID:             uuid.New().String(),
		LocationID:     sched.LocationID,
		Date:           date,
		Start:          window.Start,
		End:            window.End,
		DayOfWeek:      cal.DayOfWeek,
		ISOWeek:        cal.ISOWeek,
		Quarter:        cal.Quarter,
		Weekend:        cal.Weekend,
		Holiday:        isHoliday,
		Night:          cal.Night,
		RequiredGuards: sched.RequiredGuards,
		Status:         db.ShiftStatusDraft,
		ApprovalStatus: db.ApprovalStatusPending,
		ContractID:     contract.ContractID,
		ScheduleID:     sched.ScheduleID,
	}

	if err := g.store.InsertShift(ctx, shift); err != nil {
		if errors.Is(err, db.ErrShiftWindowTaken) {
			// A live creation request got the window first; the constraint
			// arbitrates, the generator just records the skip.
			g.skip(report, date, SkipReasonWindowTaken)
			return nil
		}
		return fmt.Errorf("insert failed: %w", err)
	}

	report.CreatedShiftIDs = append(report.CreatedShiftIDs, shift.ID)
	report.CreatedCount++
	return nil
}

func (g *Generator) skip(report *GenerationReport, date time.Time, reason string) {
	report.SkippedCount++
	report.SkipReasons = append(report.SkipReasons, fmt.Sprintf("%s:%s", date.Format("2006-01-02"), reason))
}

// publishReport emits the audit event; a publish failure only logs.
func (g *Generator) publishReport(ctx context.Context, report *GenerationReport) {
	event := bus.ShiftsGeneratedEvent{
		ContractID:           report.ContractID,
		GenerationDate:       time.Now().UTC(),
		ShiftsCreatedCount:   report.CreatedCount,
		ShiftsSkippedCount:   report.SkippedCount,
		SkipReasons:          report.SkipReasons,
		Status:               report.Status,
		CreatedShiftIDs:      report.CreatedShiftIDs,
		GenerationDurationMs: report.Duration.Milliseconds(),
	}
	if err := g.publisher.PublishEvent(ctx, bus.EventShiftsGenerated, event); err != nil {
		g.logger.Warn("Failed to publish generation report",
			zap.String("contract_id", report.ContractID),
			zap.Error(err))
	}
}
