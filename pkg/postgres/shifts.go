package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/aegisops/rosterd/pkg/db"
)

// Postgres error code raised when the shift window exclusion constraint
// rejects an insert.
const exclusionViolationCode = "23P01"

const shiftColumns = `
	s.id, s.location_id, s.shift_date, s.start_at, s.end_at,
	s.day_of_week, s.iso_week, s.quarter, s.is_weekend, s.is_holiday, s.is_night,
	s.required_guards,
	(SELECT COUNT(*) FROM shift_assignment a WHERE a.shift_id = s.id AND a.status = 'ACTIVE'),
	s.status, s.approval_status, s.contract_id, COALESCE(s.schedule_id, ''), s.created_at`

func scanShift(row pgx.Row) (*db.Shift, error) {
	var s db.Shift
	err := row.Scan(
		&s.ID, &s.LocationID, &s.Date, &s.Start, &s.End,
		&s.DayOfWeek, &s.ISOWeek, &s.Quarter, &s.Weekend, &s.Holiday, &s.Night,
		&s.RequiredGuards, &s.AssignedGuards,
		&s.Status, &s.ApprovalStatus, &s.ContractID, &s.ScheduleID, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListShiftsForDate retrieves all shifts at a location on a calendar day,
// terminal ones included.
func (d *DB) ListShiftsForDate(ctx context.Context, locationID string, date time.Time) ([]db.Shift, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT `+shiftColumns+`
		FROM shift s
		WHERE s.location_id = $1 AND s.shift_date = $2
		ORDER BY s.start_at
	`, locationID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to query shifts: %w", err)
	}
	defer rows.Close()

	var shifts []db.Shift
	for rows.Next() {
		s, err := scanShift(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan shift: %w", err)
		}
		shifts = append(shifts, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating shifts: %w", err)
	}

	return shifts, nil
}

// GetShift retrieves a single shift by ID. Returns db.ErrNotFound when no
// such shift exists.
func (d *DB) GetShift(ctx context.Context, id string) (*db.Shift, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT `+shiftColumns+`
		FROM shift s
		WHERE s.id = $1
	`, id)

	s, err := scanShift(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get shift %s: %w", id, err)
	}
	return s, nil
}

// InsertShift persists a new shift. The shift table carries an exclusion
// constraint over (location, window) for non-terminal shifts, so two
// concurrent writers racing for the same slot cannot both succeed: the
// loser gets db.ErrShiftWindowTaken.
func (d *DB) InsertShift(ctx context.Context, shift *db.Shift) error {
	var scheduleID *string
	if shift.ScheduleID != "" {
		scheduleID = &shift.ScheduleID
	}

	_, err := d.pool.Exec(ctx, `
		INSERT INTO shift (
			id, location_id, shift_date, start_at, end_at,
			day_of_week, iso_week, quarter, is_weekend, is_holiday, is_night,
			required_guards, status, approval_status, contract_id, schedule_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`,
		shift.ID, shift.LocationID, shift.Date, shift.Start, shift.End,
		shift.DayOfWeek, shift.ISOWeek, shift.Quarter, shift.Weekend, shift.Holiday, shift.Night,
		shift.RequiredGuards, shift.Status, shift.ApprovalStatus, shift.ContractID, scheduleID,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == exclusionViolationCode {
			return db.ErrShiftWindowTaken
		}
		return fmt.Errorf("failed to insert shift: %w", err)
	}
	return nil
}

// ShiftExistsForSchedule reports whether a shift already exists for the
// exact (contract, schedule, date) triple, regardless of status.
func (d *DB) ShiftExistsForSchedule(ctx context.Context, contractID, scheduleID string, date time.Time) (bool, error) {
	var exists bool
	err := d.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM shift
			WHERE contract_id = $1 AND schedule_id = $2 AND shift_date = $3
		)
	`, contractID, scheduleID, date).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check shift existence: %w", err)
	}
	return exists, nil
}

// CancelShift marks a shift cancelled. Cancelled shifts drop out of the
// exclusion constraint, freeing their window immediately.
func (d *DB) CancelShift(ctx context.Context, id string) error {
	tag, err := d.pool.Exec(ctx, `
		UPDATE shift SET status = 'CANCELLED' WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("failed to cancel shift %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}
