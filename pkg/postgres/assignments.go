package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/aegisops/rosterd/pkg/db"
)

// ListBookingsOverlapping retrieves bookings whose shift window intersects
// [start, end), across all locations. Cancelled and declined assignments
// and terminal shifts do not count as bookings.
func (d *DB) ListBookingsOverlapping(ctx context.Context, start, end time.Time) ([]db.GuardBooking, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT a.guard_code, s.id, s.location_id, s.start_at, s.end_at
		FROM shift_assignment a
		JOIN shift s ON s.id = a.shift_id
		WHERE a.status = 'ACTIVE'
		  AND s.status NOT IN ('CANCELLED', 'COMPLETED')
		  AND s.start_at < $2 AND $1 < s.end_at
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query overlapping bookings: %w", err)
	}
	defer rows.Close()

	var bookings []db.GuardBooking
	for rows.Next() {
		var b db.GuardBooking
		if err := rows.Scan(&b.GuardCode, &b.ShiftID, &b.LocationID, &b.Start, &b.End); err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bookings: %w", err)
	}

	return bookings, nil
}

// InsertAssignment persists a guard-to-shift assignment.
func (d *DB) InsertAssignment(ctx context.Context, assignment *db.Assignment) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO shift_assignment (id, shift_id, guard_code, status)
		VALUES ($1, $2, $3, $4)
	`, assignment.ID, assignment.ShiftID, assignment.GuardCode, assignment.Status)
	if err != nil {
		return fmt.Errorf("failed to insert assignment: %w", err)
	}
	return nil
}
