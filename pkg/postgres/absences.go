package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/aegisops/rosterd/pkg/db"
)

// UpsertAbsence writes an approved absence, version-gated.
func (d *DB) UpsertAbsence(ctx context.Context, absence *db.Absence) (bool, error) {
	tag, err := d.pool.Exec(ctx, `
		INSERT INTO guard_absence (id, guard_code, from_date, to_date, approved, version)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			guard_code = EXCLUDED.guard_code,
			from_date = EXCLUDED.from_date,
			to_date = EXCLUDED.to_date,
			approved = EXCLUDED.approved,
			version = EXCLUDED.version
		WHERE EXCLUDED.version > guard_absence.version
	`, absence.ID, absence.GuardCode, absence.FromDate, absence.ToDate, absence.Approved, absence.Version)
	if err != nil {
		return false, fmt.Errorf("failed to upsert absence %s: %w", absence.ID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// RevokeAbsence clears the approved flag on an absence, version-gated.
func (d *DB) RevokeAbsence(ctx context.Context, id string, version int64) (bool, error) {
	tag, err := d.pool.Exec(ctx, `
		UPDATE guard_absence
		SET approved = FALSE, version = $2
		WHERE id = $1 AND version < $2
	`, id, version)
	if err != nil {
		return false, fmt.Errorf("failed to revoke absence %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListApprovedAbsences retrieves the approved absences covering a calendar
// day. Both bounds are inclusive.
func (d *DB) ListApprovedAbsences(ctx context.Context, date time.Time) ([]db.Absence, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, guard_code, from_date, to_date, approved, version
		FROM guard_absence
		WHERE approved AND from_date <= $1 AND $1 <= to_date
	`, date)
	if err != nil {
		return nil, fmt.Errorf("failed to query approved absences: %w", err)
	}
	defer rows.Close()

	var absences []db.Absence
	for rows.Next() {
		var a db.Absence
		if err := rows.Scan(&a.ID, &a.GuardCode, &a.FromDate, &a.ToDate, &a.Approved, &a.Version); err != nil {
			return nil, fmt.Errorf("failed to scan absence: %w", err)
		}
		absences = append(absences, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating absences: %w", err)
	}

	return absences, nil
}
