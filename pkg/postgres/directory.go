package postgres

import (
	"context"
	"fmt"

	"github.com/aegisops/rosterd/pkg/db"
)

// UpsertGuard writes a guard directory entry. The write applies only when
// the carried version is strictly greater than the stored one; the boolean
// result reports whether it was applied.
func (d *DB) UpsertGuard(ctx context.Context, entry *db.GuardEntry) (bool, error) {
	tag, err := d.pool.Exec(ctx, `
		INSERT INTO guard_directory (code, name, email, phone, status, available, version, deleted_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULL, NOW())
		ON CONFLICT (code) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			status = EXCLUDED.status,
			available = EXCLUDED.available,
			version = EXCLUDED.version,
			deleted_at = NULL,
			updated_at = NOW()
		WHERE EXCLUDED.version > guard_directory.version
	`, entry.Code, entry.Name, entry.Email, entry.Phone, entry.Status, entry.Available, entry.Version)
	if err != nil {
		return false, fmt.Errorf("failed to upsert guard %s: %w", entry.Code, err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteGuard soft-deletes a guard directory entry, version-gated.
func (d *DB) DeleteGuard(ctx context.Context, code string, version int64) (bool, error) {
	tag, err := d.pool.Exec(ctx, `
		UPDATE guard_directory
		SET deleted_at = NOW(), version = $2, updated_at = NOW()
		WHERE code = $1 AND version < $2
	`, code, version)
	if err != nil {
		return false, fmt.Errorf("failed to delete guard %s: %w", code, err)
	}
	return tag.RowsAffected() > 0, nil
}

// SetGuardAvailability flips the availability flag without touching the
// rest of the entry, version-gated.
func (d *DB) SetGuardAvailability(ctx context.Context, code string, available bool, version int64) (bool, error) {
	tag, err := d.pool.Exec(ctx, `
		UPDATE guard_directory
		SET available = $2, version = $3, updated_at = NOW()
		WHERE code = $1 AND version < $3
	`, code, available, version)
	if err != nil {
		return false, fmt.Errorf("failed to set guard %s availability: %w", code, err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListActiveGuards retrieves every guard entry that is neither deleted nor
// marked unavailable.
func (d *DB) ListActiveGuards(ctx context.Context) ([]db.GuardEntry, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT code, name, email, phone, status, available, version, deleted_at, updated_at
		FROM guard_directory
		WHERE deleted_at IS NULL AND available
		ORDER BY code
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query active guards: %w", err)
	}
	defer rows.Close()

	var guards []db.GuardEntry
	for rows.Next() {
		var g db.GuardEntry
		if err := rows.Scan(&g.Code, &g.Name, &g.Email, &g.Phone, &g.Status, &g.Available, &g.Version, &g.DeletedAt, &g.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan guard: %w", err)
		}
		guards = append(guards, g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating guards: %w", err)
	}

	return guards, nil
}

// UpsertManager writes a manager directory entry, version-gated like
// UpsertGuard.
func (d *DB) UpsertManager(ctx context.Context, entry *db.ManagerEntry) (bool, error) {
	tag, err := d.pool.Exec(ctx, `
		INSERT INTO manager_directory (code, name, email, phone, status, version, deleted_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULL, NOW())
		ON CONFLICT (code) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			status = EXCLUDED.status,
			version = EXCLUDED.version,
			deleted_at = NULL,
			updated_at = NOW()
		WHERE EXCLUDED.version > manager_directory.version
	`, entry.Code, entry.Name, entry.Email, entry.Phone, entry.Status, entry.Version)
	if err != nil {
		return false, fmt.Errorf("failed to upsert manager %s: %w", entry.Code, err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteManager soft-deletes a manager directory entry, version-gated.
func (d *DB) DeleteManager(ctx context.Context, code string, version int64) (bool, error) {
	tag, err := d.pool.Exec(ctx, `
		UPDATE manager_directory
		SET deleted_at = NOW(), version = $2, updated_at = NOW()
		WHERE code = $1 AND version < $2
	`, code, version)
	if err != nil {
		return false, fmt.Errorf("failed to delete manager %s: %w", code, err)
	}
	return tag.RowsAffected() > 0, nil
}
