package postgres

import (
	"context"
	"fmt"
)

// Advisory lock key for the shift generation job. Session-scoped, so the
// lock dies with the connection if the process crashes mid-run.
const generationLockKey = 7340351

// AcquireGenerationLock takes the generation advisory lock on a dedicated
// connection. The lock is session-level: it must be released on the same
// connection, so the connection is pinned until release is called.
func (d *DB) AcquireGenerationLock(ctx context.Context) (func(), bool, error) {
	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire connection for generation lock: %w", err)
	}

	var locked bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, generationLockKey).Scan(&locked); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("failed to take generation lock: %w", err)
	}
	if !locked {
		conn.Release()
		return func() {}, false, nil
	}

	release := func() {
		// Unlock on the pinned connection; dropping the connection would
		// release the lock anyway, but unlocking keeps the pool clean.
		_, _ = conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, generationLockKey)
		conn.Release()
	}
	return release, true, nil
}
