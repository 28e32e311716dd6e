package postgres

import (
	"context"
	"fmt"
)

// UpsertContractRef records a contract ID known to the scheduler,
// version-gated. Only the reference is kept; contract terms are always
// fetched live from the contract service.
func (d *DB) UpsertContractRef(ctx context.Context, contractID string, version int64) (bool, error) {
	tag, err := d.pool.Exec(ctx, `
		INSERT INTO contract_registry (contract_id, version, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (contract_id) DO UPDATE SET
			version = EXCLUDED.version,
			updated_at = NOW()
		WHERE EXCLUDED.version > contract_registry.version
	`, contractID, version)
	if err != nil {
		return false, fmt.Errorf("failed to upsert contract ref %s: %w", contractID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListContractIDs retrieves every contract ID in the registry.
func (d *DB) ListContractIDs(ctx context.Context) ([]string, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT contract_id FROM contract_registry ORDER BY contract_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query contract registry: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan contract id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contract registry: %w", err)
	}

	return ids, nil
}
