package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const clearLogPrefix = "db:clear"

// ClearAudit removes every audit row. The schema is preserved and the id sequence restarts.
func ClearAudit(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info(fmt.Sprintf("%s - Clearing audit trail", clearLogPrefix))

	if _, err := pool.Exec(ctx, `TRUNCATE TABLE invocation_audit RESTART IDENTITY`); err != nil {
		return fmt.Errorf("%s - truncate failed: %w", clearLogPrefix, err)
	}

	slog.Info(fmt.Sprintf("%s - Audit trail cleared", clearLogPrefix))
	return nil
}

// PruneAudit deletes audit rows older than retention and returns how many were removed.
func PruneAudit(ctx context.Context, pool *pgxpool.Pool, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, fmt.Errorf("%s - retention must be positive, got %s", clearLogPrefix, retention)
	}
	cutoff := time.Now().UTC().Add(-retention)
	tag, err := pool.Exec(ctx, `DELETE FROM invocation_audit WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%s - prune failed: %w", clearLogPrefix, err)
	}
	slog.Info(fmt.Sprintf("%s - Pruned %d audit rows older than %s", clearLogPrefix, tag.RowsAffected(), cutoff.Format(time.RFC3339)))
	return tag.RowsAffected(), nil
}
