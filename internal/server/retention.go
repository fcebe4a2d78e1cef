package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"

	"github.com/morezero/json-bridge/pkg/db"
)

const retentionLogPrefix = "server:retention"

// pruneFunc deletes audit rows older than a retention window.
type pruneFunc func(ctx context.Context, retention time.Duration) (int64, error)

// newAuditPruner schedules prune on schedule. The caller starts and stops the returned cron.
// Runs that overlap a still-running prune are skipped.
func newAuditPruner(schedule string, retention, timeout time.Duration, prune pruneFunc) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		n, err := prune(ctx, retention)
		if err != nil {
			slog.Error(fmt.Sprintf("%s - audit prune failed: %v", retentionLogPrefix, err))
			return
		}
		slog.Info(fmt.Sprintf("%s - Pruned %d audit rows older than %s", retentionLogPrefix, n, retention))
	})
	if err != nil {
		return nil, fmt.Errorf("%s - invalid schedule %q: %w", retentionLogPrefix, schedule, err)
	}
	return c, nil
}

// poolPruner binds db.PruneAudit to pool.
func poolPruner(pool *pgxpool.Pool) pruneFunc {
	return func(ctx context.Context, retention time.Duration) (int64, error) {
		return db.PruneAudit(ctx, pool, retention)
	}
}
