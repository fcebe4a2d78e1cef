package db

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/morezero/json-bridge/pkg/events"
)

const repoLogPrefix = "db:repository"

// DefaultListLimit caps ListAudit when no limit is given.
const DefaultListLimit = 100

const auditColumns = `id, event_id, service, version, operation, outcome, message, parameters,
	duration_ms, transport, tenant_id, user_id, request_id, correlation_id, occurred_at, created`

// Repository provides access to the invocation audit trail.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertAudit stores one invocation event and returns the stored row.
func (r *Repository) InsertAudit(ctx context.Context, event *events.InvocationEvent) (*AuditRecord, error) {
	slog.Debug(fmt.Sprintf("%s - InsertAudit service=%s operation=%s outcome=%s", repoLogPrefix, event.Service, event.Operation, event.Outcome))

	params := event.Parameters
	if params == nil {
		params = []string{}
	}
	row := r.pool.QueryRow(ctx,
		`INSERT INTO invocation_audit (event_id, service, version, operation, outcome, message, parameters,
		                               duration_ms, transport, tenant_id, user_id, request_id, correlation_id, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 RETURNING `+auditColumns,
		nullable(event.ID), event.Service, nullable(event.Version), event.Operation, event.Outcome,
		nullable(event.Message), params, event.DurationMs, nullable(event.Transport),
		nullable(event.TenantID), nullable(event.UserID), nullable(event.RequestID), nullable(event.CorrelationID),
		occurredAt(event.Timestamp))

	rec, err := scanAudit(row)
	if err != nil {
		return nil, fmt.Errorf("%s - insert audit for %s.%s: %w", repoLogPrefix, event.Service, event.Operation, err)
	}
	return rec, nil
}

// ListAuditParams filters ListAudit. Empty fields match everything.
type ListAuditParams struct {
	Service   string
	Operation string
	Outcome   string
	TenantID  string
	RequestID string
	Since     *time.Time
	Limit     int
}

// ListAudit returns audit rows, newest first.
func (r *Repository) ListAudit(ctx context.Context, params ListAuditParams) ([]*AuditRecord, error) {
	query, args := buildListQuery(params)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s - list audit: %w", repoLogPrefix, err)
	}
	defer rows.Close()

	var out []*AuditRecord
	for rows.Next() {
		rec, err := scanAudit(rows)
		if err != nil {
			return nil, fmt.Errorf("%s - scan audit: %w", repoLogPrefix, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CountByOutcome counts audit rows per outcome, optionally for one service.
func (r *Repository) CountByOutcome(ctx context.Context, service string) ([]OutcomeCount, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT outcome, COUNT(*)
		 FROM invocation_audit
		 WHERE ($1 = '' OR service = $1)
		 GROUP BY outcome
		 ORDER BY outcome`, service)
	if err != nil {
		return nil, fmt.Errorf("%s - count by outcome: %w", repoLogPrefix, err)
	}
	defer rows.Close()

	var out []OutcomeCount
	for rows.Next() {
		var c OutcomeCount
		if err := rows.Scan(&c.Outcome, &c.Count); err != nil {
			return nil, fmt.Errorf("%s - scan outcome count: %w", repoLogPrefix, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// --- helpers ---

func buildListQuery(params ListAuditParams) (string, []any) {
	var where []string
	var args []any
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if params.Service != "" {
		add("service = $%d", params.Service)
	}
	if params.Operation != "" {
		add("operation = $%d", params.Operation)
	}
	if params.Outcome != "" {
		add("outcome = $%d", params.Outcome)
	}
	if params.TenantID != "" {
		add("tenant_id = $%d", params.TenantID)
	}
	if params.RequestID != "" {
		add("request_id = $%d", params.RequestID)
	}
	if params.Since != nil {
		add("occurred_at >= $%d", *params.Since)
	}

	limit := params.Limit
	if limit <= 0 || limit > DefaultListLimit {
		limit = DefaultListLimit
	}

	var b strings.Builder
	b.WriteString("SELECT " + auditColumns + " FROM invocation_audit")
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	args = append(args, limit)
	fmt.Fprintf(&b, " ORDER BY occurred_at DESC, id DESC LIMIT $%d", len(args))
	return b.String(), args
}

func scanAudit(row pgx.Row) (*AuditRecord, error) {
	var rec AuditRecord
	err := row.Scan(
		&rec.ID, &rec.EventID, &rec.Service, &rec.Version, &rec.Operation, &rec.Outcome, &rec.Message,
		&rec.Parameters, &rec.DurationMs, &rec.Transport, &rec.TenantID, &rec.UserID, &rec.RequestID,
		&rec.CorrelationID, &rec.OccurredAt, &rec.Created,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// occurredAt parses an event timestamp, falling back to now.
func occurredAt(ts string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
		return t.UTC()
	}
	return time.Now().UTC()
}
