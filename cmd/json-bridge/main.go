// Package main is the entrypoint for json-bridge.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/morezero/json-bridge/internal/config"
	"github.com/morezero/json-bridge/internal/server"
	"github.com/morezero/json-bridge/pkg/db"
	"github.com/morezero/json-bridge/pkg/dispatcher"
)

const usage = `Usage: json-bridge [command]
       json-bridge serve                 Start the bridge (HTTP, COMMS, audit).
       json-bridge describe <service>    Print the description of a service reference, e.g. widgets@1.
       json-bridge migrate up            Apply audit database migrations.
       json-bridge migrate status        Show migration status.
       json-bridge clear                 Truncate the audit trail; schema is preserved.
       json-bridge audit list [flags]    Print recent audit records.
       json-bridge audit prune [age]     Delete audit records older than age (default AUDIT_RETENTION).

Commands:
  serve           (default) Start the bridge.
  describe        Describe a service without starting the bridge.
  migrate up      Run database migrations only.
  migrate status  Show current migration status.
  clear           Truncate audit data.
  audit list      Flags: -service, -operation, -outcome, -tenant, -request, -since (duration), -limit.
  audit prune     Delete expired audit records.

Environment: DATABASE_URL (audit commands), MIGRATION_PATH, BRIDGE_HTTP_ADDR (default :8080),
BRIDGE_MANIFEST_FILE, BRIDGE_LOCALE, COMMS_URL, AUDIT_RETENTION.
`

func main() {
	args := os.Args[1:]
	cmd := ""
	if len(args) > 0 && args[0] != "" {
		cmd = args[0]
	}

	switch cmd {
	case "migrate":
		if len(args) < 2 {
			log.Fatalf("json-bridge migrate: require subcommand (up, status)")
		}
		sub := args[1]
		switch sub {
		case "up":
			if err := runMigrateUp(); err != nil {
				log.Fatalf("json-bridge migrate up: %v", err)
			}
		case "status":
			if err := runMigrateStatus(); err != nil {
				log.Fatalf("json-bridge migrate status: %v", err)
			}
		default:
			log.Fatalf("json-bridge migrate: unknown subcommand %q (use up, status)", sub)
		}
		return
	case "clear":
		if err := runClear(); err != nil {
			log.Fatalf("json-bridge clear: %v", err)
		}
		return
	case "audit":
		if len(args) < 2 {
			log.Fatalf("json-bridge audit: require subcommand (list, prune)")
		}
		switch args[1] {
		case "list":
			if err := runAuditList(args[2:], os.Stdout); err != nil {
				log.Fatalf("json-bridge audit list: %v", err)
			}
		case "prune":
			age := ""
			if len(args) > 2 {
				age = args[2]
			}
			if err := runAuditPrune(age); err != nil {
				log.Fatalf("json-bridge audit prune: %v", err)
			}
		default:
			log.Fatalf("json-bridge audit: unknown subcommand %q (use list, prune)", args[1])
		}
		return
	case "describe":
		if len(args) < 2 {
			log.Fatalf("json-bridge describe: require a service reference")
		}
		if err := runDescribe(args[1], os.Stdout); err != nil {
			log.Fatalf("json-bridge describe: %v", err)
		}
		return
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	case "serve", "":
		// serve (explicit or default)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q.\n%s", cmd, usage)
		os.Exit(1)
	}

	if err := server.Run(); err != nil {
		log.Fatalf("json-bridge: %v", err)
	}
}

// dbConfig loads config for the database commands.
func dbConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runMigrateUp() error {
	cfg, err := dbConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	if err := db.EnsureDatabase(ctx, cfg.DatabaseURL); err != nil {
		return fmt.Errorf("ensure database: %w", err)
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	migrationSQL, err := db.LoadMigrationFiles(cfg.MigrationPath)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	if err := db.RunMigrations(ctx, pool, migrationSQL); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func runMigrateStatus() error {
	cfg, err := dbConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	return db.MigrationStatus(ctx, pool, cfg.MigrationPath)
}

func runClear() error {
	cfg, err := dbConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	if err := db.ClearAudit(ctx, pool); err != nil {
		return fmt.Errorf("clear audit: %w", err)
	}
	return nil
}

// parseAuditListArgs turns audit list flags into query parameters. now anchors -since.
func parseAuditListArgs(args []string, now time.Time) (db.ListAuditParams, error) {
	var params db.ListAuditParams
	var since time.Duration
	fs := flag.NewFlagSet("audit list", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&params.Service, "service", "", "service name")
	fs.StringVar(&params.Operation, "operation", "", "operation name")
	fs.StringVar(&params.Outcome, "outcome", "", "outcome code, e.g. OK or NOT_FOUND")
	fs.StringVar(&params.TenantID, "tenant", "", "tenant id")
	fs.StringVar(&params.RequestID, "request", "", "request id")
	fs.DurationVar(&since, "since", 0, "only records newer than this age")
	fs.IntVar(&params.Limit, "limit", db.DefaultListLimit, "maximum records")
	if err := fs.Parse(args); err != nil {
		return params, err
	}
	if fs.NArg() > 0 {
		return params, fmt.Errorf("unexpected arguments %v", fs.Args())
	}
	if since < 0 {
		return params, fmt.Errorf("-since must not be negative")
	}
	if since > 0 {
		t := now.Add(-since)
		params.Since = &t
	}
	return params, nil
}

func runAuditList(args []string, out io.Writer) error {
	params, err := parseAuditListArgs(args, time.Now())
	if err != nil {
		return err
	}
	cfg, err := dbConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	records, err := db.NewRepository(pool).ListAudit(ctx, params)
	if err != nil {
		return err
	}
	return writeAudit(out, records)
}

func writeAudit(out io.Writer, records []*db.AuditRecord) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "OCCURRED\tSERVICE\tVERSION\tOPERATION\tOUTCOME\tMS\tTRANSPORT\tREQUEST")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			r.OccurredAt.UTC().Format(time.RFC3339), r.Service, deref(r.Version), r.Operation,
			r.Outcome, r.DurationMs, deref(r.Transport), deref(r.RequestID))
	}
	return w.Flush()
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func runAuditPrune(age string) error {
	cfg, err := dbConfig()
	if err != nil {
		return err
	}
	retention := cfg.AuditRetention
	if age != "" {
		if retention, err = time.ParseDuration(age); err != nil {
			return fmt.Errorf("parse age: %w", err)
		}
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	n, err := db.PruneAudit(ctx, pool, retention)
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %d audit records older than %s.\n", n, retention)
	return nil
}

func runDescribe(ref string, out io.Writer) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cat, err := server.LoadCatalog(cfg)
	if err != nil {
		return err
	}
	entry, err := cat.Resolve(ref)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(dispatcher.Describe(entry, cat.Versions(entry.Name)))
}
