package db

import (
	"context"
	"testing"
	"time"
)

const poolTestPrefix = "db:pool_test"

func TestNewPool_InvalidURL(t *testing.T) {
	pool, err := NewPool(context.Background(), "invalid://not-a-valid-database-url")
	if err == nil {
		if pool != nil {
			pool.Close()
		}
		t.Fatalf("%s - expected error for invalid URL", poolTestPrefix)
	}
	if pool != nil {
		t.Errorf("%s - expected nil pool on error", poolTestPrefix)
	}
}

func TestPruneAudit_RejectsNonPositiveRetention(t *testing.T) {
	for _, retention := range []time.Duration{0, -time.Hour} {
		if _, err := PruneAudit(context.Background(), nil, retention); err == nil {
			t.Errorf("%s - expected error for retention %s", poolTestPrefix, retention)
		}
	}
}
