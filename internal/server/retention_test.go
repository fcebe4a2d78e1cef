package server

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewAuditPruner(t *testing.T) {
	calls := make(chan time.Duration, 1)
	prune := func(ctx context.Context, retention time.Duration) (int64, error) {
		if _, ok := ctx.Deadline(); !ok {
			t.Errorf("%s - prune must run with a deadline", serverTestPrefix)
		}
		select {
		case calls <- retention:
		default:
		}
		return 3, nil
	}

	c, err := newAuditPruner("@every 1s", 48*time.Hour, time.Second, prune)
	if err != nil {
		t.Fatalf("%s - unexpected error: %v", serverTestPrefix, err)
	}
	c.Start()
	defer c.Stop()

	select {
	case got := <-calls:
		if got != 48*time.Hour {
			t.Errorf("%s - retention = %v, want 48h", serverTestPrefix, got)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("%s - prune was not scheduled", serverTestPrefix)
	}
}

func TestNewAuditPruner_InvalidSchedule(t *testing.T) {
	_, err := newAuditPruner("whenever", time.Hour, time.Second, func(context.Context, time.Duration) (int64, error) {
		return 0, errors.New("never called")
	})
	if err == nil {
		t.Errorf("%s - expected error for invalid schedule", serverTestPrefix)
	}
}
