package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pavelanni/assessor/internal/attempt"
	"github.com/pavelanni/assessor/internal/store"
)

// cronLogger routes cron's own messages through slog. Cron reports every
// wake-up as info, so those go to debug.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}

// sweepOnce expires stale attempts and records the run in the metadata table.
func sweepOnce(ctx context.Context, svc *attempt.Service, db *store.Store) (int, error) {
	now := time.Now()
	n, err := svc.Sweep(ctx, now)
	if err != nil {
		return n, fmt.Errorf("sweep: %w", err)
	}
	if err := db.RecordSweep(ctx, now, n); err != nil {
		return n, fmt.Errorf("record sweep: %w", err)
	}
	return n, nil
}

// startSweeper runs sweepOnce on schedule until the returned cron is stopped.
// An empty schedule returns a nil cron.
func startSweeper(ctx context.Context, schedule string, svc *attempt.Service, db *store.Store) (*cron.Cron, error) {
	if schedule == "" {
		slog.Info("attempt sweeper disabled")
		return nil, nil
	}

	logger := cronLogger{logger: slog.Default().With("component", "sweeper")}
	c := cron.New(cron.WithLogger(logger), cron.WithChain(cron.SkipIfStillRunning(logger)))
	_, err := c.AddFunc(schedule, func() {
		n, err := sweepOnce(ctx, svc, db)
		if err != nil {
			slog.Error("scheduled sweep failed", "error", err)
			return
		}
		if n > 0 {
			slog.Info("scheduled sweep", "expired", n)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("parse sweep schedule %q: %w", schedule, err)
	}
	c.Start()
	return c, nil
}
