package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/iwealthdemo/asset-management-workflow-sub001/pkg/schedule"
)

// DefaultSweepLimit bounds how many documents one sweep visits.
const DefaultSweepLimit = 100

// Sweeper runs the reconciliation sweep on a schedule. It is the safety net
// for documents whose inline update after a terminal job was lost.
type Sweeper struct {
	rec   *Reconciler
	sched schedule.Schedule
	limit int
	log   *slog.Logger
}

func NewSweeper(rec *Reconciler, sched schedule.Schedule, limit int, logger *slog.Logger) *Sweeper {
	if limit <= 0 {
		limit = DefaultSweepLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{rec: rec, sched: sched, limit: limit, log: logger}
}

// Run blocks until the context is cancelled, sweeping at each scheduled
// time.
func (s *Sweeper) Run(ctx context.Context) error {
	for {
		next := s.sched.Next(time.Now())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Until(next)):
		}

		visited, err := s.rec.Sweep(ctx, s.limit)
		if err != nil {
			s.log.Error("reconcile.sweep_failed", "error", err)
			continue
		}
		if visited > 0 {
			s.log.Info("reconcile.sweep_done", "visited", visited)
		}
	}
}
