package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/statusboard/internal/domain"
)

// MonitorLister is the read side of the monitor store.
type MonitorLister interface {
	List(ctx context.Context) ([]domain.Monitor, error)
}

// BatchChecker runs the check pipeline over a set of monitors.
type BatchChecker interface {
	CheckAll(ctx context.Context, ms []domain.Monitor) domain.BatchSummary
}

// Rechecker wakes up every Interval and checks the monitors that are due
// according to their own IntervalSeconds.
type Rechecker struct {
	Logger   *zap.Logger
	Monitors MonitorLister
	Checker  BatchChecker
	Interval time.Duration

	Now func() time.Time
}

func NewRechecker(logger *zap.Logger, monitors MonitorLister, checker BatchChecker, interval time.Duration) *Rechecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval < 0 {
		interval = 0
	}
	return &Rechecker{
		Logger:   logger,
		Monitors: monitors,
		Checker:  checker,
		Interval: interval,
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run does an immediate pass, then one per tick, until ctx is cancelled.
// A zero Interval disables the loop.
func (r *Rechecker) Run(ctx context.Context) {
	if r.Interval == 0 {
		r.Logger.Info("rechecker_disabled")
		return
	}
	t := time.NewTicker(r.Interval)
	defer t.Stop()

	r.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			r.Logger.Info("rechecker_stopped")
			return
		case <-t.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce checks every due monitor and returns how many were checked.
func (r *Rechecker) RunOnce(ctx context.Context) int {
	all, err := r.Monitors.List(ctx)
	if err != nil {
		r.Logger.Warn("rechecker_list_error", zap.Error(err))
		return 0
	}
	now := r.Now()
	due := make([]domain.Monitor, 0, len(all))
	for _, m := range all {
		if m.Due(now) {
			due = append(due, m)
		}
	}
	if len(due) == 0 {
		return 0
	}

	sum := r.Checker.CheckAll(ctx, due)
	r.Logger.Debug("rechecker_pass",
		zap.Int("due", len(due)),
		zap.Int("succeeded", sum.SucceededCount),
		zap.Int("failed", sum.FailedCount),
	)
	return len(due)
}
