// Package check runs the probe → persist pipeline for one monitor or a batch.
package check

import (
	"context"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/hamed0406/statusboard/internal/domain"
	"github.com/hamed0406/statusboard/internal/probe"
)

// DefaultConcurrency caps outbound probes of one batch.
const DefaultConcurrency = 32

// Store is what the pipeline needs from persistence. The two calls are not
// transactional; either failing fails the unit.
type Store interface {
	CreateCheck(ctx context.Context, id domain.MonitorID, o domain.CheckOutcome) (*domain.CheckRecord, error)
	TouchMonitor(ctx context.Context, id domain.MonitorID, at time.Time) error
}

type Config struct {
	// Timeout bounds each probe; zero means probe.DefaultTimeout.
	Timeout time.Duration
	// Concurrency bounds the probes of one batch in flight at once.
	Concurrency int
}

type Runner struct {
	logger  *zap.Logger
	prober  probe.Prober
	store   Store
	timeout time.Duration
	workers int

	// Now stamps the monitor's last-checked time.
	Now func() time.Time

	inflight singleflight.Group
}

func NewRunner(logger *zap.Logger, p probe.Prober, s Store, cfg Config) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = probe.DefaultTimeout
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = DefaultConcurrency
	}
	return &Runner{
		logger:  logger,
		prober:  p,
		store:   s,
		timeout: cfg.Timeout,
		workers: cfg.Concurrency,
		Now:     func() time.Time { return time.Now().UTC() },
	}
}

// CheckOne runs the pipeline for a single monitor. Concurrent calls for the
// same monitor share one probe and one stored record. The shared run is
// detached from any single caller; a caller whose ctx ends stops waiting and
// gets a failed result while the others still receive the real outcome.
func (r *Runner) CheckOne(ctx context.Context, m domain.Monitor) domain.BatchResult {
	key := string(m.ID)
	if key == "" {
		key = m.URL
	}
	shared := context.WithoutCancel(ctx)
	ch := r.inflight.DoChan(key, func() (any, error) {
		return r.run(shared, m), nil
	})
	select {
	case res := <-ch:
		return res.Val.(domain.BatchResult)
	case <-ctx.Done():
		return domain.BatchResult{MonitorID: m.ID, ErrorMessage: ctx.Err().Error()}
	}
}

// CheckAll runs every monitor through the pipeline and waits for all of them.
// Results are index-aligned with monitors. An empty input touches neither the
// network nor the store.
func (r *Runner) CheckAll(ctx context.Context, monitors []domain.Monitor) domain.BatchSummary {
	if len(monitors) == 0 {
		return domain.Summarize(nil)
	}

	start := time.Now()
	results := make([]domain.BatchResult, len(monitors))
	p := pool.New().WithMaxGoroutines(r.workers)
	for i, m := range monitors {
		i, m := i, m
		p.Go(func() {
			results[i] = r.run(ctx, m)
		})
	}
	p.Wait()

	summary := domain.Summarize(results)
	r.logger.Info("batch_completed",
		zap.Int("monitors", len(monitors)),
		zap.Int("succeeded", summary.SucceededCount),
		zap.Int("failed", summary.FailedCount),
		zap.Duration("took", time.Since(start)),
	)
	return summary
}

// run never panics; whatever happens inside the unit ends up in the result.
func (r *Runner) run(ctx context.Context, m domain.Monitor) domain.BatchResult {
	res := domain.BatchResult{MonitorID: m.ID}

	var (
		pc      panics.Catcher
		outcome domain.CheckOutcome
		err     error
	)
	pc.Try(func() {
		outcome, err = r.pipeline(ctx, m)
	})
	if rec := pc.Recovered(); rec != nil {
		err = fmt.Errorf("panic: %v", rec.Value)
		r.logger.Error("check_panic",
			zap.String("monitor_id", string(m.ID)),
			zap.String("url", m.URL),
			zap.Any("panic", rec.Value),
			zap.ByteString("stack", rec.Stack),
		)
	}

	if err != nil {
		r.logger.Warn("check_pipeline_failed",
			zap.String("monitor_id", string(m.ID)),
			zap.String("url", m.URL),
			zap.Error(err),
		)
		res.ErrorMessage = err.Error()
		return res
	}

	fields := []zap.Field{
		zap.String("monitor_id", string(m.ID)),
		zap.String("url", m.URL),
		zap.String("status", outcome.Status.String()),
	}
	if outcome.StatusCode != nil {
		fields = append(fields, zap.Int("http_status", *outcome.StatusCode))
	}
	if outcome.ResponseTimeMs != nil {
		fields = append(fields, zap.Int64("response_time_ms", *outcome.ResponseTimeMs))
	}
	if outcome.ErrorMessage != nil {
		fields = append(fields, zap.String("reason", *outcome.ErrorMessage))
	}
	r.logger.Debug("check_completed", fields...)

	res.Succeeded = true
	res.Outcome = &outcome
	return res
}

// pipeline probes first and only then persists.
func (r *Runner) pipeline(ctx context.Context, m domain.Monitor) (domain.CheckOutcome, error) {
	outcome := r.prober.Probe(ctx, m.URL, r.timeout)
	// a probe cut short by the caller says nothing about the target
	if err := ctx.Err(); err != nil {
		return outcome, fmt.Errorf("check abandoned: %w", err)
	}
	if _, err := r.store.CreateCheck(ctx, m.ID, outcome); err != nil {
		return outcome, fmt.Errorf("create check: %w", err)
	}
	if err := r.store.TouchMonitor(ctx, m.ID, r.Now()); err != nil {
		return outcome, fmt.Errorf("touch monitor: %w", err)
	}
	return outcome, nil
}
