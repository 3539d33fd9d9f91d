package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/statusboard/internal/domain"
	"github.com/hamed0406/statusboard/internal/notify"
	"github.com/hamed0406/statusboard/internal/repo"
)

// LatestLister yields the most recent check of every monitor.
type LatestLister interface {
	Latest(ctx context.Context) ([]repo.LatestRow, error)
}

type AlerterConfig struct {
	AlertOnRecovery bool
	Cooldown        time.Duration
	PollInterval    time.Duration
}

// Alerter watches the latest checks and notifies on status transitions.
type Alerter struct {
	logger   *zap.Logger
	checks   LatestLister
	alertDB  repo.AlertStore
	notifier notify.Notifier
	cfg      AlerterConfig

	now func() time.Time
}

func NewAlerter(logger *zap.Logger, checks LatestLister, alertDB repo.AlertStore, notifier notify.Notifier, cfg AlerterConfig) *Alerter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	return &Alerter{
		logger:   logger,
		checks:   checks,
		alertDB:  alertDB,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
	}
}

func (a *Alerter) Run(ctx context.Context) error {
	t := time.NewTicker(a.cfg.PollInterval)
	defer t.Stop()

	if err := a.scanOnce(ctx); err != nil {
		a.logger.Warn("alerter_scan_error", zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if err := a.scanOnce(ctx); err != nil {
				a.logger.Warn("alerter_scan_error", zap.Error(err))
			}
		}
	}
}

func (a *Alerter) scanOnce(ctx context.Context) error {
	rows, err := a.checks.Latest(ctx)
	if err != nil {
		return err
	}

	now := a.now()

	for _, r := range rows {
		rec, err := a.alertDB.GetAlert(ctx, r.MonitorID)
		if err != nil {
			a.logger.Warn("alert_state_read_error", zap.String("monitor_id", string(r.MonitorID)), zap.Error(err))
			continue
		}

		changed := rec == nil || rec.LastStatus != r.Status
		if !changed {
			continue
		}

		// Cooldown applies to problem alerts only.
		cooled := true
		if rec != nil && rec.LastSentAt != nil {
			cooled = now.Sub(*rec.LastSentAt) >= a.cfg.Cooldown
		}

		if r.Status != domain.StatusUp && !cooled {
			// keep the old status so the alert fires once the cooldown ends
			a.logger.Debug("alert_deferred",
				zap.String("monitor_id", string(r.MonitorID)),
				zap.String("status", r.Status.String()),
			)
			continue
		}

		problem := r.Status != domain.StatusUp
		recovery := r.Status == domain.StatusUp && rec != nil && a.cfg.AlertOnRecovery

		sentAt := time.Time{}
		if problem || recovery {
			if err := a.notifier.Send(ctx, alertTitle(r.Status), alertText(r)); err != nil {
				a.logger.Warn("alert_send_error", zap.String("monitor_id", string(r.MonitorID)), zap.Error(err))
			} else {
				a.logger.Info("alert_sent",
					zap.String("monitor_id", string(r.MonitorID)),
					zap.String("status", r.Status.String()),
				)
			}
			sentAt = now
		}
		if err := a.alertDB.SetAlert(ctx, r.MonitorID, r.Status, sentAt); err != nil {
			a.logger.Warn("alert_state_write_error", zap.String("monitor_id", string(r.MonitorID)), zap.Error(err))
		}
	}

	return nil
}

func alertTitle(s domain.Status) string {
	switch s {
	case domain.StatusUp:
		return "🟢 Monitor RECOVERED"
	case domain.StatusWarning:
		return "🟡 Monitor WARNING"
	default:
		return "🔴 Monitor DOWN"
	}
}

func alertText(r repo.LatestRow) string {
	httpTxt := "n/a"
	if r.StatusCode != nil {
		httpTxt = fmt.Sprintf("%d", *r.StatusCode)
	}
	timeTxt := "n/a"
	if r.ResponseTimeMs != nil {
		timeTxt = fmt.Sprintf("%d ms", *r.ResponseTimeMs)
	}
	reason := ""
	if r.ErrorMessage != nil {
		reason = *r.ErrorMessage
	}
	return fmt.Sprintf(
		"URL: %s\nHTTP: %s\nResponse time: %s\nError: %s\nChecked: %s",
		r.URL, httpTxt, timeTxt, reason, r.CheckedAt.Format(time.RFC3339),
	)
}
