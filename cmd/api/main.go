package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sourcegraph/conc"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/statusboard/internal/check"
	"github.com/hamed0406/statusboard/internal/config"
	"github.com/hamed0406/statusboard/internal/httpapi"
	apimw "github.com/hamed0406/statusboard/internal/httpapi/middleware"
	"github.com/hamed0406/statusboard/internal/logging"
	"github.com/hamed0406/statusboard/internal/notify"
	"github.com/hamed0406/statusboard/internal/probe"
	"github.com/hamed0406/statusboard/internal/repo"
	"github.com/hamed0406/statusboard/internal/repo/memory"
	"github.com/hamed0406/statusboard/internal/repo/postgres"
	"github.com/hamed0406/statusboard/internal/scheduler"
)

type store interface {
	repo.MonitorStore
	repo.CheckStore
	repo.AlertStore
}

func main() {
	// .env is optional; real env wins
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.New(logging.Options{Dir: cfg.LogDir, Level: zap.InfoLevel, Stdout: cfg.LogStdout})
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("api_exit", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) (err error) {
	var closers []func() error
	defer func() {
		for _, c := range closers {
			err = multierr.Append(err, c())
		}
	}()

	var st store
	if cfg.DatabaseURL != "" {
		pg, err := postgres.New(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return err
		}
		closers = append(closers, pg.Close)
		if err := pg.Migrate(ctx); err != nil {
			return err
		}
		st = pg
	} else {
		logger.Warn("memory_store", zap.String("reason", "DATABASE_URL not set"))
		st = memory.New()
	}

	prober := probe.NewRetryProber(probe.NewHTTPProber(), cfg.RetryAttempts, cfg.RetryBackoff)
	runner := check.NewRunner(logger, prober, st, check.Config{
		Timeout:     cfg.HTTPTimeout,
		Concurrency: cfg.MaxConcurrentChecks,
	})

	var notifiers notify.Multi
	if s := notify.NewSlack(cfg.SlackWebhook); s != nil {
		notifiers = append(notifiers, s)
	}
	if k := notify.NewKafka(cfg.KafkaBrokers, cfg.KafkaAlertTopic); k != nil {
		notifiers = append(notifiers, k)
		closers = append(closers, k.Close)
	}

	// background loops stop before resources close
	var wg conc.WaitGroup
	defer wg.Wait()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rechecker := scheduler.NewRechecker(logger, st, runner, cfg.CheckInterval)
	wg.Go(func() { rechecker.Run(ctx) })

	if len(notifiers) > 0 {
		alerter := scheduler.NewAlerter(logger, st, st, notifiers, scheduler.AlerterConfig{
			AlertOnRecovery: cfg.AlertOnRecovery,
			Cooldown:        cfg.AlertCooldown,
			PollInterval:    cfg.AlertPoll,
		})
		wg.Go(func() { _ = alerter.Run(ctx) })
	} else {
		logger.Info("alerter_disabled")
	}

	srv := httpapi.NewServer(logger, st, st, runner, nil)
	keys := apimw.Keys{Public: cfg.PublicAPIKeys, Admin: cfg.AdminAPIKeys}
	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Router(keys, cfg.AllowedOrigins, cfg.PublicRPM, cfg.PublicBurst, cfg.AdminRPM, cfg.AdminBurst),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("api_listen", zap.String("addr", cfg.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("api_shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
