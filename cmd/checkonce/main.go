// checkonce probes every monitor in a YAML file once and prints the results.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/hamed0406/statusboard/internal/check"
	"github.com/hamed0406/statusboard/internal/config"
	"github.com/hamed0406/statusboard/internal/domain"
	"github.com/hamed0406/statusboard/internal/probe"
	"github.com/hamed0406/statusboard/internal/repo/memory"
)

func main() {
	file := flag.String("file", "monitors.yaml", "monitors file")
	timeout := flag.Duration("timeout", probe.DefaultTimeout, "per-probe timeout")
	workers := flag.Int("concurrency", check.DefaultConcurrency, "probes in flight")
	verbose := flag.Bool("v", false, "log pipeline events to stderr")
	flag.Parse()
	if flag.NArg() > 0 {
		*file = flag.Arg(0)
	}

	monitors, err := config.LoadMonitors(*file)
	if err != nil {
		color.Red("✖ %v", err)
		os.Exit(2)
	}

	logger := zap.NewNop()
	if *verbose {
		if l, err := zap.NewDevelopment(); err == nil {
			logger = l
		}
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	store := memory.New()
	for i := range monitors {
		if err := store.Add(ctx, &monitors[i]); err != nil {
			color.Red("✖ %s: %v", monitors[i].URL, err)
			os.Exit(2)
		}
	}

	runner := check.NewRunner(logger, probe.NewHTTPProber(), store, check.Config{
		Timeout:     *timeout,
		Concurrency: *workers,
	})
	start := time.Now()
	sum := runner.CheckAll(ctx, monitors)

	for i, res := range sum.Results {
		printResult(monitors[i], res)
	}
	fmt.Printf("\n%d checked, %d failed in %s\n", len(sum.Results), sum.FailedCount, time.Since(start).Round(time.Millisecond))
	if sum.FailedCount > 0 {
		os.Exit(1)
	}
}

var (
	up      = color.New(color.FgGreen)
	warning = color.New(color.FgYellow)
	down    = color.New(color.FgRed)
	failed  = color.New(color.FgMagenta, color.Bold)
)

func printResult(m domain.Monitor, res domain.BatchResult) {
	name := m.Name
	if name == "" {
		name = string(m.ID)
	}
	if !res.Succeeded {
		failed.Printf("%-9s %-20s %s  %s\n", "[FAILED]", name, m.URL, res.ErrorMessage)
		return
	}

	o := res.Outcome
	detail := ""
	if o.StatusCode != nil {
		detail = fmt.Sprintf("HTTP %d", *o.StatusCode)
	}
	if o.ResponseTimeMs != nil {
		detail += fmt.Sprintf(" %dms", *o.ResponseTimeMs)
	}
	if o.ErrorMessage != nil {
		detail += " " + *o.ErrorMessage
	}

	c := down
	switch o.Status {
	case domain.StatusUp:
		c = up
	case domain.StatusWarning:
		c = warning
	}
	c.Printf("%-9s %-20s %s  %s\n", "["+o.Status.String()+"]", name, m.URL, detail)
}
