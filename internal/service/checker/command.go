package checker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/oshokin/drowsiness-monitor/internal/api/grpc/health"
	"github.com/oshokin/drowsiness-monitor/internal/config"
	"github.com/oshokin/drowsiness-monitor/internal/logger"
)

// Options controls the status checker.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// Address overrides the health address from the settings.
	Address string
	// PollInterval is the pause between checks; zero checks once.
	PollInterval time.Duration
	// Out receives one status line per check.
	Out io.Writer
}

// ErrNoHealthAddress indicates that neither the settings nor the flags name a health endpoint.
var ErrNoHealthAddress = errors.New("no health address configured")

// Query is the call the checker makes; tests replace it.
type Query func(ctx context.Context, address string) (*health.Report, error)

// Run prints the status of a running monitor once, or on every poll interval until ctx is canceled.
func Run(ctx context.Context, opts *Options) error {
	return run(ctx, opts, func(ctx context.Context, address string) (*health.Report, error) {
		return health.Query(ctx, address)
	})
}

func run(ctx context.Context, opts *Options, query Query) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "status-checker")

	// Determine the endpoint: command line argument overrides the settings.
	address := opts.Address
	if address == "" {
		cfg, err := config.Load(opts.ConfigPath)
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}

		address = cfg.Health.Address
	}

	if address == "" {
		return ErrNoHealthAddress
	}

	if opts.PollInterval <= 0 {
		return check(ctx, query, address, opts.Out)
	}

	logger.InfoKV(ctx, "Polling monitor status", "address", address, "interval", opts.PollInterval.String())

	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()

	for {
		if err := check(ctx, query, address, opts.Out); err != nil {
			logger.ErrorKV(ctx, "Check status failed", "error", err)
		}

		select {
		case <-ctx.Done():
			logger.Info(ctx, "Context canceled, exiting")
			return nil
		case <-ticker.C:
		}
	}
}

// check performs one query and prints the answer.
func check(ctx context.Context, query Query, address string, out io.Writer) error {
	report, err := query(ctx, address)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(out, Format(report))

	return err
}

// Format renders a report on one line.
func Format(report *health.Report) string {
	serving := "NOT_SERVING"
	if report.Serving {
		serving = "SERVING"
	}

	status := report.Status
	if status == nil {
		return serving + " state=unknown"
	}

	line := fmt.Sprintf("%s state=%s level=%s", serving, status.State, status.Level)
	if status.EpisodeID != 0 {
		line += fmt.Sprintf(" episode=%d drowsy_for=%s alarm=%t escalation=%t",
			status.EpisodeID, status.EpisodeDuration, status.AlertFired, status.EscalationFired)
	}

	if !status.UpdatedAt.IsZero() {
		line += " updated_at=" + status.UpdatedAt.Format(time.RFC3339)
	}

	return line
}
