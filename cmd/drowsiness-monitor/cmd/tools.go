package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/drowsiness-monitor/internal/config"
	"github.com/oshokin/drowsiness-monitor/internal/repository/journal"
	"github.com/oshokin/drowsiness-monitor/internal/service/checker"
	"github.com/oshokin/drowsiness-monitor/internal/service/location"
	"github.com/oshokin/drowsiness-monitor/internal/service/monitor"
)

// errConfigExists is returned by init-config when it would overwrite a file.
var errConfigExists = errors.New("configuration file already exists, use --force to overwrite")

// newInitConfigCommand writes the default settings file.
func newInitConfigCommand() *cobra.Command {
	var force bool

	command := &cobra.Command{
		Use:   "init-config",
		Short: "Write the default configuration file.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(configPath); err == nil && !force {
				return fmt.Errorf("%w: %s", errConfigExists, configPath)
			}

			if err := config.Save(configPath, config.Default()); err != nil {
				return err
			}

			_, err := fmt.Fprintln(cmd.OutOrStdout(), "Configuration written to", configPath)

			return err
		},
	}

	command.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")

	return command
}

// newLocateCommand resolves and prints the current location link.
func newLocateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "locate",
		Short: "Print the map link the escalation message would carry.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadSettings(cmd.Context())
			resolver := location.NewIPResolver(cfg.Location.URL, cfg.Location.Timeout, nil)

			_, err := fmt.Fprintln(cmd.OutOrStdout(), resolver.Resolve(cmd.Context()))

			return err
		},
	}
}

// newTestAlarmCommand sounds the configured alarm for a while.
func newTestAlarmCommand() *cobra.Command {
	var duration time.Duration

	command := &cobra.Command{
		Use:   "test-alarm",
		Short: "Sound the alarm to check the speaker.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			cfg := loadSettings(ctx)

			controller, err := monitor.NewAlarm(ctx, cfg.Alert, cmd.OutOrStdout())
			if err != nil {
				return err
			}

			defer func() {
				_ = controller.Close()
			}()

			controller.Start(ctx)

			timer := time.NewTimer(duration)
			defer timer.Stop()

			select {
			case <-ctx.Done():
			case <-timer.C:
			}

			controller.Stop()

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Alarm produced %d pulses\n", controller.Pulses())

			return err
		},
	}

	command.Flags().DurationVarP(&duration, "duration", "d", 3*time.Second, "how long to sound the alarm")

	return command
}

// newStatusCommand queries the health endpoint of a running monitor.
func newStatusCommand() *cobra.Command {
	var (
		address string
		watch   time.Duration
	)

	command := &cobra.Command{
		Use:   "status",
		Short: "Print the state of a running monitor.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return checker.Run(ctx, &checker.Options{
				ConfigPath:   configPath,
				Address:      address,
				PollInterval: watch,
				Out:          cmd.OutOrStdout(),
			})
		},
	}

	command.Flags().StringVarP(&address, "address", "a", "", "health address (default from configuration)")
	command.Flags().DurationVarP(&watch, "watch", "w", 0, "poll at this interval instead of checking once")

	return command
}

// newEpisodesCommand prints the latest journaled episodes.
func newEpisodesCommand() *cobra.Command {
	var limit int

	command := &cobra.Command{
		Use:   "episodes",
		Short: "List the latest recorded drowsiness episodes.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := config.LoadOrCreate(ctx, configPath)

			repo, err := journal.Open(ctx, cfg.Journal)
			if err != nil {
				return err
			}

			defer func() {
				_ = repo.Close()
			}()

			records, err := repo.List(ctx, limit)
			if err != nil {
				return err
			}

			for _, r := range records {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "#%d %s drowsy for %s alarm=%t escalation=%t %s\n",
					r.EpisodeID, r.StartTime.Local().Format(time.DateTime), r.Duration.Round(time.Millisecond),
					r.AlertFired, r.EscalationFired, r.Actor.String())
				if err != nil {
					return err
				}
			}

			return nil
		},
	}

	command.Flags().IntVarP(&limit, "limit", "n", 20, "number of episodes to show, 0 for all")

	return command
}

