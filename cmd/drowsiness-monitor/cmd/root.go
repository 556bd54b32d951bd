package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/drowsiness-monitor/internal/config"
	"github.com/oshokin/drowsiness-monitor/internal/logger"
	"github.com/oshokin/drowsiness-monitor/internal/service/monitor"
	"github.com/oshokin/drowsiness-monitor/internal/version"
)

var errUnknownLogLevel = errors.New("unknown log level")

var (
	// configPath stores the path to the configuration YAML file.
	configPath string
	// envPath stores the path to the dotenv file with notifier secrets.
	envPath string
	// logLevel overrides the level from the settings when set.
	logLevel string

	// rootCmd represents the base command that runs the monitor.
	rootCmd = &cobra.Command{
		Use:   "drowsiness-monitor",
		Short: "Watch the driver and raise an alarm when they fall asleep.",
		Long: `Reads frames from the camera, classifies each one as normal or drowsy through the
inference service and keeps track of continuous drowsy runs.

When a run lasts longer than alert_threshold the local alarm starts pulsing and a
push notification is sent. When it lasts longer than call_threshold an escalation
message with the vehicle location goes to the messaging chat. The first normal
frame silences the alarm and records the episode in the journal.

Stops on SIGINT/SIGTERM or when "q" is entered on the terminal.`,
		Args:              cobra.NoArgs,
		SilenceUsage:      true,
		PersistentPreRunE: applyLogLevel,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// The quit key cancels the same context as the signals.
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			go monitor.WatchQuitKey(ctx, cmd.InOrStdin(), cancel)

			logger.InfoKV(ctx, "Starting", version.KV()...)

			return monitor.Run(ctx, &monitor.Options{
				ConfigPath:  configPath,
				EnvPath:     envPath,
				Settings:    loadSettings(ctx),
				AlarmOutput: cmd.OutOrStdout(),
			})
		},
	}
)

// Execute runs the drowsiness-monitor CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	defer logger.Sync()

	if err := rootCmd.Execute(); err != nil {
		logger.Sync()
		os.Exit(1)
	}
}

// applyLogLevel validates and applies the --log-level flag.
// Without the flag the level comes from the settings once a command loads them.
func applyLogLevel(_ *cobra.Command, _ []string) error {
	if logLevel == "" {
		return nil
	}

	level, ok := logger.ParseLogLevel(logLevel)
	if !ok {
		return fmt.Errorf("%w %q", errUnknownLogLevel, logLevel)
	}

	logger.SetLevel(level)

	return nil
}

// loadSettings loads the settings once for a command and applies their log level
// unless the flag overrides it.
func loadSettings(ctx context.Context) *config.Config {
	cfg := monitor.LoadSettings(ctx, configPath, envPath)

	if logLevel != "" {
		return cfg
	}

	level, ok := logger.ParseLogLevel(cfg.LogLevel)
	if !ok {
		logger.WarnKV(ctx, "Unknown log level in settings, keeping info", "log_level", cfg.LogLevel)

		return cfg
	}

	logger.SetLevel(level)

	return cfg
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename,
		"path to configuration file")
	rootCmd.PersistentFlags().StringVar(&envPath, "env-file", config.DefaultEnvFilename,
		"path to dotenv file with notifier secrets")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level: debug, info, warn, error (default from configuration)")

	rootCmd.AddCommand(
		newInitConfigCommand(),
		newLocateCommand(),
		newTestAlarmCommand(),
		newStatusCommand(),
		newEpisodesCommand(),
	)
}
