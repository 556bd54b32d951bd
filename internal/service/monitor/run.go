package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/oshokin/drowsiness-monitor/internal/api/grpc/health"
	"github.com/oshokin/drowsiness-monitor/internal/config"
	"github.com/oshokin/drowsiness-monitor/internal/domain/drowsiness"
	"github.com/oshokin/drowsiness-monitor/internal/logger"
	"github.com/oshokin/drowsiness-monitor/internal/repository/journal"
	"github.com/oshokin/drowsiness-monitor/internal/service/alarm"
	"github.com/oshokin/drowsiness-monitor/internal/service/audio"
	"github.com/oshokin/drowsiness-monitor/internal/service/capture"
	"github.com/oshokin/drowsiness-monitor/internal/service/classifier"
	"github.com/oshokin/drowsiness-monitor/internal/service/common"
	"github.com/oshokin/drowsiness-monitor/internal/service/dispatch"
	"github.com/oshokin/drowsiness-monitor/internal/service/location"
	"github.com/oshokin/drowsiness-monitor/internal/service/notify"
)

// DefaultDrainTimeout bounds how long shutdown waits for queued notifications.
const DefaultDrainTimeout = 5 * time.Second

// Options controls the monitor process.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// EnvPath specifies the dotenv file with notifier secrets.
	EnvPath string
	// Settings are used instead of loading ConfigPath and EnvPath when set.
	Settings *config.Config
	// DrainTimeout bounds the notification queue drain at shutdown.
	DrainTimeout time.Duration
	// AlarmOutput receives the terminal bell when no other sink is available.
	AlarmOutput io.Writer
}

// Classifier labels one tensor.
type Classifier interface {
	Classify(ctx context.Context, tensor drowsiness.Tensor) (drowsiness.Label, error)
}

// Publisher receives a status snapshot after every sample.
type Publisher interface {
	Publish(status drowsiness.Status)
}

// Run loads the settings, wires every service and drives the primary loop until
// ctx is canceled or a device or inference failure occurs.
//
//nolint:funlen // Linear wiring of the services reads best in one place.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "drowsiness-monitor")

	// Settings never fail startup: a broken file falls back to defaults.
	cfg := opts.Settings
	if cfg == nil {
		cfg = LoadSettings(ctx, opts.ConfigPath, opts.EnvPath)
	}

	drainTimeout := opts.DrainTimeout
	if drainTimeout <= 0 {
		drainTimeout = DefaultDrainTimeout
	}

	alarmOutput := opts.AlarmOutput
	if alarmOutput == nil {
		alarmOutput = os.Stdout
	}

	// Detect current system actor for messages and records.
	actor, err := common.DetectActor()
	if err != nil {
		logger.WarnKV(ctx, "Unable to detect host and user", "error", err)
	}

	// Open the inference service first: without it nothing else matters.
	classifierClient, err := classifier.Dial(ctx, cfg.Classifier.Address,
		classifier.WithCallTimeout(cfg.Classifier.Timeout))
	if err != nil {
		return fmt.Errorf("%w: %w", classifier.ErrInference, err)
	}

	defer func() {
		_ = classifierClient.Close()
	}()

	// Open the camera or the replay file.
	source, err := capture.Open(ctx, cfg.Capture)
	if err != nil {
		return fmt.Errorf("open frame source: %w", err)
	}

	defer func() {
		_ = source.Close()
	}()

	// Build the local alarm.
	controller, err := NewAlarm(ctx, cfg.Alert, alarmOutput)
	if err != nil {
		return err
	}

	defer func() {
		_ = controller.Close()
	}()

	// Open the episode journal; it is best-effort like notifications.
	episodes, err := journal.Open(ctx, cfg.Journal)
	if err != nil {
		logger.ErrorKV(ctx, "Episode journal unavailable, episodes will not be recorded", "error", err)

		episodes = journal.Discard{}
	}

	defer func() {
		_ = episodes.Close()
	}()

	// Start the dispatcher with a feedback channel back to the machine.
	deliveries := make(chan drowsiness.Delivery, cfg.Notifications.QueueSize)
	push, messaging := NewNotifiers(cfg.Notifications)
	dispatcher := dispatch.New(push, messaging,
		location.NewIPResolver(cfg.Location.URL, cfg.Location.Timeout, nil),
		dispatch.WithQueueSize(cfg.Notifications.QueueSize),
		dispatch.WithSendTimeout(cfg.Notifications.SendTimeout),
		dispatch.WithLocationTimeout(cfg.Location.Timeout),
		dispatch.WithJournal(episodes),
		dispatch.WithActor(actor),
		dispatch.WithDeliveries(deliveries),
	)
	dispatcher.Start(ctx)

	machine := NewMachine(
		drowsiness.Thresholds{Alert: cfg.Alert.AlertThreshold, Call: cfg.Alert.CallThreshold},
		controller,
		dispatcher,
		WithDeliveries(deliveries),
		WithRetryFailed(cfg.Notifications.RetryFailed),
	)

	// Expose health when configured.
	var publisher Publisher

	if cfg.Health.Address != "" {
		healthServer := health.NewServer()
		healthCtx, stopHealth := context.WithCancel(ctx)
		healthDone := make(chan struct{})

		go func() {
			defer close(healthDone)

			if serveErr := healthServer.Serve(healthCtx, cfg.Health.Address); serveErr != nil {
				logger.ErrorKV(ctx, "Health server failed", "error", serveErr)
			}
		}()

		defer func() {
			healthServer.SetServing(false)
			stopHealth()
			<-healthDone
		}()

		healthServer.SetServing(true)
		publisher = healthServer
	}

	logger.InfoKV(ctx, "Monitoring started",
		"classifier", cfg.Classifier.Address,
		"alert_threshold", cfg.Alert.AlertThreshold.String(),
		"call_threshold", cfg.Alert.CallThreshold.String(),
		"retry_failed", cfg.Notifications.RetryFailed)

	loopErr := Loop(ctx, source, classifierClient, machine, publisher)

	// Shut down in dependency order: silence, drain, then close storage.
	shutdownCtx := context.WithoutCancel(ctx)
	machine.Reset(shutdownCtx)
	controller.Stop()

	drainCtx, cancel := context.WithTimeout(shutdownCtx, drainTimeout)
	defer cancel()

	if err = dispatcher.Close(drainCtx); err != nil {
		logger.WarnKV(ctx, "Pending notifications abandoned", "error", err)
	}

	stats := dispatcher.Stats()
	logger.InfoKV(ctx, "Monitoring stopped",
		"notifications_queued", stats.Queued,
		"notifications_sent", stats.Sent,
		"notifications_failed", stats.Failed,
		"notifications_dropped", stats.Dropped,
		"alarm_pulses", controller.Pulses())

	return loopErr
}

// Loop is the primary loop: capture, preprocess, classify, feed the machine.
// It returns nil when ctx is canceled or a replayed stream ends, and the
// device or inference error otherwise.
func Loop(ctx context.Context, source capture.Source, model Classifier, machine *Machine, publisher Publisher) error {
	level := drowsiness.LevelNormal

	for {
		frame, err := source.Read(ctx)

		switch {
		case ctx.Err() != nil:
			logger.Info(ctx, "Context canceled, exiting")
			return nil
		case errors.Is(err, capture.ErrEndOfStream):
			logger.Info(ctx, "Frame stream ended, exiting")
			return nil
		case err != nil:
			return fmt.Errorf("read frame: %w", err)
		}

		label, err := model.Classify(ctx, capture.Normalize(frame))
		if err != nil {
			if ctx.Err() != nil {
				logger.Info(ctx, "Context canceled, exiting")
				return nil
			}

			return fmt.Errorf("classify frame: %w", err)
		}

		machine.Ingest(ctx, drowsiness.Sample{Timestamp: frame.CapturedAt, Label: label})

		if current := machine.Level(frame.CapturedAt); current != level {
			logger.InfoKV(ctx, "Drowsiness level changed",
				"from", level.String(), "to", current.String(), "state", machine.State().String())

			level = current
		}

		if publisher != nil {
			publisher.Publish(machine.Status())
		}
	}
}

// LoadSettings loads the settings file, applies secrets from the environment and logs suspicious values.
func LoadSettings(ctx context.Context, configPath, envPath string) *config.Config {
	cfg := config.LoadOrCreate(ctx, configPath)

	if envPath == "" {
		envPath = config.DefaultEnvFilename
	}

	env, err := config.ReadEnv(envPath)
	if err != nil {
		logger.WarnKV(ctx, "Unable to read environment file", "path", envPath, "error", err)
	}

	config.ApplyEnv(cfg, env)

	for _, warning := range config.Warnings(cfg) {
		logger.Warn(ctx, warning)
	}

	return cfg
}

// NewAlarm selects the audio sink and wraps it in a controller.
func NewAlarm(ctx context.Context, cfg config.AlertConfig, out io.Writer) (*alarm.Controller, error) {
	sink, err := audio.Select(ctx, cfg.Sink, out)
	if err != nil {
		return nil, fmt.Errorf("select audio sink: %w", err)
	}

	logger.InfoKV(ctx, "Alarm sink selected", "sink", sink.Name())

	return alarm.NewController(sink, alarm.Settings{
		Frequency:     cfg.BeepFrequency,
		PulseDuration: cfg.BeepDuration,
		Interval:      cfg.PulseInterval,
	}), nil
}

// NewNotifiers builds the push and messaging notifiers; a notifier without credentials is nil.
func NewNotifiers(cfg config.NotificationsConfig) (push, messaging notify.Notifier) {
	if cfg.PushbulletToken != "" {
		push = notify.NewPushbullet(cfg.PushbulletToken, notify.WithBaseURL(cfg.PushbulletURL))
	}

	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		messaging = notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID, notify.WithBaseURL(cfg.TelegramURL))
	}

	return push, messaging
}
