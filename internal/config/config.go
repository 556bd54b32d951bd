package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every setting of the drowsiness monitor.
type Config struct {
	// LogLevel is the minimum log level (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`
	// Alert holds the thresholds and the alarm pulse shape.
	Alert AlertConfig `yaml:"alert"`
	// Classifier holds the connection to the inference service.
	Classifier ClassifierConfig `yaml:"classifier"`
	// Capture selects where frames come from.
	Capture CaptureConfig `yaml:"capture"`
	// Notifications holds notifier credentials and dispatch tuning.
	Notifications NotificationsConfig `yaml:"notifications"`
	// Location configures the geolocation-by-IP lookup.
	Location LocationConfig `yaml:"location"`
	// Journal selects where finished episodes are recorded.
	Journal JournalConfig `yaml:"journal"`
	// Health configures the optional gRPC health endpoint.
	Health HealthConfig `yaml:"health"`
}

// AlertConfig is read-only to the state machine and the alarm controller.
type AlertConfig struct {
	// AlertThreshold is the drowsy duration that starts the local alarm.
	AlertThreshold time.Duration `yaml:"alert_threshold"`
	// CallThreshold is the drowsy duration that sends the escalation message.
	CallThreshold time.Duration `yaml:"call_threshold"`
	// BeepFrequency is the alarm tone pitch in Hz.
	BeepFrequency int `yaml:"beep_frequency"`
	// BeepDuration is the length of one alarm pulse.
	BeepDuration time.Duration `yaml:"beep_duration"`
	// PulseInterval is the pause between two alarm pulses.
	PulseInterval time.Duration `yaml:"pulse_interval"`
	// Sink forces an audio sink variant: auto, tone, process or bell.
	Sink string `yaml:"sink"`
}

// ClassifierConfig describes the gRPC inference service.
type ClassifierConfig struct {
	// Address is the gRPC target of the classifier service.
	Address string `yaml:"address"`
	// Timeout bounds a single Classify call.
	Timeout time.Duration `yaml:"timeout"`
}

// CaptureConfig describes the frame source.
type CaptureConfig struct {
	// Device is the capture device handed to ffmpeg.
	Device string `yaml:"device"`
	// InputFormat is the ffmpeg demuxer for the device (v4l2, dshow, avfoundation).
	InputFormat string `yaml:"input_format"`
	// FFmpegPath is the ffmpeg executable.
	FFmpegPath string `yaml:"ffmpeg_path"`
	// Width is the classifier input width in pixels.
	Width int `yaml:"width"`
	// Height is the classifier input height in pixels.
	Height int `yaml:"height"`
	// File replays raw 8-bit gray frames from disk instead of the device when set.
	File string `yaml:"file"`
	// FrameInterval paces file replay so sample timestamps advance like a camera's.
	FrameInterval time.Duration `yaml:"frame_interval"`
}

// NotificationsConfig holds notifier credentials and dispatch behaviour.
type NotificationsConfig struct {
	// PushbulletToken is the push notifier access token; empty disables pushes.
	PushbulletToken string `yaml:"pushbullet_token"`
	// TelegramToken is the messaging bot token; empty disables escalation messages.
	TelegramToken string `yaml:"telegram_token"`
	// TelegramChatID is the chat that receives escalation messages.
	TelegramChatID string `yaml:"telegram_chat_id"`
	// PushbulletURL is the push API root.
	PushbulletURL string `yaml:"pushbullet_url"`
	// TelegramURL is the bot API root.
	TelegramURL string `yaml:"telegram_url"`
	// SendTimeout bounds a single notifier call.
	SendTimeout time.Duration `yaml:"send_timeout"`
	// QueueSize is the capacity of the dispatcher queue.
	QueueSize int `yaml:"queue_size"`
	// RetryFailed lets a failed send be repeated on the next drowsy sample of the same episode.
	RetryFailed bool `yaml:"retry_failed"`
}

// LocationConfig configures the geolocation-by-IP lookup.
type LocationConfig struct {
	// URL is the geolocation endpoint.
	URL string `yaml:"url"`
	// Timeout bounds the whole lookup.
	Timeout time.Duration `yaml:"timeout"`
}

// JournalConfig selects the episode journal backend.
type JournalConfig struct {
	// Driver is file, sqlite or none.
	Driver string `yaml:"driver"`
	// DSN is the file path (file driver) or the sqlite data source name.
	DSN string `yaml:"dsn"`
}

// HealthConfig configures the gRPC health endpoint.
type HealthConfig struct {
	// Address is the listen address; empty disables the endpoint.
	Address string `yaml:"address"`
}

const (
	// DefaultConfigFilename is the default settings file.
	DefaultConfigFilename = "drowsiness-monitor-settings.yaml"
	// DefaultEnvFilename is the default dotenv file with notifier secrets.
	DefaultEnvFilename = ".env"
	// DefaultJournalFilename is the default episode journal for the file driver.
	DefaultJournalFilename = "drowsiness-monitor-episodes.jsonl"

	// DefaultAlertThreshold is how long the subject must be drowsy before the alarm.
	DefaultAlertThreshold = 1300 * time.Millisecond
	// DefaultCallThreshold is how long the subject must be drowsy before the escalation.
	DefaultCallThreshold = 5 * time.Second
	// DefaultBeepFrequency is the alarm pitch in Hz.
	DefaultBeepFrequency = 1000
	// DefaultBeepDuration is the length of one alarm pulse.
	DefaultBeepDuration = 500 * time.Millisecond
	// DefaultPulseInterval is the pause between pulses.
	DefaultPulseInterval = 500 * time.Millisecond

	// DefaultClassifierAddress is where the inference service listens.
	DefaultClassifierAddress = "127.0.0.1:50061"
	// DefaultClassifierTimeout bounds one inference call.
	DefaultClassifierTimeout = 2 * time.Second

	// DefaultFrameSize is the classifier input edge in pixels.
	DefaultFrameSize = 64
	// DefaultFrameInterval is the replay pace of a frames file (10 fps).
	DefaultFrameInterval = 100 * time.Millisecond

	// DefaultPushbulletURL is the push API root.
	DefaultPushbulletURL = "https://api.pushbullet.com"
	// DefaultTelegramURL is the bot API root.
	DefaultTelegramURL = "https://api.telegram.org"
	// DefaultSendTimeout bounds one notifier call.
	DefaultSendTimeout = 10 * time.Second
	// DefaultQueueSize is the dispatcher queue capacity.
	DefaultQueueSize = 16

	// DefaultLocationURL is the geolocation-by-IP endpoint.
	DefaultLocationURL = "http://ip-api.com/json/"
	// DefaultLocationTimeout bounds the location lookup during an escalation.
	DefaultLocationTimeout = 3 * time.Second

	// DefaultFilePermissions is the mode of files written by the monitor.
	DefaultFilePermissions = 0o600

	// Audio sink variants.
	SinkAuto    = "auto"
	SinkTone    = "tone"
	SinkProcess = "process"
	SinkBell    = "bell"

	// Journal drivers.
	JournalFile   = "file"
	JournalSQLite = "sqlite"
	JournalNone   = "none"

	// Tone generators accept frequencies in this range.
	minBeepFrequency = 37
	maxBeepFrequency = 32767
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errNegativeThreshold is returned for thresholds below zero.
	errNegativeThreshold = errors.New("thresholds must not be negative")
	// errBeepFrequency is returned for pitches a tone generator cannot produce.
	errBeepFrequency = errors.New("beep frequency out of range")
	// errUnknownSink is returned for an unsupported audio sink name.
	errUnknownSink = errors.New("unknown audio sink")
	// errUnknownJournal is returned for an unsupported journal driver.
	errUnknownJournal = errors.New("unknown journal driver")
	// errFrameSize is returned for non-positive capture dimensions.
	errFrameSize = errors.New("frame size must be positive")
)

// Default returns the settings the monitor uses when nothing else is configured.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Alert: AlertConfig{
			AlertThreshold: DefaultAlertThreshold,
			CallThreshold:  DefaultCallThreshold,
			BeepFrequency:  DefaultBeepFrequency,
			BeepDuration:   DefaultBeepDuration,
			PulseInterval:  DefaultPulseInterval,
			Sink:           SinkAuto,
		},
		Classifier: ClassifierConfig{
			Address: DefaultClassifierAddress,
			Timeout: DefaultClassifierTimeout,
		},
		Capture: CaptureConfig{
			Device:        defaultDevice(),
			InputFormat:   defaultInputFormat(),
			FFmpegPath:    "ffmpeg",
			Width:         DefaultFrameSize,
			Height:        DefaultFrameSize,
			FrameInterval: DefaultFrameInterval,
		},
		Notifications: NotificationsConfig{
			PushbulletURL: DefaultPushbulletURL,
			TelegramURL:   DefaultTelegramURL,
			SendTimeout:   DefaultSendTimeout,
			QueueSize:     DefaultQueueSize,
		},
		Location: LocationConfig{
			URL:     DefaultLocationURL,
			Timeout: DefaultLocationTimeout,
		},
		Journal: JournalConfig{
			Driver: JournalFile,
			DSN:    DefaultJournalFilename,
		},
	}
}

// Load reads settings from path on top of the defaults and validates them.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	cfg := Default()
	if err = yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err = Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes cfg to path as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Tokens live in this file, keep it private.
	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate rejects unusable settings and fills zero values with defaults.
//
//nolint:cyclop // A flat list of field checks reads better than helpers.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.Alert.AlertThreshold < 0 || cfg.Alert.CallThreshold < 0 {
		return errNegativeThreshold
	}

	if cfg.Alert.BeepFrequency == 0 {
		cfg.Alert.BeepFrequency = DefaultBeepFrequency
	}

	if cfg.Alert.BeepFrequency < minBeepFrequency || cfg.Alert.BeepFrequency > maxBeepFrequency {
		return fmt.Errorf("%w: %d Hz", errBeepFrequency, cfg.Alert.BeepFrequency)
	}

	if cfg.Alert.BeepDuration <= 0 {
		cfg.Alert.BeepDuration = DefaultBeepDuration
	}

	if cfg.Alert.PulseInterval <= 0 {
		cfg.Alert.PulseInterval = DefaultPulseInterval
	}

	switch strings.ToLower(cfg.Alert.Sink) {
	case "":
		cfg.Alert.Sink = SinkAuto
	case SinkAuto, SinkTone, SinkProcess, SinkBell:
		cfg.Alert.Sink = strings.ToLower(cfg.Alert.Sink)
	default:
		return fmt.Errorf("%w: %q", errUnknownSink, cfg.Alert.Sink)
	}

	if cfg.Classifier.Timeout <= 0 {
		cfg.Classifier.Timeout = DefaultClassifierTimeout
	}

	if cfg.Capture.Width < 0 || cfg.Capture.Height < 0 {
		return errFrameSize
	}

	if cfg.Capture.Width == 0 {
		cfg.Capture.Width = DefaultFrameSize
	}

	if cfg.Capture.Height == 0 {
		cfg.Capture.Height = DefaultFrameSize
	}

	if cfg.Capture.FrameInterval <= 0 {
		cfg.Capture.FrameInterval = DefaultFrameInterval
	}

	if cfg.Capture.FFmpegPath == "" {
		cfg.Capture.FFmpegPath = "ffmpeg"
	}

	if cfg.Notifications.SendTimeout <= 0 {
		cfg.Notifications.SendTimeout = DefaultSendTimeout
	}

	if cfg.Notifications.QueueSize <= 0 {
		cfg.Notifications.QueueSize = DefaultQueueSize
	}

	if cfg.Notifications.PushbulletURL == "" {
		cfg.Notifications.PushbulletURL = DefaultPushbulletURL
	}

	if cfg.Notifications.TelegramURL == "" {
		cfg.Notifications.TelegramURL = DefaultTelegramURL
	}

	if cfg.Location.Timeout <= 0 {
		cfg.Location.Timeout = DefaultLocationTimeout
	}

	if cfg.Location.URL == "" {
		cfg.Location.URL = DefaultLocationURL
	}

	if _, err := url.ParseRequestURI(cfg.Location.URL); err != nil {
		return fmt.Errorf("invalid location URL: %w", err)
	}

	return validateJournal(&cfg.Journal)
}

// validateJournal normalizes the journal driver and its default DSN.
func validateJournal(j *JournalConfig) error {
	j.Driver = strings.ToLower(strings.TrimSpace(j.Driver))

	switch j.Driver {
	case "":
		j.Driver = JournalFile
	case JournalFile, JournalSQLite, JournalNone:
	default:
		return fmt.Errorf("%w: %q", errUnknownJournal, j.Driver)
	}

	if j.Driver == JournalFile && j.DSN == "" {
		j.DSN = DefaultJournalFilename
	}

	return nil
}

// Warnings lists accepted but suspicious settings worth logging at startup.
func Warnings(cfg *Config) []string {
	var warnings []string

	if cfg.Alert.CallThreshold < cfg.Alert.AlertThreshold {
		warnings = append(warnings, fmt.Sprintf(
			"call_threshold (%s) is below alert_threshold (%s): the escalation may fire before the alarm",
			cfg.Alert.CallThreshold, cfg.Alert.AlertThreshold))
	}

	if cfg.Notifications.PushbulletToken == "" {
		warnings = append(warnings, "pushbullet_token is empty: alarm pushes are disabled")
	}

	if cfg.Notifications.TelegramToken == "" || cfg.Notifications.TelegramChatID == "" {
		warnings = append(warnings, "telegram_token or telegram_chat_id is empty: escalation messages are disabled")
	}

	return warnings
}
