package config

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/oshokin/drowsiness-monitor/internal/logger"
)

// Environment variables that override notifier secrets.
const (
	EnvPushbulletToken = "DROWSY_PUSHBULLET_TOKEN"
	EnvTelegramToken   = "DROWSY_TELEGRAM_TOKEN"
	EnvTelegramChatID  = "DROWSY_TELEGRAM_CHAT_ID"
)

// LoadOrCreate returns usable settings no matter what is on disk.
// A missing file is created with defaults; any other failure is logged and the
// defaults are used in memory.
func LoadOrCreate(ctx context.Context, path string) *Config {
	if path == "" {
		path = DefaultConfigFilename
	}

	cfg, err := Load(path)
	if err == nil {
		return cfg
	}

	cfg = Default()

	if !errors.Is(err, os.ErrNotExist) {
		logger.ErrorKV(ctx, "Settings are unusable, running with defaults", "path", path, "error", err)

		return cfg
	}

	if err = Save(path, cfg); err != nil {
		logger.ErrorKV(ctx, "Unable to create default settings", "path", path, "error", err)

		return cfg
	}

	logger.InfoKV(ctx, "Created default settings", "path", filepath.Clean(path))

	return cfg
}

// ReadEnv collects notifier secrets from a dotenv file and the process environment.
// Process variables win over the file; a missing file is not an error.
func ReadEnv(path string) (map[string]string, error) {
	values := make(map[string]string, 3) //nolint:mnd // One slot per known variable.

	if path != "" {
		fileValues, err := godotenv.Read(path)

		switch {
		case err == nil:
			maps.Copy(values, fileValues)
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read env file: %w", err)
		}
	}

	for _, key := range []string{EnvPushbulletToken, EnvTelegramToken, EnvTelegramChatID} {
		if value, ok := os.LookupEnv(key); ok {
			values[key] = value
		}
	}

	return values, nil
}

// ApplyEnv overrides notifier secrets in cfg with non-empty values from env.
func ApplyEnv(cfg *Config, env map[string]string) {
	if v := env[EnvPushbulletToken]; v != "" {
		cfg.Notifications.PushbulletToken = v
	}

	if v := env[EnvTelegramToken]; v != "" {
		cfg.Notifications.TelegramToken = v
	}

	if v := env[EnvTelegramChatID]; v != "" {
		cfg.Notifications.TelegramChatID = v
	}
}
