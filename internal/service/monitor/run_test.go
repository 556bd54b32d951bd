package monitor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/drowsiness-monitor/internal/config"
	"github.com/oshokin/drowsiness-monitor/internal/domain/drowsiness"
	"github.com/oshokin/drowsiness-monitor/internal/service/capture"
	"github.com/oshokin/drowsiness-monitor/internal/service/classifier"
)

var errCameraUnplugged = errors.New("camera unplugged")

// scriptedSource returns one frame per step; a frame's first pixel encodes the label.
type scriptedSource struct {
	steps []drowsiness.Sample
	err   error
	next  int
}

func (s *scriptedSource) Read(context.Context) (*drowsiness.Frame, error) {
	if s.next >= len(s.steps) {
		if s.err != nil {
			return nil, s.err
		}

		return nil, capture.ErrEndOfStream
	}

	step := s.steps[s.next]
	s.next++

	pixel := byte(0)
	if step.Drowsy() {
		pixel = 255
	}

	return &drowsiness.Frame{Width: 1, Height: 1, Pixels: []byte{pixel}, CapturedAt: step.Timestamp}, nil
}

func (s *scriptedSource) Close() error { return nil }

// brightnessClassifier labels bright frames as drowsy.
type brightnessClassifier struct {
	err   error
	calls int
}

func (c *brightnessClassifier) Classify(_ context.Context, tensor drowsiness.Tensor) (drowsiness.Label, error) {
	c.calls++

	if c.err != nil {
		return drowsiness.LabelNormal, c.err
	}

	if tensor.Data[0] > 0.5 {
		return drowsiness.LabelDrowsy, nil
	}

	return drowsiness.LabelNormal, nil
}

// recordingPublisher keeps every published status.
type recordingPublisher struct {
	statuses []drowsiness.Status
}

func (p *recordingPublisher) Publish(status drowsiness.Status) {
	p.statuses = append(p.statuses, status)
}

// TestLoop_EndToEnd checks that frames flow through the classifier into the machine.
func TestLoop_EndToEnd(t *testing.T) {
	t.Parallel()

	source := &scriptedSource{steps: []drowsiness.Sample{drowsy(0), drowsy(600), drowsy(1400), normal(1500)}}
	model := new(brightnessClassifier)
	publisher := new(recordingPublisher)
	m, a, d := newTestMachine(defaultThresholds)

	require.NoError(t, Loop(t.Context(), source, model, m, publisher))

	require.Equal(t, 4, model.calls)
	require.Equal(t, []drowsiness.EventKind{drowsiness.EventAlarm, drowsiness.EventResolved}, d.kinds())
	require.Equal(t, 1, a.stops)
	require.Len(t, publisher.statuses, 4)
	require.Equal(t, drowsiness.StateAlertActive, publisher.statuses[2].State)
	require.Equal(t, drowsiness.StateIdle, publisher.statuses[3].State)
}

// TestLoop_DeviceError checks that a read failure ends the loop with the error.
func TestLoop_DeviceError(t *testing.T) {
	t.Parallel()

	source := &scriptedSource{
		steps: []drowsiness.Sample{drowsy(0)},
		err:   errors.Join(capture.ErrDevice, errCameraUnplugged),
	}
	m, _, _ := newTestMachine(defaultThresholds)

	err := Loop(t.Context(), source, new(brightnessClassifier), m, nil)
	require.ErrorIs(t, err, capture.ErrDevice)
	require.ErrorIs(t, err, errCameraUnplugged)
	require.Equal(t, drowsiness.StateDrowsy, m.State())
}

// TestLoop_InferenceError checks that a classifier failure ends the loop with the error.
func TestLoop_InferenceError(t *testing.T) {
	t.Parallel()

	source := &scriptedSource{steps: []drowsiness.Sample{drowsy(0)}}
	model := &brightnessClassifier{err: classifier.ErrInference}
	m, _, _ := newTestMachine(defaultThresholds)

	err := Loop(t.Context(), source, model, m, nil)
	require.ErrorIs(t, err, classifier.ErrInference)
	require.Equal(t, drowsiness.StateIdle, m.State())
}

// TestLoop_Canceled checks that cancellation is a clean exit even when the source fails.
func TestLoop_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	source := &scriptedSource{err: capture.ErrDevice}
	m, _, _ := newTestMachine(defaultThresholds)

	require.NoError(t, Loop(ctx, source, new(brightnessClassifier), m, nil))
}

// TestLoadSettings checks that a missing file is created and secrets come from the env file.
func TestLoadSettings(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	configPath := filepath.Join(dir, "settings.yaml")
	envPath := filepath.Join(dir, ".env")

	require.NoError(t, os.WriteFile(envPath, []byte("DROWSY_TELEGRAM_CHAT_ID=4242\n"), 0o600))

	cfg := LoadSettings(t.Context(), configPath, envPath)
	require.FileExists(t, configPath)
	require.Equal(t, config.DefaultAlertThreshold, cfg.Alert.AlertThreshold)
	require.Equal(t, "4242", cfg.Notifications.TelegramChatID)
}

// TestNewNotifiers checks that notifiers without credentials are disabled.
func TestNewNotifiers(t *testing.T) {
	t.Parallel()

	push, messaging := NewNotifiers(config.NotificationsConfig{})
	require.Nil(t, push)
	require.Nil(t, messaging)

	push, messaging = NewNotifiers(config.NotificationsConfig{PushbulletToken: "p", TelegramToken: "t"})
	require.NotNil(t, push)
	require.Nil(t, messaging)

	push, messaging = NewNotifiers(config.NotificationsConfig{TelegramToken: "t", TelegramChatID: "1"})
	require.Nil(t, push)
	require.Equal(t, "telegram", messaging.Name())
}

// TestNewAlarm checks that a forced bell sink builds a stopped controller.
func TestNewAlarm(t *testing.T) {
	t.Parallel()

	cfg := config.Default().Alert
	cfg.Sink = config.SinkBell

	controller, err := NewAlarm(t.Context(), cfg, new(strings.Builder))
	require.NoError(t, err)
	require.False(t, controller.IsRunning())
	require.NoError(t, controller.Close())
}

// TestWatchQuitKey checks that only the quit line cancels.
func TestWatchQuitKey(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	WatchQuitKey(ctx, strings.NewReader("hello\n\n"), cancel)
	require.NoError(t, ctx.Err())

	WatchQuitKey(ctx, strings.NewReader("x\n Q \nmore\n"), cancel)
	require.ErrorIs(t, ctx.Err(), context.Canceled)
}

