package integration

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/oshokin/drowsiness-monitor/internal/config"
	"github.com/oshokin/drowsiness-monitor/internal/repository/journal"
	"github.com/oshokin/drowsiness-monitor/internal/service/classifier"
	"github.com/oshokin/drowsiness-monitor/internal/service/monitor"
)

const frameEdge = 4

// reservePort returns a free local TCP address.
func reservePort(t *testing.T) string {
	t.Helper()

	lc := net.ListenConfig{}

	l, err := lc.Listen(t.Context(), "tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := l.Addr().String()
	require.NoError(t, l.Close())

	return addr
}

// startClassifier serves a classifier that calls bright frames drowsy.
func startClassifier(t *testing.T) string {
	t.Helper()

	lc := net.ListenConfig{}

	lis, err := lc.Listen(t.Context(), "tcp", "127.0.0.1:0")
	require.NoError(t, err)

	server := grpc.NewServer()
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: classifier.ServiceName,
		HandlerType: (*any)(nil),
		Methods: []grpc.MethodDesc{{
			MethodName: "Classify",
			Handler: func(_ any, _ context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
				in := new(wrapperspb.BytesValue)
				if err := dec(in); err != nil {
					return nil, err
				}

				tensor, err := classifier.DecodeTensor(in.GetValue(), frameEdge, frameEdge)
				if err != nil {
					return nil, err
				}

				if tensor.Data[0] > 0.5 {
					return structpb.NewList([]any{0.1, 0.9})
				}

				return structpb.NewList([]any{0.9, 0.1})
			},
		}},
	}, struct{}{})

	go func() {
		_ = server.Serve(lis)
	}()

	t.Cleanup(server.Stop)

	return lis.Addr().String()
}

// recorder captures JSON request bodies.
type recorder struct {
	mu     sync.Mutex
	bodies []map[string]any
}

func (r *recorder) handler(response string) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)

		var decoded map[string]any
		_ = json.Unmarshal(body, &decoded)

		r.mu.Lock()
		r.bodies = append(r.bodies, decoded)
		r.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, response)
	}
}

func (r *recorder) all() []map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]map[string]any(nil), r.bodies...)
}

// writeFrames stores drowsy bright frames followed by normal dark frames.
func writeFrames(t *testing.T, drowsy, normal int) string {
	t.Helper()

	var data []byte

	for i := range drowsy + normal {
		value := byte(0)
		if i < drowsy {
			value = 255
		}

		for range frameEdge * frameEdge {
			data = append(data, value)
		}
	}

	path := filepath.Join(t.TempDir(), "frames.gray")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	return path
}

// TestMonitor_ReplayEscalates replays a long drowsy run through the whole stack and checks
// the push, the escalation with the location link and the journaled episode.
func TestMonitor_ReplayEscalates(t *testing.T) {
	t.Parallel()

	var (
		pushes   = new(recorder)
		messages = new(recorder)
		lookups  = new(recorder)
	)

	pushServer := httptest.NewServer(pushes.handler(`{"active":true}`))
	defer pushServer.Close()

	telegramServer := httptest.NewServer(messages.handler(`{"ok":true}`))
	defer telegramServer.Close()

	locationServer := httptest.NewServer(lookups.handler(`{"status":"success","lat":48.8584,"lon":2.2945}`))
	defer locationServer.Close()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "settings.yaml")
	journalPath := filepath.Join(dir, "episodes.db")

	cfg := config.Default()
	cfg.Alert.AlertThreshold = 300 * time.Millisecond
	cfg.Alert.CallThreshold = 600 * time.Millisecond
	cfg.Alert.BeepDuration = 50 * time.Millisecond
	cfg.Alert.PulseInterval = 50 * time.Millisecond
	cfg.Alert.Sink = config.SinkBell
	cfg.Classifier.Address = startClassifier(t)
	cfg.Capture.File = writeFrames(t, 16, 3)
	cfg.Capture.Width = frameEdge
	cfg.Capture.Height = frameEdge
	cfg.Capture.FrameInterval = 50 * time.Millisecond
	cfg.Notifications.PushbulletToken = "push-token"
	cfg.Notifications.PushbulletURL = pushServer.URL
	cfg.Notifications.TelegramToken = "bot-token"
	cfg.Notifications.TelegramChatID = "777"
	cfg.Notifications.TelegramURL = telegramServer.URL
	cfg.Location.URL = locationServer.URL
	cfg.Journal = config.JournalConfig{Driver: config.JournalSQLite, DSN: journalPath}
	cfg.Health.Address = reservePort(t)
	require.NoError(t, config.Save(cfgPath, cfg))

	ctx, cancel := context.WithTimeout(t.Context(), 30*time.Second)
	defer cancel()

	err := monitor.Run(ctx, &monitor.Options{
		ConfigPath:  cfgPath,
		EnvPath:     filepath.Join(dir, "missing.env"),
		AlarmOutput: io.Discard,
	})
	require.NoError(t, err)

	require.Len(t, pushes.all(), 1)
	require.Equal(t, "note", pushes.all()[0]["type"])
	require.Contains(t, pushes.all()[0]["body"], "Driver is drowsy for")

	require.Len(t, lookups.all(), 1)
	require.Len(t, messages.all(), 1)
	require.Equal(t, "777", messages.all()[0]["chat_id"])
	require.Contains(t, messages.all()[0]["text"], "https://maps.google.com/?q=48.8584,2.2945")

	repo, err := journal.NewSQLiteRepository(t.Context(), journalPath)
	require.NoError(t, err)

	defer func() {
		require.NoError(t, repo.Close())
	}()

	records, err := repo.List(t.Context(), 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.True(t, records[0].AlertFired)
	require.True(t, records[0].EscalationFired)
	require.GreaterOrEqual(t, records[0].Duration, 600*time.Millisecond)
	require.NotNil(t, records[0].Actor)
}

// TestMonitor_ClassifierDown checks that an unreachable inference service stops the monitor with an error.
func TestMonitor_ClassifierDown(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "settings.yaml")

	cfg := config.Default()
	cfg.Alert.Sink = config.SinkBell
	cfg.Classifier.Address = reservePort(t)
	cfg.Classifier.Timeout = time.Second
	cfg.Capture.File = writeFrames(t, 1, 0)
	cfg.Capture.Width = frameEdge
	cfg.Capture.Height = frameEdge
	cfg.Journal.Driver = config.JournalNone
	require.NoError(t, config.Save(cfgPath, cfg))

	err := monitor.Run(t.Context(), &monitor.Options{
		ConfigPath:  cfgPath,
		EnvPath:     filepath.Join(dir, "missing.env"),
		AlarmOutput: io.Discard,
	})
	require.ErrorIs(t, err, classifier.ErrInference)
}
