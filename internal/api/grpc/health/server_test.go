package health

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/oshokin/drowsiness-monitor/internal/domain/drowsiness"
)

// serve runs the server on an in-memory listener and returns a dialer for it.
func serve(t *testing.T, s *Server) grpc.DialOption {
	t.Helper()

	listener := bufconn.Listen(1 << 16)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan error, 1)

	go func() {
		stopped <- s.ServeListener(ctx, listener)
	}()

	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-stopped)
	})

	return grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return listener.DialContext(ctx)
	})
}

// TestGetStatus_Unpublished checks the Unavailable answer before the first snapshot.
func TestGetStatus_Unpublished(t *testing.T) {
	t.Parallel()

	_, err := NewServer().GetStatus(t.Context(), new(emptypb.Empty))
	require.Equal(t, codes.Unavailable, status.Code(err))
}

// TestStatusRoundTrip checks the struct encoding of a snapshot.
func TestStatusRoundTrip(t *testing.T) {
	t.Parallel()

	in := &drowsiness.Status{
		State:           drowsiness.StateAlertActive,
		Level:           drowsiness.LevelWarning,
		EpisodeID:       12,
		EpisodeDuration: 1400 * time.Millisecond,
		AlertFired:      true,
		UpdatedAt:       time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC),
	}

	out, err := fromProtoStatus(toProtoStatus(in))
	require.NoError(t, err)
	require.Equal(t, in, out)
}

// TestQuery checks health and status over a real gRPC connection.
func TestQuery(t *testing.T) {
	t.Parallel()

	s := NewServer()
	dialer := serve(t, s)

	report, err := Query(t.Context(), "passthrough:///bufnet", dialer)
	require.NoError(t, err)
	require.False(t, report.Serving)
	require.Nil(t, report.Status)

	s.SetServing(true)
	s.Publish(drowsiness.Status{
		State:           drowsiness.StateEscalated,
		Level:           drowsiness.LevelCritical,
		EpisodeID:       3,
		EpisodeDuration: 6 * time.Second,
		AlertFired:      true,
		EscalationFired: true,
	})

	report, err = Query(t.Context(), "passthrough:///bufnet", dialer)
	require.NoError(t, err)
	require.True(t, report.Serving)
	require.NotNil(t, report.Status)
	require.Equal(t, drowsiness.StateEscalated, report.Status.State)
	require.Equal(t, drowsiness.LevelCritical, report.Status.Level)
	require.Equal(t, uint64(3), report.Status.EpisodeID)
	require.Equal(t, 6*time.Second, report.Status.EpisodeDuration)
	require.True(t, report.Status.EscalationFired)
}

// TestQuery_NoAddress checks the address requirement.
func TestQuery_NoAddress(t *testing.T) {
	t.Parallel()

	_, err := Query(t.Context(), "")
	require.ErrorIs(t, err, errAddressRequired)
}
