package health

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/drowsiness-monitor/internal/domain/drowsiness"
	"github.com/oshokin/drowsiness-monitor/internal/logger"
)

const (
	// ServiceName is the status service name, also used as the health service key.
	ServiceName = "drowsiness.v1.MonitorService"
	// GetStatusMethod is the full method path of the status call.
	GetStatusMethod = "/" + ServiceName + "/GetStatus"
)

// Server holds the health registry and the latest published status.
type Server struct {
	// health is the grpc-go health implementation.
	health *grpchealth.Server
	// status is the latest snapshot published by the primary loop.
	status atomic.Pointer[drowsiness.Status]
}

// NewServer creates a server that reports NOT_SERVING until SetServing(true).
func NewServer() *Server {
	s := &Server{health: grpchealth.NewServer()}
	s.SetServing(false)

	return s
}

// Register attaches the health and status services to a gRPC server.
func (s *Server) Register(grpcServer *grpc.Server) {
	healthpb.RegisterHealthServer(grpcServer, s.health)
	grpcServer.RegisterService(&grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*any)(nil),
		Methods: []grpc.MethodDesc{{
			MethodName: "GetStatus",
			Handler: func(_ any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
				in := new(emptypb.Empty)
				if err := dec(in); err != nil {
					return nil, err
				}

				return s.GetStatus(ctx, in)
			},
		}},
	}, s)
}

// SetServing flips the overall and the monitor service health.
func (s *Server) SetServing(serving bool) {
	value := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		value = healthpb.HealthCheckResponse_SERVING
	}

	s.health.SetServingStatus("", value)
	s.health.SetServingStatus(ServiceName, value)
}

// Publish stores the snapshot returned by subsequent status calls.
func (s *Server) Publish(snapshot drowsiness.Status) {
	s.status.Store(&snapshot)
}

// GetStatus returns the latest snapshot; Unavailable until the first one is published.
func (s *Server) GetStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	snapshot := s.status.Load()
	if snapshot == nil {
		return nil, status.Error(codes.Unavailable, "no status published yet")
	}

	return toProtoStatus(snapshot), nil
}

// Serve listens on address and blocks until ctx is canceled or the server fails.
func (s *Server) Serve(ctx context.Context, address string) error {
	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", address, err)
	}

	logger.InfoKV(ctx, "Health server listening", "listen_address", address)

	return s.ServeListener(ctx, lis)
}

// ServeListener serves on an existing listener until ctx is canceled.
func (s *Server) ServeListener(ctx context.Context, lis net.Listener) error {
	grpcServer := grpc.NewServer()
	s.Register(grpcServer)

	// Closed after GracefulStop so Serve returns only once the server is down.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		s.health.Shutdown()
		grpcServer.GracefulStop()
		close(done)
	}()

	if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	<-done
	logger.Info(ctx, "Health server stopped")

	return nil
}

// toProtoStatus converts a snapshot to its wire form.
func toProtoStatus(snapshot *drowsiness.Status) *structpb.Struct {
	fields := map[string]*structpb.Value{
		"state":            structpb.NewStringValue(snapshot.State.String()),
		"level":            structpb.NewStringValue(snapshot.Level.String()),
		"episode_id":       structpb.NewNumberValue(float64(snapshot.EpisodeID)),
		"episode_duration": structpb.NewStringValue(snapshot.EpisodeDuration.String()),
		"alert_fired":      structpb.NewBoolValue(snapshot.AlertFired),
		"escalation_fired": structpb.NewBoolValue(snapshot.EscalationFired),
	}

	if !snapshot.UpdatedAt.IsZero() {
		fields["updated_at"] = structpb.NewStringValue(snapshot.UpdatedAt.UTC().Format(time.RFC3339Nano))
	}

	return &structpb.Struct{Fields: fields}
}

// fromProtoStatus converts the wire form back to a snapshot.
func fromProtoStatus(message *structpb.Struct) (*drowsiness.Status, error) {
	fields := message.GetFields()

	snapshot := &drowsiness.Status{
		State:           drowsiness.ParseState(fields["state"].GetStringValue()),
		Level:           drowsiness.ParseLevel(fields["level"].GetStringValue()),
		EpisodeID:       uint64(fields["episode_id"].GetNumberValue()),
		AlertFired:      fields["alert_fired"].GetBoolValue(),
		EscalationFired: fields["escalation_fired"].GetBoolValue(),
	}

	if raw := fields["episode_duration"].GetStringValue(); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("parse episode_duration: %w", err)
		}

		snapshot.EpisodeDuration = duration
	}

	if raw := fields["updated_at"].GetStringValue(); raw != "" {
		updatedAt, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("parse updated_at: %w", err)
		}

		snapshot.UpdatedAt = updatedAt
	}

	return snapshot, nil
}
