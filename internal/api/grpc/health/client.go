package health

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/drowsiness-monitor/internal/domain/drowsiness"
)

// DefaultQueryTimeout bounds a status query when the caller sets no deadline.
const DefaultQueryTimeout = 3 * time.Second

// errAddressRequired is returned when no address is provided.
var errAddressRequired = errors.New("health address must be provided")

// Report is what a running monitor answers to a status query.
type Report struct {
	// Serving is true when the health service reports SERVING.
	Serving bool
	// Status is the latest snapshot, nil if none was published yet.
	Status *drowsiness.Status
}

// Query asks a running monitor for its health and latest status.
func Query(ctx context.Context, address string, dialOptions ...grpc.DialOption) (*Report, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, DefaultQueryTimeout)
		defer cancel()
	}

	options := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, dialOptions...)

	conn, err := grpc.NewClient(address, options...)
	if err != nil {
		return nil, fmt.Errorf("dial monitor: %w", err)
	}

	defer func() { _ = conn.Close() }()

	check, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return nil, fmt.Errorf("health check: %w", err)
	}

	report := &Report{Serving: check.GetStatus() == healthpb.HealthCheckResponse_SERVING}

	response := new(structpb.Struct)
	err = conn.Invoke(ctx, GetStatusMethod, new(emptypb.Empty), response)

	switch {
	case status.Code(err) == codes.Unavailable:
		// No frame classified yet.
		return report, nil
	case err != nil:
		return nil, fmt.Errorf("get status: %w", err)
	}

	report.Status, err = fromProtoStatus(response)
	if err != nil {
		return nil, err
	}

	return report, nil
}
