package classifier

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/oshokin/drowsiness-monitor/internal/domain/drowsiness"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "drowsiness.v1.ClassifierService"
	// ClassifyMethod is the full method path of the Classify call.
	ClassifyMethod = "/" + ServiceName + "/Classify"
	// ShapeMetadataKey carries the tensor shape.
	ShapeMetadataKey = "x-tensor-shape"
	// DrowsyClass is the index of the drowsy score.
	DrowsyClass = 1
)

var (
	// ErrInference wraps every failure of a Classify call; it is fatal to the primary loop.
	ErrInference = errors.New("inference failed")
	// errAddressRequired is returned when no address is provided.
	errAddressRequired = errors.New("classifier address must be provided")
	// errNoScores is returned when the service answers with an empty score vector.
	errNoScores = errors.New("empty score vector")
	// errBadTensor is returned when the tensor data does not match its shape.
	errBadTensor = errors.New("tensor size does not match its shape")
)

// Client wraps the gRPC connection to the inference service.
type Client struct {
	// conn is the underlying gRPC connection.
	conn *grpc.ClientConn
	// callTimeout bounds a single Classify call.
	callTimeout time.Duration
	// dialOptions are extra options applied when dialing.
	dialOptions []grpc.DialOption
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a timeout for every Classify call.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithDialOptions appends gRPC dial options (custom dialers in tests, TLS).
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(c *Client) {
		c.dialOptions = append(c.dialOptions, opts...)
	}
}

// Dial creates a client for the service at address. The connection is established lazily.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	client := new(Client)
	for _, opt := range opts {
		opt(client)
	}

	dialOptions := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, client.dialOptions...)

	conn, err := grpc.NewClient(address, dialOptions...)
	if err != nil {
		return nil, fmt.Errorf("dial classifier: %w", err)
	}

	client.conn = conn

	return client, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// Classify sends the tensor and returns the winning label.
func (c *Client) Classify(ctx context.Context, tensor drowsiness.Tensor) (drowsiness.Label, error) {
	scores, err := c.Scores(ctx, tensor)
	if err != nil {
		return drowsiness.LabelNormal, err
	}

	class, err := Argmax(scores)
	if err != nil {
		return drowsiness.LabelNormal, fmt.Errorf("%w: %w", ErrInference, err)
	}

	return LabelOf(class), nil
}

// Scores returns the raw score vector for the tensor.
func (c *Client) Scores(ctx context.Context, tensor drowsiness.Tensor) ([]float64, error) {
	if len(tensor.Data) != tensor.Width*tensor.Height {
		return nil, fmt.Errorf("%w: %w", ErrInference, errBadTensor)
	}

	if c.callTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}

	ctx = metadata.AppendToOutgoingContext(ctx, ShapeMetadataKey, Shape(tensor))

	var (
		request  = wrapperspb.Bytes(EncodeTensor(tensor))
		response = new(structpb.ListValue)
	)

	if err := c.conn.Invoke(ctx, ClassifyMethod, request, response); err != nil {
		return nil, fmt.Errorf("%w: classify: %w", ErrInference, err)
	}

	values := response.GetValues()
	scores := make([]float64, 0, len(values))

	for _, v := range values {
		scores = append(scores, v.GetNumberValue())
	}

	return scores, nil
}

// Argmax returns the index of the highest score; ties go to the lowest index.
func Argmax(scores []float64) (int, error) {
	if len(scores) == 0 {
		return 0, errNoScores
	}

	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}

	return best, nil
}

// LabelOf maps a class index to a label.
func LabelOf(class int) drowsiness.Label {
	if class == DrowsyClass {
		return drowsiness.LabelDrowsy
	}

	return drowsiness.LabelNormal
}

// Shape renders the NCHW shape of the tensor for the metadata entry.
func Shape(tensor drowsiness.Tensor) string {
	return "1,1," + strconv.Itoa(tensor.Height) + "," + strconv.Itoa(tensor.Width)
}

// EncodeTensor serializes the tensor values as little-endian float32.
func EncodeTensor(tensor drowsiness.Tensor) []byte {
	const float32Size = 4

	buf := make([]byte, len(tensor.Data)*float32Size)
	for i, v := range tensor.Data {
		binary.LittleEndian.PutUint32(buf[i*float32Size:], math.Float32bits(v))
	}

	return buf
}

// DecodeTensor is the inverse of EncodeTensor for the given shape.
func DecodeTensor(data []byte, width, height int) (drowsiness.Tensor, error) {
	const float32Size = 4

	if len(data) != width*height*float32Size {
		return drowsiness.Tensor{}, errBadTensor
	}

	values := make([]float32, width*height)
	for i := range values {
		values[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*float32Size:]))
	}

	return drowsiness.Tensor{Width: width, Height: height, Data: values}, nil
}
