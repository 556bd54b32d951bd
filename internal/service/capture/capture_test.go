package capture

import (
	"os"
	"path/filepath"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/drowsiness-monitor/internal/config"
	"github.com/oshokin/drowsiness-monitor/internal/domain/drowsiness"
)

// writeFrames writes n frames of width*height bytes, frame i filled with byte i, plus extra trailing bytes.
func writeFrames(t *testing.T, width, height, n, extra int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "frames.gray")

	var data []byte
	for i := range n {
		for range width * height {
			data = append(data, byte(i))
		}
	}

	data = append(data, make([]byte, extra)...)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	return path
}

// TestNormalize checks the [0, 1] scaling and the tensor shape.
func TestNormalize(t *testing.T) {
	t.Parallel()

	tensor := Normalize(&drowsiness.Frame{Width: 2, Height: 2, Pixels: []byte{0, 51, 255, 102}})
	require.Equal(t, 2, tensor.Width)
	require.Equal(t, 2, tensor.Height)
	require.Equal(t, []float32{0, 0.2, 1, 0.4}, tensor.Data)
}

// TestFileSource_Read checks frame order and the end of the stream on a partial frame.
func TestFileSource_Read(t *testing.T) {
	t.Parallel()

	path := writeFrames(t, 3, 2, 2, 4)

	source, err := NewFileSource(path, 3, 2)
	require.NoError(t, err)

	defer func() { require.NoError(t, source.Close()) }()

	for i := range 2 {
		frame, err := source.Read(t.Context())
		require.NoError(t, err)
		require.Equal(t, 3, frame.Width)
		require.Equal(t, 2, frame.Height)
		require.Equal(t, []byte{byte(i), byte(i), byte(i), byte(i), byte(i), byte(i)}, frame.Pixels)
	}

	_, err = source.Read(t.Context())
	require.ErrorIs(t, err, ErrEndOfStream)
}

// TestFileSource_Pace checks that replay waits the frame interval between frames.
func TestFileSource_Pace(t *testing.T) {
	t.Parallel()

	path := writeFrames(t, 2, 2, 3, 0)

	synctest.Test(t, func(t *testing.T) {
		source, err := NewFileSource(path, 2, 2, WithFrameInterval(100*time.Millisecond))
		require.NoError(t, err)

		defer func() { require.NoError(t, source.Close()) }()

		start := time.Now()

		var stamps []time.Duration

		for range 3 {
			frame, err := source.Read(t.Context())
			require.NoError(t, err)

			stamps = append(stamps, frame.CapturedAt.Sub(start))
		}

		require.Equal(t, []time.Duration{0, 100 * time.Millisecond, 200 * time.Millisecond}, stamps)
	})
}

// TestFileSource_Errors checks the open failures.
func TestFileSource_Errors(t *testing.T) {
	t.Parallel()

	_, err := NewFileSource(filepath.Join(t.TempDir(), "missing"), 2, 2)
	require.ErrorIs(t, err, ErrDevice)

	_, err = NewFileSource("whatever", 0, 2)
	require.ErrorIs(t, err, errFrameSize)
}

// TestOpen_File checks that a configured file wins over the camera.
func TestOpen_File(t *testing.T) {
	t.Parallel()

	cfg := config.Default().Capture
	cfg.Width, cfg.Height = 2, 2
	cfg.File = writeFrames(t, 2, 2, 1, 0)

	source, err := Open(t.Context(), cfg)
	require.NoError(t, err)
	require.IsType(t, &FileSource{}, source)
	require.NoError(t, source.Close())
}

// TestFFmpegOptions_Args checks the ffmpeg command line.
func TestFFmpegOptions_Args(t *testing.T) {
	t.Parallel()

	opts := FFmpegOptions{InputFormat: "v4l2", Device: "/dev/video0", Width: 64, Height: 48}
	require.Equal(t, []string{
		"-hide_banner", "-loglevel", "error", "-nostdin",
		"-f", "v4l2",
		"-i", "/dev/video0",
		"-vf", "scale=64:48,format=gray",
		"-f", "rawvideo",
		"-pix_fmt", "gray",
		"-",
	}, opts.args())

	opts.InputFormat = ""
	require.NotContains(t, opts.args()[:5], "v4l2")
}

// TestNewFFmpegSource_MissingBinary checks that a missing ffmpeg is a device error.
func TestNewFFmpegSource_MissingBinary(t *testing.T) {
	t.Parallel()

	_, err := NewFFmpegSource(t.Context(), FFmpegOptions{
		Path:   filepath.Join(t.TempDir(), "no-ffmpeg"),
		Device: "/dev/video0",
		Width:  64,
		Height: 64,
	})
	require.ErrorIs(t, err, ErrDevice)
}
