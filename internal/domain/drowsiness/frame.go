package drowsiness

import "time"

// Frame is one 8-bit grayscale image, row-major.
type Frame struct {
	// Width is the image width in pixels.
	Width int
	// Height is the image height in pixels.
	Height int
	// Pixels holds Width*Height luminance bytes.
	Pixels []byte
	// CapturedAt is when the frame was read from the source.
	CapturedAt time.Time
}

// Tensor is the classifier input: a single-channel image scaled to [0, 1],
// laid out as NCHW with N = C = 1.
type Tensor struct {
	// Width is the image width.
	Width int
	// Height is the image height.
	Height int
	// Data holds Width*Height normalized values.
	Data []float32
}
