package texbridge

import "errors"

// Publish and read-back errors. Failing operations wrap them with context;
// match with errors.Is.
var (
	// ErrEmptyBuffer is returned when publishing a buffer with no elements.
	ErrEmptyBuffer = errors.New("texbridge: empty buffer")

	// ErrUnsupportedFormat is returned for channel type and count pairs no
	// texture format accepts, and for buffers whose dimensionality the sink
	// cannot hold.
	ErrUnsupportedFormat = errors.New("texbridge: unsupported format")

	// ErrSizeMismatch is returned when a buffer does not fit a fixed-size
	// texture and resampling was not requested.
	ErrSizeMismatch = errors.New("texbridge: size mismatch")

	// ErrVolumeFormatMismatch is returned when a volume sink receives
	// anything other than a 3-D, single-channel, 8-bit unsigned buffer.
	ErrVolumeFormatMismatch = errors.New("texbridge: volume format mismatch")

	// ErrProcessing is returned by failing image operations.
	ErrProcessing = errors.New("texbridge: processing error")

	// ErrReadbackUnavailable is returned by ReadBack on sinks without CPU
	// read-back or without a texture.
	ErrReadbackUnavailable = errors.New("texbridge: readback unavailable")

	// ErrInvalidDimensions is returned for non-positive sizes and unsupported
	// channel counts.
	ErrInvalidDimensions = errors.New("texbridge: invalid dimensions")

	// ErrSinkClosed is returned when using a closed sink.
	ErrSinkClosed = errors.New("texbridge: sink closed")

	// ErrNotAllocated is returned when submitting to a sink that has no
	// texture yet.
	ErrNotAllocated = errors.New("texbridge: sink not allocated")
)
