package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/gogpu/texbridge"
)

// RawSource reads tightly packed frames of a fixed shape from a reader,
// such as the stdout of a decoder writing rawvideo.
type RawSource struct {
	r        io.Reader
	width    int
	height   int
	channels int
	st       stamper
	closed   atomic.Bool

	bytesRead atomic.Uint64
}

// NewRawSource returns a source reading width×height frames of 8-bit
// samples with the given channel count (1 gray, 3 BGR, 4 BGRA).
func NewRawSource(r io.Reader, width, height, channels int) (*RawSource, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", texbridge.ErrInvalidDimensions, width, height)
	}
	if channels != 1 && channels != 3 && channels != 4 {
		return nil, fmt.Errorf("%w: %d channels", texbridge.ErrInvalidDimensions, channels)
	}
	return &RawSource{r: r, width: width, height: height, channels: channels}, nil
}

// FrameSize returns the byte length of one frame.
func (s *RawSource) FrameSize() int { return s.width * s.height * s.channels }

// Size returns the frame dimensions.
func (s *RawSource) Size() (width, height int) { return s.width, s.height }

// BytesRead returns the number of bytes consumed so far.
func (s *RawSource) BytesRead() uint64 { return s.bytesRead.Load() }

// Next reads one frame. A stream ending exactly at a frame boundary yields
// io.EOF; a truncated last frame yields io.ErrUnexpectedEOF.
func (s *RawSource) Next(ctx context.Context) (*Frame, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	buf, err := texbridge.NewPixelBuffer(s.height, s.width, texbridge.ChannelU8, s.channels)
	if err != nil {
		return nil, err
	}
	n, err := io.ReadFull(s.r, buf.Data())
	s.bytesRead.Add(uint64(n))
	switch {
	case err == nil:
		return s.st.frame(buf), nil
	case errors.Is(err, io.EOF):
		return nil, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		return nil, fmt.Errorf("capture: truncated frame (%d of %d bytes): %w", n, s.FrameSize(), err)
	default:
		if s.closed.Load() {
			return nil, ErrClosed
		}
		return nil, fmt.Errorf("capture: read frame: %w", err)
	}
}

// Close marks the source closed. It closes the reader when it is an
// io.Closer.
func (s *RawSource) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	if c, ok := s.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
