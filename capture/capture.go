// Package capture produces pixel buffers from video streams and drives them
// through image operations into texture sinks.
//
// A Source yields one Frame per call. RawSource reads fixed-size frames
// from any io.Reader, FFmpegSource decodes files and devices through an
// ffmpeg child process, and OpenCVSource (gocv build tag) wraps
// cv::VideoCapture. Loop pulls frames from a Source at a fixed rate and
// publishes them with a texbridge.Coordinator.
package capture

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/gogpu/texbridge"
)

// ErrClosed is returned by Next after Close.
var ErrClosed = errors.New("capture: source closed")

// Frame is one decoded video frame.
type Frame struct {
	// Seq is the monotonic sequence number, starting at 1.
	Seq uint64
	// Timestamp is when the frame was decoded.
	Timestamp time.Time
	// TraceID follows the frame through processing and publishing logs.
	TraceID uuid.UUID
	// Buffer holds the pixels: 2-D, 8-bit, BGR or gray.
	Buffer *texbridge.PixelBuffer
}

// Source produces frames. Next blocks until a frame is available and
// returns io.EOF at the end of the stream. Implementations are not safe
// for concurrent use.
type Source interface {
	Next(ctx context.Context) (*Frame, error)
	Close() error
}

// stamper assigns sequence numbers and trace IDs.
type stamper struct {
	seq atomic.Uint64
}

func (s *stamper) frame(buf *texbridge.PixelBuffer) *Frame {
	return &Frame{
		Seq:       s.seq.Add(1),
		Timestamp: time.Now(),
		TraceID:   uuid.New(),
		Buffer:    buf,
	}
}
