//go:build gocv

package capture

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"

	"gocv.io/x/gocv"

	"github.com/gogpu/texbridge"
)

// OpenCVSource reads frames through cv::VideoCapture.
type OpenCVSource struct {
	vc     *gocv.VideoCapture
	mat    gocv.Mat
	name   string
	st     stamper
	closed atomic.Bool
}

// OpenCamera opens capture device id. width and height request a capture
// resolution when positive; the device may pick another.
func OpenCamera(id, width, height int) (*OpenCVSource, error) {
	vc, err := gocv.VideoCaptureDevice(id)
	if err != nil {
		return nil, fmt.Errorf("capture: open device %d: %w", id, err)
	}
	if width > 0 && height > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(height))
	}
	return newOpenCVSource(vc, fmt.Sprintf("device:%d", id)), nil
}

// OpenVideoFile opens a video file or stream URL.
func OpenVideoFile(path string) (*OpenCVSource, error) {
	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("capture: open %s: %w", path, err)
	}
	return newOpenCVSource(vc, path), nil
}

func newOpenCVSource(vc *gocv.VideoCapture, name string) *OpenCVSource {
	texbridge.Logger().Info("capture: opencv opened", "source", name,
		"width", vc.Get(gocv.VideoCaptureFrameWidth),
		"height", vc.Get(gocv.VideoCaptureFrameHeight))
	return &OpenCVSource{vc: vc, mat: gocv.NewMat(), name: name}
}

// FPS returns the stream's nominal frame rate, or 0 if unknown.
func (s *OpenCVSource) FPS() float64 {
	return s.vc.Get(gocv.VideoCaptureFPS)
}

// Next grabs and decodes one frame. A failed grab on an opened stream is
// the end of the stream.
func (s *OpenCVSource) Next(ctx context.Context) (*Frame, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !s.vc.Read(&s.mat) || s.mat.Empty() {
		return nil, io.EOF
	}
	buf, err := texbridge.FromBytes([]int{s.mat.Rows(), s.mat.Cols()}, texbridge.ChannelU8, s.mat.Channels(), s.mat.ToBytes())
	if err != nil {
		return nil, fmt.Errorf("capture: %s: %w", s.name, err)
	}
	return s.st.frame(buf), nil
}

// Close releases the capture device.
func (s *OpenCVSource) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	_ = s.mat.Close()
	return s.vc.Close()
}
