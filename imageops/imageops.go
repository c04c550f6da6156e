// Package imageops applies smoothing operations to pixel buffers.
//
// The default build uses the pure-Go filters in internal/filter. Building
// with the gocv tag routes the same operations through OpenCV.
//
// Every operation fails independently: on error the destination buffer is
// left untouched, the error wraps texbridge.ErrProcessing, and a warning is
// logged through texbridge.Logger. Callers processing a stream can ignore
// the error and continue with the next frame.
package imageops

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gogpu/texbridge"
	"github.com/gogpu/texbridge/internal/filter"
)

// Op identifies an image operation.
type Op uint8

const (
	// Gaussian blurs with a separable Gaussian kernel.
	Gaussian Op = iota + 1
	// Median replaces each sample by its neighborhood median.
	Median
	// Bilateral smooths while preserving edges.
	Bilateral
)

func (o Op) String() string {
	switch o {
	case Gaussian:
		return "gaussian"
	case Median:
		return "median"
	case Bilateral:
		return "bilateral"
	default:
		return fmt.Sprintf("Op(%d)", uint8(o))
	}
}

// ParseOp returns the operation named s (case-insensitive).
func ParseOp(s string) (Op, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gaussian", "blur":
		return Gaussian, nil
	case "median":
		return Median, nil
	case "bilateral":
		return Bilateral, nil
	}
	return 0, fmt.Errorf("imageops: unknown operation %q", s)
}

// Params holds the parameters of all operations; each operation reads only
// its own fields.
type Params struct {
	// KernelSize is the Gaussian and median window size. Gaussian accepts 0
	// to derive it from Sigma; median requires an odd value >= 3.
	KernelSize int
	// Sigma is the Gaussian standard deviation. 0 derives it from
	// KernelSize.
	Sigma float64

	// Diameter is the bilateral neighborhood diameter. 0 derives it from
	// SigmaSpace.
	Diameter   int
	SigmaColor float64
	SigmaSpace float64
}

// DefaultParams returns sensible parameters for op.
func DefaultParams(op Op) Params {
	switch op {
	case Gaussian:
		return Params{KernelSize: 5, Sigma: 1.5}
	case Median:
		return Params{KernelSize: 5}
	case Bilateral:
		return Params{Diameter: 9, SigmaColor: 75, SigmaSpace: 75}
	default:
		return Params{}
	}
}

// Apply runs op on src and stores the result in dst, which adopts src's
// shape. src and dst may be the same buffer. On failure dst is unchanged.
func Apply(op Op, src, dst *texbridge.PixelBuffer, p Params) error {
	if dst == nil {
		return fmt.Errorf("%w: %s: nil destination", texbridge.ErrProcessing, op)
	}
	out, err := run(op, src, p)
	if err != nil {
		err = fmt.Errorf("%w: %s: %w", texbridge.ErrProcessing, op, err)
		texbridge.Logger().Warn("imageops: operation failed", "op", op.String(), "err", err)
		return err
	}
	dst.CopyFrom(out)
	return nil
}

// ApplyNew runs op on src and returns the result in a new buffer.
func ApplyNew(op Op, src *texbridge.PixelBuffer, p Params) (*texbridge.PixelBuffer, error) {
	dst := texbridge.Empty()
	if err := Apply(op, src, dst, p); err != nil {
		return nil, err
	}
	return dst, nil
}

// Step is one operation of a Chain.
type Step struct {
	Op     Op
	Params Params
}

// Chain applies steps to buf in place, in order. A failing step is skipped
// and the remaining steps still run; the returned error joins all step
// failures.
func Chain(buf *texbridge.PixelBuffer, steps ...Step) error {
	var errs []error
	for _, s := range steps {
		if err := Apply(s.Op, buf, buf, s.Params); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}

// checkSource validates the buffer layouts both backends accept.
func checkSource(src *texbridge.PixelBuffer) (filter.Image, error) {
	if src == nil || src.IsEmpty() {
		return filter.Image{}, texbridge.ErrEmptyBuffer
	}
	if src.Dims() != 2 {
		return filter.Image{}, fmt.Errorf("%w: %d-D buffer", texbridge.ErrUnsupportedFormat, src.Dims())
	}
	if src.ChannelType() != texbridge.ChannelU8 {
		return filter.Image{}, fmt.Errorf("%w: channel type %s", texbridge.ErrUnsupportedFormat, src.ChannelType())
	}
	return filter.Image{Width: src.Cols(), Height: src.Rows(), Channels: src.Channels()}, nil
}

// newLike allocates an empty buffer with src's shape.
func newLike(src *texbridge.PixelBuffer) (*texbridge.PixelBuffer, error) {
	return texbridge.NewPixelBuffer(src.Rows(), src.Cols(), src.ChannelType(), src.Channels())
}
