//go:build gocv

package imageops

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/gogpu/texbridge"
)

// Backend names the implementation compiled into this build.
const Backend = "opencv"

var matTypes = [...]gocv.MatType{
	1: gocv.MatTypeCV8UC1,
	2: gocv.MatTypeCV8UC2,
	3: gocv.MatTypeCV8UC3,
	4: gocv.MatTypeCV8UC4,
}

func run(op Op, src *texbridge.PixelBuffer, p Params) (*texbridge.PixelBuffer, error) {
	im, err := checkSource(src)
	if err != nil {
		return nil, err
	}

	in, err := gocv.NewMatFromBytes(im.Height, im.Width, matTypes[im.Channels], src.Data())
	if err != nil {
		return nil, err
	}
	defer in.Close()
	res := gocv.NewMat()
	defer res.Close()

	switch op {
	case Gaussian:
		if p.KernelSize > 0 && p.KernelSize%2 == 0 {
			return nil, fmt.Errorf("gaussian kernel size %d must be odd", p.KernelSize)
		}
		err = gocv.GaussianBlur(in, &res, image.Pt(p.KernelSize, p.KernelSize), p.Sigma, p.Sigma, gocv.BorderReplicate)
	case Median:
		if p.KernelSize < 3 || p.KernelSize%2 == 0 {
			return nil, fmt.Errorf("median kernel size %d must be odd and >= 3", p.KernelSize)
		}
		err = gocv.MedianBlur(in, &res, p.KernelSize)
	case Bilateral:
		if im.Channels != 1 && im.Channels != 3 {
			return nil, fmt.Errorf("%w: bilateral needs 1 or 3 channels, got %d", texbridge.ErrUnsupportedFormat, im.Channels)
		}
		err = gocv.BilateralFilter(in, &res, p.Diameter, p.SigmaColor, p.SigmaSpace)
	default:
		err = fmt.Errorf("unknown operation %d", uint8(op))
	}
	if err != nil {
		return nil, err
	}
	if res.Empty() {
		return nil, errors.New("opencv returned an empty result")
	}

	out, err := newLike(src)
	if err != nil {
		return nil, err
	}
	data := res.ToBytes()
	if len(data) != len(out.Data()) {
		return nil, fmt.Errorf("opencv result has %d bytes, want %d", len(data), len(out.Data()))
	}
	copy(out.Data(), data)
	return out, nil
}
