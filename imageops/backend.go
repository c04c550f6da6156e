//go:build !gocv

package imageops

import (
	"fmt"

	"github.com/gogpu/texbridge"
	"github.com/gogpu/texbridge/internal/filter"
)

// Backend names the implementation compiled into this build.
const Backend = "go"

func run(op Op, src *texbridge.PixelBuffer, p Params) (*texbridge.PixelBuffer, error) {
	im, err := checkSource(src)
	if err != nil {
		return nil, err
	}
	out, err := newLike(src)
	if err != nil {
		return nil, err
	}

	switch op {
	case Gaussian:
		err = filter.Gaussian(out.Data(), src.Data(), im, p.KernelSize, p.Sigma)
	case Median:
		err = filter.Median(out.Data(), src.Data(), im, p.KernelSize)
	case Bilateral:
		err = filter.Bilateral(out.Data(), src.Data(), im, p.Diameter, p.SigmaColor, p.SigmaSpace)
	default:
		err = fmt.Errorf("unknown operation %d", uint8(op))
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}
