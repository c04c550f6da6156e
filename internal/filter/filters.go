package filter

import (
	"errors"
	"fmt"
	"math"
	"sync"
)

// ErrShape is returned when buffer lengths do not match the image shape.
var ErrShape = errors.New("filter: buffer does not match image shape")

// Image describes a tightly packed 8-bit image.
type Image struct {
	Width, Height, Channels int
}

func (im Image) check(dst, src []byte) error {
	if im.Width <= 0 || im.Height <= 0 || im.Channels < 1 || im.Channels > 4 {
		return fmt.Errorf("%w: %dx%d×%d", ErrShape, im.Width, im.Height, im.Channels)
	}
	n := im.Width * im.Height * im.Channels
	if len(src) != n || len(dst) != n {
		return fmt.Errorf("%w: src %d, dst %d, want %d", ErrShape, len(src), len(dst), n)
	}
	return nil
}

// tempPool holds float scratch planes for the separable Gaussian.
var tempPool = sync.Pool{
	New: func() any { return new([]float32) },
}

// Gaussian blurs src into dst with a separable kernel of size ksize and
// standard deviation sigma (see GaussianKernel). Edges are extended.
func Gaussian(dst, src []byte, im Image, ksize int, sigma float64) error {
	if err := im.check(dst, src); err != nil {
		return err
	}
	kernel := CachedGaussianKernel(ksize, sigma)
	if len(kernel) == 1 {
		copy(dst, src)
		return nil
	}

	w, h, ch := im.Width, im.Height, im.Channels
	tp := tempPool.Get().(*[]float32)
	defer tempPool.Put(tp)
	if cap(*tp) < len(src) {
		*tp = make([]float32, len(src))
	}
	temp := (*tp)[:len(src)]

	half := len(kernel) / 2

	// Horizontal pass: src -> temp.
	for y := 0; y < h; y++ {
		row := y * w
		for x := 0; x < w; x++ {
			for c := 0; c < ch; c++ {
				var acc float32
				for k, weight := range kernel {
					kx := clampInt(x+k-half, 0, w-1)
					acc += float32(src[(row+kx)*ch+c]) * weight
				}
				temp[(row+x)*ch+c] = acc
			}
		}
	}

	// Vertical pass: temp -> dst.
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			for c := 0; c < ch; c++ {
				var acc float32
				for k, weight := range kernel {
					ky := clampInt(y+k-half, 0, h-1)
					acc += temp[(ky*w+x)*ch+c] * weight
				}
				dst[(y*w+x)*ch+c] = clampUint8(acc)
			}
		}
	}
	return nil
}

// Median replaces every sample by the median of its ksize×ksize
// neighborhood, per channel. ksize must be odd and > 1.
func Median(dst, src []byte, im Image, ksize int) error {
	if err := im.check(dst, src); err != nil {
		return err
	}
	if ksize < 3 || ksize%2 == 0 {
		return fmt.Errorf("filter: median kernel size %d must be odd and >= 3", ksize)
	}

	w, h, ch := im.Width, im.Height, im.Channels
	half := ksize / 2
	mid := ksize * ksize / 2
	var hist [256]int

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			for c := 0; c < ch; c++ {
				hist = [256]int{}
				for dy := -half; dy <= half; dy++ {
					sy := clampInt(y+dy, 0, h-1)
					for dx := -half; dx <= half; dx++ {
						sx := clampInt(x+dx, 0, w-1)
						hist[src[(sy*w+sx)*ch+c]]++
					}
				}
				seen := 0
				for v := 0; v < 256; v++ {
					seen += hist[v]
					if seen > mid {
						dst[(y*w+x)*ch+c] = uint8(v)
						break
					}
				}
			}
		}
	}
	return nil
}

// Bilateral smooths src into dst while preserving edges. Each neighbor
// within the diameter is weighted by its spatial distance (sigmaSpace) and
// by the L1 distance of its color to the center sample (sigmaColor).
func Bilateral(dst, src []byte, im Image, diameter int, sigmaColor, sigmaSpace float64) error {
	if err := im.check(dst, src); err != nil {
		return err
	}
	if sigmaColor <= 0 || sigmaSpace <= 0 {
		return fmt.Errorf("filter: bilateral sigmas must be positive (color %v, space %v)", sigmaColor, sigmaSpace)
	}
	radius := diameter / 2
	if diameter <= 0 {
		radius = int(math.Round(sigmaSpace * 1.5))
	}
	if radius < 1 {
		copy(dst, src)
		return nil
	}

	w, h, ch := im.Width, im.Height, im.Channels

	// Precomputed weights: spatial over the square window, range over the
	// L1 color distance (at most 255 per channel).
	size := 2*radius + 1
	spatial := make([]float32, size*size)
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			r2 := float64(dx*dx + dy*dy)
			if r2 > float64(radius*radius) {
				continue
			}
			spatial[(dy+radius)*size+dx+radius] = float32(math.Exp(-r2 / (2 * sigmaSpace * sigmaSpace)))
		}
	}
	rangeW := make([]float32, 255*ch+1)
	for d := range rangeW {
		rangeW[d] = float32(math.Exp(-float64(d*d) / (2 * sigmaColor * sigmaColor)))
	}

	var acc [4]float32
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			center := (y*w + x) * ch
			acc = [4]float32{}
			var wsum float32
			for dy := -radius; dy <= radius; dy++ {
				sy := clampInt(y+dy, 0, h-1)
				for dx := -radius; dx <= radius; dx++ {
					sw := spatial[(dy+radius)*size+dx+radius]
					if sw == 0 {
						continue
					}
					sx := clampInt(x+dx, 0, w-1)
					n := (sy*w + sx) * ch
					dist := 0
					for c := 0; c < ch; c++ {
						d := int(src[n+c]) - int(src[center+c])
						if d < 0 {
							d = -d
						}
						dist += d
					}
					wt := sw * rangeW[dist]
					for c := 0; c < ch; c++ {
						acc[c] += float32(src[n+c]) * wt
					}
					wsum += wt
				}
			}
			for c := 0; c < ch; c++ {
				dst[center+c] = clampUint8(acc[c] / wsum)
			}
		}
	}
	return nil
}
