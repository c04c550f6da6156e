// Package resample scales sampled grids of any element type. It serves the
// buffers golang.org/x/image/draw cannot represent: 3-D volumes and 2-D
// buffers with 16- or 32-bit channels.
package resample

import "math"

// Grid is a w×h×d lattice of channel values. Values are read and written as
// float64 in the element type's native range.
type Grid interface {
	Dims() (w, h, d int)
	Channels() int
	At(x, y, z, c int) float64
	Set(x, y, z, c int, v float64)
	// Range returns the representable value range used for clamping.
	Range() (lo, hi float64)
}

// Mode selects the sampling kernel.
type Mode uint8

const (
	// Nearest picks the closest source sample.
	Nearest Mode = iota

	// Linear interpolates the 2×2×2 neighborhood. 2-D grids (d == 1)
	// degenerate to bilinear.
	Linear
)

// Scale fills dst from src. Source and destination must have the same
// channel count; coordinates map pixel centers onto pixel centers.
func Scale(dst, src Grid, mode Mode) {
	dw, dh, dd := dst.Dims()
	sw, sh, sd := src.Dims()
	channels := dst.Channels()
	lo, hi := dst.Range()

	sx := float64(sw) / float64(dw)
	sy := float64(sh) / float64(dh)
	sz := float64(sd) / float64(dd)

	for z := 0; z < dd; z++ {
		fz := (float64(z)+0.5)*sz - 0.5
		for y := 0; y < dh; y++ {
			fy := (float64(y)+0.5)*sy - 0.5
			for x := 0; x < dw; x++ {
				fx := (float64(x)+0.5)*sx - 0.5
				for c := 0; c < channels; c++ {
					var v float64
					if mode == Nearest {
						v = src.At(
							clamp(int(math.Round(fx)), 0, sw-1),
							clamp(int(math.Round(fy)), 0, sh-1),
							clamp(int(math.Round(fz)), 0, sd-1),
							c,
						)
					} else {
						v = trilinear(src, fx, fy, fz, c, sw, sh, sd)
					}
					dst.Set(x, y, z, c, clampFloat(math.Round(v), lo, hi))
				}
			}
		}
	}
}

func trilinear(src Grid, fx, fy, fz float64, c, w, h, d int) float64 {
	x0 := int(math.Floor(fx))
	y0 := int(math.Floor(fy))
	z0 := int(math.Floor(fz))
	tx := fx - float64(x0)
	ty := fy - float64(y0)
	tz := fz - float64(z0)

	x1 := clamp(x0+1, 0, w-1)
	y1 := clamp(y0+1, 0, h-1)
	z1 := clamp(z0+1, 0, d-1)
	x0 = clamp(x0, 0, w-1)
	y0 = clamp(y0, 0, h-1)
	z0 = clamp(z0, 0, d-1)

	front := lerp2D(src.At(x0, y0, z0, c), src.At(x1, y0, z0, c), src.At(x0, y1, z0, c), src.At(x1, y1, z0, c), tx, ty)
	if z0 == z1 {
		return front
	}
	back := lerp2D(src.At(x0, y0, z1, c), src.At(x1, y0, z1, c), src.At(x0, y1, z1, c), src.At(x1, y1, z1, c), tx, ty)
	return lerp(front, back, tz)
}

func clamp(val, minVal, maxVal int) int {
	if val < minVal {
		return minVal
	}
	if val > maxVal {
		return maxVal
	}
	return val
}

func clampFloat(val, minVal, maxVal float64) float64 {
	if val < minVal {
		return minVal
	}
	if val > maxVal {
		return maxVal
	}
	return val
}

// lerp performs linear interpolation between a and b.
func lerp(a, b, t float64) float64 {
	return a*(1-t) + b*t
}

// lerp2D performs bilinear interpolation on a 2x2 grid.
func lerp2D(v00, v10, v01, v11, tx, ty float64) float64 {
	v0 := lerp(v00, v10, tx)
	v1 := lerp(v01, v11, tx)
	return lerp(v0, v1, ty)
}
