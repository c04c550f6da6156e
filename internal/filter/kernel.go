package filter

import (
	"math"
	"sync"
)

// GaussianKernel generates a normalized 1D Gaussian kernel.
//
// size must be odd; a size <= 0 is derived from sigma as 2*ceil(3σ)+1,
// covering 99.7% of the distribution. A sigma <= 0 is derived from size
// the way OpenCV does: 0.3*((size-1)/2 - 1) + 0.8. When both are
// non-positive the identity kernel [1] is returned.
func GaussianKernel(size int, sigma float64) []float32 {
	if size <= 0 && sigma <= 0 {
		return []float32{1.0}
	}
	if size <= 0 {
		size = int(math.Ceil(sigma*3))*2 + 1
	}
	if size%2 == 0 {
		size++
	}
	if sigma <= 0 {
		sigma = 0.3*(float64(size-1)*0.5-1) + 0.8
	}
	half := size / 2

	// exp(-x²/2σ²); the Gaussian's constant factor cancels out when the
	// weights are normalized to sum to 1.
	weights := make([]float64, size)
	var sum float64
	for i := range weights {
		d := float64(i - half)
		weights[i] = math.Exp(-d * d / (2 * sigma * sigma))
		sum += weights[i]
	}
	kernel := make([]float32, size)
	for i, w := range weights {
		kernel[i] = float32(w / sum)
	}
	return kernel
}

type kernelKey struct {
	size  int
	sigma int // hundredths
}

// maxCachedKernels bounds the kernel cache. On overflow it starts over.
const maxCachedKernels = 64

var kernels = struct {
	sync.Mutex
	m map[kernelKey][]float32
}{m: make(map[kernelKey][]float32)}

// CachedGaussianKernel is GaussianKernel memoized by size and sigma to
// 0.01. Video filters request the same kernel every frame. The returned
// slice is shared and must not be modified.
func CachedGaussianKernel(size int, sigma float64) []float32 {
	key := kernelKey{size: size, sigma: int(math.Round(sigma * 100))}
	kernels.Lock()
	defer kernels.Unlock()
	if k, ok := kernels.m[key]; ok {
		return k
	}
	if len(kernels.m) >= maxCachedKernels {
		clear(kernels.m)
	}
	k := GaussianKernel(size, sigma)
	kernels.m[key] = k
	return k
}

// clampInt clamps v to [minVal, maxVal].
func clampInt(v, minVal, maxVal int) int {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}

// clampUint8 clamps a float32 to [0, 255] and rounds to uint8.
func clampUint8(v float32) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
