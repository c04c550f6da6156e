// Package filter implements the pure-Go smoothing filters behind imageops:
//   - Gaussian blur (separable, edge extension)
//   - Median filter (per-channel histogram over a square window)
//   - Bilateral filter (spatial × range weights, L1 color distance)
//
// Filters work on tightly packed 8-bit images with 1 to 4 interleaved
// channels and write every byte of dst. src and dst must not overlap.
package filter
