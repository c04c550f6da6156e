// Package convert implements the pixel layout conversions applied before a
// buffer is uploaded. All kernels work on tightly packed 8-bit data and
// write every byte of dst.
package convert

import "fmt"

// Copy copies src to dst unchanged.
func Copy(dst, src []byte) error {
	if len(dst) != len(src) {
		return fmt.Errorf("convert: copy %d bytes into %d", len(src), len(dst))
	}
	copy(dst, src)
	return nil
}

// GrayToBGRA expands single-channel gray to BGRA by replicating the gray
// value into B, G and R and writing alpha.
func GrayToBGRA(dst, src []byte, alpha byte) error {
	n := len(src)
	if len(dst) != n*4 {
		return fmt.Errorf("convert: gray to BGRA needs %d bytes, have %d", n*4, len(dst))
	}
	for i, v := range src {
		o := i * 4
		dst[o+0] = v
		dst[o+1] = v
		dst[o+2] = v
		dst[o+3] = alpha
	}
	return nil
}

// BGRToBGRA appends an alpha channel to 3-channel BGR data.
func BGRToBGRA(dst, src []byte, alpha byte) error {
	if len(src)%3 != 0 {
		return fmt.Errorf("convert: BGR source length %d not a multiple of 3", len(src))
	}
	n := len(src) / 3
	if len(dst) != n*4 {
		return fmt.Errorf("convert: BGR to BGRA needs %d bytes, have %d", n*4, len(dst))
	}
	for i := 0; i < n; i++ {
		s := i * 3
		o := i * 4
		dst[o+0] = src[s+0]
		dst[o+1] = src[s+1]
		dst[o+2] = src[s+2]
		dst[o+3] = alpha
	}
	return nil
}

// BGRAToRGBA swaps the B and R channels of 4-channel data in place. The
// swap is its own inverse, so it also turns RGBA into BGRA.
func BGRAToRGBA(pix []byte) {
	for i := 0; i+3 < len(pix); i += 4 {
		pix[i], pix[i+2] = pix[i+2], pix[i]
	}
}

// StripRowPadding copies rows of rowBytes from src, whose rows are pitch
// bytes apart, into a tightly packed dst.
func StripRowPadding(dst, src []byte, rowBytes, pitch, rows int) {
	if rowBytes == pitch {
		copy(dst, src[:rowBytes*rows])
		return
	}
	for y := 0; y < rows; y++ {
		copy(dst[y*rowBytes:(y+1)*rowBytes], src[y*pitch:y*pitch+rowBytes])
	}
}
