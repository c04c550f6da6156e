// Package imageio reads and writes pixel buffers as image files.
//
// The format follows the file extension: .png, .jpg/.jpeg, .bmp, .tif/.tiff.
// JPEG is lossy; use it for previews, not for round trips.
package imageio

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/gogpu/texbridge"
)

// ErrUnknownFormat is returned for unsupported file extensions.
var ErrUnknownFormat = errors.New("imageio: unknown image format")

// Format is an image file format.
type Format uint8

const (
	PNG Format = iota + 1
	JPEG
	BMP
	TIFF
)

// jpegQuality is the encoder quality for JPEG snapshots.
const jpegQuality = 90

func (f Format) String() string {
	switch f {
	case PNG:
		return "png"
	case JPEG:
		return "jpeg"
	case BMP:
		return "bmp"
	case TIFF:
		return "tiff"
	default:
		return fmt.Sprintf("Format(%d)", uint8(f))
	}
}

// FormatFor returns the format implied by path's extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return PNG, nil
	case ".jpg", ".jpeg":
		return JPEG, nil
	case ".bmp":
		return BMP, nil
	case ".tif", ".tiff":
		return TIFF, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, filepath.Ext(path))
	}
}

// Save writes buf to path. Gray buffers stay gray (8 or 16 bits); BGR and
// BGRA buffers are written as RGBA.
func Save(path string, buf *texbridge.PixelBuffer) error {
	format, err := FormatFor(path)
	if err != nil {
		return err
	}
	img, err := buf.Image()
	if err != nil {
		return fmt.Errorf("imageio: %s: %w", path, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, img, format); err != nil {
		_ = f.Close()
		return fmt.Errorf("imageio: encode %s: %w", path, err)
	}
	return f.Close()
}

// Encode writes img to w in format.
func Encode(w io.Writer, img image.Image, format Format) error {
	switch format {
	case PNG:
		return png.Encode(w, img)
	case JPEG:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: jpegQuality})
	case BMP:
		return bmp.Encode(w, img)
	case TIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}

// Load reads an image file into a 2-D buffer: gray images load as one
// channel, everything else as 4-channel BGRA.
func Load(path string) (*texbridge.PixelBuffer, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := Decode(f, format)
	if err != nil {
		return nil, fmt.Errorf("imageio: decode %s: %w", path, err)
	}
	return texbridge.FromImage(img)
}

// Decode reads an image in format from r.
func Decode(r io.Reader, format Format) (image.Image, error) {
	switch format {
	case PNG:
		return png.Decode(r)
	case JPEG:
		return jpeg.Decode(r)
	case BMP:
		return bmp.Decode(r)
	case TIFF:
		return tiff.Decode(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}
