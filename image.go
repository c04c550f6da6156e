package texbridge

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"

	"github.com/gogpu/texbridge/internal/convert"
	"github.com/gogpu/texbridge/internal/resample"
)

// Interpolation selects the resampling kernel.
type Interpolation uint8

const (
	// InterpNearest selects the closest pixel.
	InterpNearest Interpolation = iota

	// InterpBilinear blends the 2×2 (or 2×2×2) neighborhood.
	InterpBilinear

	// InterpBicubic uses Catmull-Rom weights over a 4×4 neighborhood.
	// Volumes and buffers with wide channels fall back to bilinear.
	InterpBicubic
)

// String returns a string representation of the interpolation mode.
func (m Interpolation) String() string {
	switch m {
	case InterpNearest:
		return "Nearest"
	case InterpBilinear:
		return "Bilinear"
	case InterpBicubic:
		return "Bicubic"
	default:
		return "Unknown"
	}
}

func (m Interpolation) scaler() draw.Interpolator {
	switch m {
	case InterpNearest:
		return draw.NearestNeighbor
	case InterpBicubic:
		return draw.CatmullRom
	default:
		return draw.BiLinear
	}
}

func (m Interpolation) gridMode() resample.Mode {
	if m == InterpNearest {
		return resample.Nearest
	}
	return resample.Linear
}

// Resample scales a 2-D buffer in place to width×height. The receiver's
// size and storage change; its type and channel count do not.
func (p *PixelBuffer) Resample(width, height int, mode Interpolation) error {
	if p.IsEmpty() {
		return ErrEmptyBuffer
	}
	if p.Dims() != 2 {
		return fmt.Errorf("%w: Resample on a %d-D buffer", ErrUnsupportedFormat, p.Dims())
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	if width == p.Width() && height == p.Height() {
		return nil
	}

	dst := &PixelBuffer{size: []int{height, width}, ct: p.ct, channels: p.channels}
	dst.data = make([]byte, height*width*p.ElemSize())

	if p.ct == ChannelU8 && p.channels == 4 {
		scaleStraightAlpha(dst, p, mode.scaler())
	} else if srcImg, ok := p.drawImage(); ok {
		dstImg, _ := dst.drawImage()
		mode.scaler().Scale(dstImg, dstImg.Bounds(), srcImg, srcImg.Bounds(), draw.Src, nil)
	} else {
		resample.Scale(bufferGrid{dst}, bufferGrid{p}, mode.gridMode())
	}
	p.replace(dst.size, dst.data)
	return nil
}

// ResampleVolume scales a 3-D buffer in place to width×height×depth.
func (p *PixelBuffer) ResampleVolume(width, height, depth int, mode Interpolation) error {
	if p.IsEmpty() {
		return ErrEmptyBuffer
	}
	if p.Dims() != 3 {
		return fmt.Errorf("%w: ResampleVolume on a %d-D buffer", ErrUnsupportedFormat, p.Dims())
	}
	if width <= 0 || height <= 0 || depth <= 0 {
		return fmt.Errorf("%w: %dx%dx%d", ErrInvalidDimensions, width, height, depth)
	}
	if width == p.Width() && height == p.Height() && depth == p.Depth() {
		return nil
	}

	dst := &PixelBuffer{size: []int{depth, height, width}, ct: p.ct, channels: p.channels}
	dst.data = make([]byte, depth*height*width*p.ElemSize())
	resample.Scale(bufferGrid{dst}, bufferGrid{p}, mode.gridMode())
	p.replace(dst.size, dst.data)
	return nil
}

// bufferGrid exposes a PixelBuffer to the generic resampler.
type bufferGrid struct{ b *PixelBuffer }

func (g bufferGrid) Dims() (w, h, d int)           { return g.b.Cols(), g.b.Rows(), g.b.Depth() }
func (g bufferGrid) Channels() int                 { return g.b.channels }
func (g bufferGrid) Range() (lo, hi float64)       { return g.b.ct.Range() }
func (g bufferGrid) At(x, y, z, c int) float64     { return g.b.Value(x, y, z, c) }
func (g bufferGrid) Set(x, y, z, c int, v float64) { g.b.SetValue(x, y, z, c, v) }

// scaleStraightAlpha scales non-premultiplied 8-bit BGRA. x/image/draw
// treats 4-channel images as premultiplied and clamps color to alpha, so
// color and alpha are scaled as separate opaque planes.
func scaleStraightAlpha(dst, src *PixelBuffer, s draw.Interpolator) {
	sw, sh := src.Cols(), src.Rows()
	dw, dh := dst.Cols(), dst.Rows()

	srcColor := &bgrImage{pix: make([]byte, sw*sh*3), stride: sw * 3, rect: image.Rect(0, 0, sw, sh)}
	srcAlpha := image.NewGray(srcColor.rect)
	for i := 0; i < sw*sh; i++ {
		copy(srcColor.pix[i*3:i*3+3], src.data[i*4:i*4+3])
		srcAlpha.Pix[i] = src.data[i*4+3]
	}

	dstColor := &bgrImage{pix: make([]byte, dw*dh*3), stride: dw * 3, rect: image.Rect(0, 0, dw, dh)}
	dstAlpha := image.NewGray(dstColor.rect)
	s.Scale(dstColor, dstColor.rect, srcColor, srcColor.rect, draw.Src, nil)
	s.Scale(dstAlpha, dstAlpha.Rect, srcAlpha, srcAlpha.Rect, draw.Src, nil)

	for i := 0; i < dw*dh; i++ {
		copy(dst.data[i*4:i*4+3], dstColor.pix[i*3:i*3+3])
		dst.data[i*4+3] = dstAlpha.Pix[i]
	}
}

// drawImage views an opaque 8-bit 2-D buffer (gray or BGR) as a
// draw.Image without copying.
func (p *PixelBuffer) drawImage() (draw.Image, bool) {
	if p.Dims() != 2 || p.ct != ChannelU8 {
		return nil, false
	}
	rect := image.Rect(0, 0, p.Cols(), p.Rows())
	switch p.channels {
	case 1:
		return &image.Gray{Pix: p.data, Stride: p.Stride(), Rect: rect}, true
	case 3:
		return &bgrImage{pix: p.data, stride: p.Stride(), rect: rect}, true
	default:
		return nil, false
	}
}

// bgrImage is a draw.Image over packed 3-channel BGR data.
type bgrImage struct {
	pix    []byte
	stride int
	rect   image.Rectangle
}

func (m *bgrImage) ColorModel() color.Model { return color.RGBAModel }
func (m *bgrImage) Bounds() image.Rectangle { return m.rect }

func (m *bgrImage) At(x, y int) color.Color {
	if !(image.Point{X: x, Y: y}.In(m.rect)) {
		return color.RGBA{}
	}
	i := y*m.stride + x*3
	return color.RGBA{R: m.pix[i+2], G: m.pix[i+1], B: m.pix[i], A: 0xff}
}

func (m *bgrImage) Set(x, y int, c color.Color) {
	if !(image.Point{X: x, Y: y}.In(m.rect)) {
		return
	}
	i := y*m.stride + x*3
	r := color.RGBAModel.Convert(c).(color.RGBA)
	m.pix[i+0] = r.B
	m.pix[i+1] = r.G
	m.pix[i+2] = r.R
}

// Image converts a 2-D buffer to a standard image: 1-channel 8-bit to
// *image.Gray, 1-channel 16-bit to *image.Gray16, 3- and 4-channel 8-bit
// (BGR/BGRA order) to *image.NRGBA. The result does not alias the buffer.
func (p *PixelBuffer) Image() (image.Image, error) {
	if p.IsEmpty() {
		return nil, ErrEmptyBuffer
	}
	if p.Dims() != 2 {
		return nil, fmt.Errorf("%w: %d-D buffer", ErrUnsupportedFormat, p.Dims())
	}
	w, h := p.Cols(), p.Rows()
	rect := image.Rect(0, 0, w, h)

	switch {
	case p.ct == ChannelU8 && p.channels == 1:
		img := image.NewGray(rect)
		copy(img.Pix, p.data)
		return img, nil
	case p.ct == ChannelU16 && p.channels == 1:
		img := image.NewGray16(rect)
		for i := 0; i < w*h; i++ {
			binary.BigEndian.PutUint16(img.Pix[i*2:], binary.LittleEndian.Uint16(p.data[i*2:]))
		}
		return img, nil
	case p.ct == ChannelU8 && p.channels == 4:
		img := image.NewNRGBA(rect)
		copy(img.Pix, p.data)
		convert.BGRAToRGBA(img.Pix)
		return img, nil
	case p.ct == ChannelU8 && p.channels == 3:
		img := image.NewNRGBA(rect)
		if err := convert.BGRToBGRA(img.Pix, p.data, 0xff); err != nil {
			return nil, err
		}
		convert.BGRAToRGBA(img.Pix)
		return img, nil
	default:
		return nil, fmt.Errorf("%w: %s×%d", ErrUnsupportedFormat, p.ct, p.channels)
	}
}

// FromImage converts an image to a 2-D buffer: gray images keep one
// channel (8 or 16 bits), everything else becomes 4-channel BGRA.
func FromImage(img image.Image) (*PixelBuffer, error) {
	b := img.Bounds()
	if b.Empty() {
		return nil, ErrEmptyBuffer
	}
	w, h := b.Dx(), b.Dy()

	switch src := img.(type) {
	case *image.Gray:
		buf, err := NewPixelBuffer(h, w, ChannelU8, 1)
		if err != nil {
			return nil, err
		}
		for y := 0; y < h; y++ {
			copy(buf.data[y*w:(y+1)*w], src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):])
		}
		return buf, nil
	case *image.Gray16:
		buf, err := NewPixelBuffer(h, w, ChannelU16, 1)
		if err != nil {
			return nil, err
		}
		for y := 0; y < h; y++ {
			row := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
			for x := 0; x < w; x++ {
				binary.LittleEndian.PutUint16(buf.data[(y*w+x)*2:], binary.BigEndian.Uint16(row[x*2:]))
			}
		}
		return buf, nil
	}

	nrgba := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(nrgba, nrgba.Bounds(), img, b.Min, draw.Src)
	buf, err := NewPixelBuffer(h, w, ChannelU8, 4)
	if err != nil {
		return nil, err
	}
	copy(buf.data, nrgba.Pix)
	convert.BGRAToRGBA(buf.data)
	return buf, nil
}
