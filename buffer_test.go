package texbridge

import (
	"errors"
	"image"
	"image/color"
	"testing"
)

func TestChannelType(t *testing.T) {
	tests := []struct {
		ct        ChannelType
		wantName  string
		wantWidth int
	}{
		{ChannelEmpty, "empty", 0},
		{ChannelU8, "u8", 1},
		{ChannelU16, "u16", 2},
		{ChannelS8, "s8", 1},
		{ChannelS16, "s16", 2},
		{ChannelS32, "s32", 4},
	}
	for _, tt := range tests {
		t.Run(tt.wantName, func(t *testing.T) {
			if got := tt.ct.String(); got != tt.wantName {
				t.Errorf("String() = %q, want %q", got, tt.wantName)
			}
			if got := tt.ct.ByteWidth(); got != tt.wantWidth {
				t.Errorf("ByteWidth() = %d, want %d", got, tt.wantWidth)
			}
		})
	}
}

func TestNewPixelBufferStorage(t *testing.T) {
	tests := []struct {
		name     string
		build    func() (*PixelBuffer, error)
		wantDims int
		wantLen  int
	}{
		{"2D u8 gray", func() (*PixelBuffer, error) { return NewPixelBuffer(4, 6, ChannelU8, 1) }, 2, 24},
		{"2D u8 bgr", func() (*PixelBuffer, error) { return NewPixelBuffer(4, 6, ChannelU8, 3) }, 2, 72},
		{"2D s16 bgra", func() (*PixelBuffer, error) { return NewPixelBuffer(2, 3, ChannelS16, 4) }, 2, 48},
		{"3D u8", func() (*PixelBuffer, error) { return NewVolumeBuffer(5, 4, 3, ChannelU8, 1) }, 3, 60},
		{"3D s32", func() (*PixelBuffer, error) { return NewVolumeBuffer(2, 2, 2, ChannelS32, 1) }, 3, 32},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := tt.build()
			if err != nil {
				t.Fatalf("constructor: %v", err)
			}
			if b.Dims() != tt.wantDims {
				t.Errorf("Dims() = %d, want %d", b.Dims(), tt.wantDims)
			}
			if len(b.Data()) != tt.wantLen {
				t.Errorf("len(Data()) = %d, want %d", len(b.Data()), tt.wantLen)
			}
			if got := b.ElementCount() * b.ElemSize(); got != len(b.Data()) {
				t.Errorf("ElementCount×ElemSize = %d, storage %d", got, len(b.Data()))
			}
		})
	}
}

func TestNewPixelBufferInvalid(t *testing.T) {
	tests := []struct {
		name  string
		build func() (*PixelBuffer, error)
	}{
		{"zero rows", func() (*PixelBuffer, error) { return NewPixelBuffer(0, 4, ChannelU8, 1) }},
		{"two channels", func() (*PixelBuffer, error) { return NewPixelBuffer(4, 4, ChannelU8, 2) }},
		{"empty type", func() (*PixelBuffer, error) { return NewPixelBuffer(4, 4, ChannelEmpty, 1) }},
		{"short data", func() (*PixelBuffer, error) { return FromBytes([]int{2, 2}, ChannelU8, 1, make([]byte, 3)) }},
		{"4D", func() (*PixelBuffer, error) { return FromBytes([]int{1, 1, 1, 1}, ChannelU8, 1, make([]byte, 1)) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.build(); !errors.Is(err, ErrInvalidDimensions) {
				t.Errorf("got %v, want ErrInvalidDimensions", err)
			}
		})
	}
}

func TestBufferGeometry(t *testing.T) {
	v, _ := NewVolumeBuffer(3, 4, 5, ChannelU8, 1)
	if v.Depth() != 3 || v.Rows() != 4 || v.Cols() != 5 {
		t.Errorf("volume extents = %d×%d×%d", v.Depth(), v.Rows(), v.Cols())
	}
	if v.Width() != 5 || v.Height() != 4 {
		t.Errorf("Width/Height = %d/%d", v.Width(), v.Height())
	}

	b := MustNew(2, 7, ChannelU8, 3)
	if b.Depth() != 1 || b.Stride() != 21 {
		t.Errorf("Depth()=%d Stride()=%d", b.Depth(), b.Stride())
	}
	size := b.Size()
	size[0] = 99
	if b.Rows() != 2 {
		t.Error("Size() aliases internal state")
	}
}

func TestEmptyBuffer(t *testing.T) {
	e := Empty()
	if !e.IsEmpty() {
		t.Error("Empty().IsEmpty() = false")
	}
	if e.ChannelType() != ChannelEmpty || len(e.Data()) != 0 {
		t.Errorf("Empty() = %v", e)
	}
}

func TestValueRoundTrip(t *testing.T) {
	tests := []struct {
		ct ChannelType
		v  float64
	}{
		{ChannelU8, 200},
		{ChannelS8, -100},
		{ChannelU16, 60000},
		{ChannelS16, -30000},
		{ChannelS32, -2000000000},
	}
	for _, tt := range tests {
		t.Run(tt.ct.String(), func(t *testing.T) {
			b := MustNew(2, 2, tt.ct, 3)
			b.SetValue(1, 1, 0, 2, tt.v)
			if got := b.Value(1, 1, 0, 2); got != tt.v {
				t.Errorf("Value() = %v, want %v", got, tt.v)
			}
		})
	}
}

func TestSetValueClamps(t *testing.T) {
	b := MustNew(1, 1, ChannelU8, 1)
	b.SetValue(0, 0, 0, 0, 300)
	if b.Data()[0] != 255 {
		t.Errorf("clamped high = %d", b.Data()[0])
	}
	b.SetValue(0, 0, 0, 0, -5)
	if b.Data()[0] != 0 {
		t.Errorf("clamped low = %d", b.Data()[0])
	}
}

func TestFillAndClone(t *testing.T) {
	b := MustNew(3, 3, ChannelU8, 3)
	b.Fill(1, 2, 3)
	if p := b.Pixel(2, 2); p[0] != 1 || p[1] != 2 || p[2] != 3 {
		t.Errorf("Pixel(2,2) = %v", p)
	}

	c := b.Clone()
	c.Pixel(0, 0)[0] = 9
	if b.Pixel(0, 0)[0] != 1 {
		t.Error("Clone shares storage")
	}
	if !b.SameShape(c) {
		t.Error("Clone changed shape")
	}
}

func TestResample2D(t *testing.T) {
	tests := []struct {
		name string
		ct   ChannelType
		ch   int
		vals []float64
	}{
		{"u8 gray", ChannelU8, 1, []float64{100}},
		{"u8 bgr", ChannelU8, 3, []float64{100, 50, 25}},
		{"u8 bgra", ChannelU8, 4, []float64{100, 50, 25, 255}},
		{"u8 bgra translucent", ChannelU8, 4, []float64{200, 150, 100, 80}},
		{"u8 bgra transparent", ChannelU8, 4, []float64{200, 150, 100, 0}},
		{"u16 gray", ChannelU16, 1, []float64{100}},
		{"s16 bgr", ChannelS16, 3, []float64{100, 50, 25}},
	}
	for _, tt := range tests {
		for _, mode := range []Interpolation{InterpNearest, InterpBilinear, InterpBicubic} {
			t.Run(tt.name+"/"+mode.String(), func(t *testing.T) {
				b := MustNew(8, 8, tt.ct, tt.ch)
				vals := tt.vals
				b.Fill(vals...)

				if err := b.Resample(16, 12, mode); err != nil {
					t.Fatalf("Resample: %v", err)
				}
				if b.Width() != 16 || b.Height() != 12 {
					t.Fatalf("size = %dx%d, want 16x12", b.Width(), b.Height())
				}
				if len(b.Data()) != 16*12*b.ElemSize() {
					t.Fatalf("storage = %d bytes", len(b.Data()))
				}
				// A uniform image stays uniform under every kernel.
				for c, want := range vals {
					if got := b.Value(7, 5, 0, c); got != want {
						t.Errorf("channel %d = %v, want %v", c, got, want)
					}
				}
			})
		}
	}
}

func TestResampleKeepsColorUnderAlpha(t *testing.T) {
	for _, mode := range []Interpolation{InterpBilinear, InterpBicubic} {
		t.Run(mode.String(), func(t *testing.T) {
			b := MustNew(4, 4, ChannelU8, 4)
			b.Fill(200, 150, 100, 255)
			for y := 0; y < 4; y++ {
				for x := 2; x < 4; x++ {
					b.Pixel(x, y)[3] = 0
				}
			}

			if err := b.Resample(8, 8, mode); err != nil {
				t.Fatalf("Resample: %v", err)
			}
			for y := 0; y < 8; y++ {
				for x := 0; x < 8; x++ {
					p := b.Pixel(x, y)
					if p[0] != 200 || p[1] != 150 || p[2] != 100 {
						t.Fatalf("Pixel(%d,%d) = %v, color changed", x, y, p)
					}
				}
			}
			if a := b.Pixel(0, 0)[3]; a != 255 {
				t.Errorf("alpha at opaque edge = %d, want 255", a)
			}
			if a := b.Pixel(7, 0)[3]; a != 0 {
				t.Errorf("alpha at transparent edge = %d, want 0", a)
			}
		})
	}
}

func TestResampleRejects(t *testing.T) {
	v, _ := NewVolumeBuffer(2, 2, 2, ChannelU8, 1)
	if err := v.Resample(4, 4, InterpBilinear); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Resample on volume = %v", err)
	}
	b := MustNew(2, 2, ChannelU8, 1)
	if err := b.ResampleVolume(4, 4, 4, InterpBilinear); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("ResampleVolume on 2D = %v", err)
	}
	if err := b.Resample(0, 4, InterpBilinear); !errors.Is(err, ErrInvalidDimensions) {
		t.Errorf("Resample to zero width = %v", err)
	}
	if err := Empty().Resample(4, 4, InterpBilinear); !errors.Is(err, ErrEmptyBuffer) {
		t.Errorf("Resample empty = %v", err)
	}
}

func TestResampleVolume(t *testing.T) {
	v, _ := NewVolumeBuffer(4, 4, 4, ChannelU8, 1)
	v.Fill(77)
	if err := v.ResampleVolume(8, 6, 2, InterpBilinear); err != nil {
		t.Fatal(err)
	}
	if v.Depth() != 2 || v.Height() != 6 || v.Width() != 8 {
		t.Fatalf("size = %v", v.Size())
	}
	if got := v.Value(3, 3, 1, 0); got != 77 {
		t.Errorf("Value = %v, want 77", got)
	}
}

func TestImageRoundTrip(t *testing.T) {
	b := MustNew(2, 3, ChannelU8, 3)
	b.Fill(10, 20, 30) // B, G, R

	img, err := b.Image()
	if err != nil {
		t.Fatal(err)
	}
	c := color.NRGBAModel.Convert(img.At(1, 1)).(color.NRGBA)
	if c.R != 30 || c.G != 20 || c.B != 10 || c.A != 255 {
		t.Errorf("At(1,1) = %+v", c)
	}

	back, err := FromImage(img)
	if err != nil {
		t.Fatal(err)
	}
	if back.Channels() != 4 {
		t.Fatalf("FromImage channels = %d, want 4", back.Channels())
	}
	if p := back.Pixel(2, 1); p[0] != 10 || p[1] != 20 || p[2] != 30 || p[3] != 255 {
		t.Errorf("Pixel = %v", p)
	}
}

func TestFromImageGray(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 3, 2))
	img.SetGray(2, 1, color.Gray{Y: 42})
	b, err := FromImage(img)
	if err != nil {
		t.Fatal(err)
	}
	if b.Channels() != 1 || b.ChannelType() != ChannelU8 {
		t.Fatalf("FromImage gray = %v", b)
	}
	if b.Pixel(2, 1)[0] != 42 {
		t.Errorf("Pixel(2,1) = %d", b.Pixel(2, 1)[0])
	}

	g16 := image.NewGray16(image.Rect(0, 0, 1, 1))
	g16.SetGray16(0, 0, color.Gray16{Y: 0x1234})
	b16, _ := FromImage(g16)
	if b16.Value(0, 0, 0, 0) != 0x1234 {
		t.Errorf("Gray16 value = %v", b16.Value(0, 0, 0, 0))
	}
}

func TestCopyFromAdoptsShape(t *testing.T) {
	src := MustNew(2, 3, ChannelU8, 3)
	src.Fill(1, 2, 3)
	dst := Empty()
	dst.CopyFrom(src)
	if !dst.SameShape(src) {
		t.Fatalf("CopyFrom shape = %v, want %v", dst, src)
	}
	src.Data()[0] = 99
	if dst.Data()[0] != 1 {
		t.Error("CopyFrom aliases source storage")
	}
}
