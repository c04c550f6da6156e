package texbridge

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ChannelType is the scalar type of one channel of one element.
type ChannelType uint8

const (
	// ChannelEmpty is the type of the empty buffer.
	ChannelEmpty ChannelType = iota
	ChannelU8
	ChannelU16
	ChannelS8
	ChannelS16
	ChannelS32
)

// String returns the conventional short name of the type.
func (c ChannelType) String() string {
	switch c {
	case ChannelEmpty:
		return "empty"
	case ChannelU8:
		return "u8"
	case ChannelU16:
		return "u16"
	case ChannelS8:
		return "s8"
	case ChannelS16:
		return "s16"
	case ChannelS32:
		return "s32"
	default:
		return fmt.Sprintf("ChannelType(%d)", c)
	}
}

// ByteWidth returns the size of one channel value in bytes.
func (c ChannelType) ByteWidth() int {
	switch c {
	case ChannelU8, ChannelS8:
		return 1
	case ChannelU16, ChannelS16:
		return 2
	case ChannelS32:
		return 4
	default:
		return 0
	}
}

// Range returns the smallest and largest representable values.
func (c ChannelType) Range() (lo, hi float64) {
	switch c {
	case ChannelU8:
		return 0, 255
	case ChannelU16:
		return 0, 65535
	case ChannelS8:
		return -128, 127
	case ChannelS16:
		return -32768, 32767
	case ChannelS32:
		return -2147483648, 2147483647
	default:
		return 0, 0
	}
}

// PixelBuffer is a dense 2-D or 3-D array of multi-channel elements.
//
// Size is ordered slowest to fastest varying: [rows, cols] for 2-D buffers
// and [depth, rows, cols] for volumes. Elements are stored row-major with
// channels interleaved; multi-byte channels are little-endian.
//
// A PixelBuffer has no internal locking. Callers must not mutate it while
// it is being published or processed.
type PixelBuffer struct {
	size     []int
	ct       ChannelType
	channels int
	data     []byte
}

// Empty returns the empty buffer: no elements, no storage.
func Empty() *PixelBuffer {
	return &PixelBuffer{size: []int{0, 0}, ct: ChannelEmpty}
}

// NewPixelBuffer allocates a zeroed rows×cols buffer.
func NewPixelBuffer(rows, cols int, ct ChannelType, channels int) (*PixelBuffer, error) {
	return newBuffer([]int{rows, cols}, ct, channels)
}

// NewVolumeBuffer allocates a zeroed depth×rows×cols buffer.
func NewVolumeBuffer(depth, rows, cols int, ct ChannelType, channels int) (*PixelBuffer, error) {
	return newBuffer([]int{depth, rows, cols}, ct, channels)
}

// MustNew is like NewPixelBuffer but panics on invalid arguments.
func MustNew(rows, cols int, ct ChannelType, channels int) *PixelBuffer {
	b, err := NewPixelBuffer(rows, cols, ct, channels)
	if err != nil {
		panic(err)
	}
	return b
}

func newBuffer(size []int, ct ChannelType, channels int) (*PixelBuffer, error) {
	if err := validateShape(size, ct, channels); err != nil {
		return nil, err
	}
	if channels != 1 && channels != 3 && channels != 4 {
		return nil, fmt.Errorf("%w: %d channels", ErrInvalidDimensions, channels)
	}
	n := product(size) * channels * ct.ByteWidth()
	return &PixelBuffer{size: size, ct: ct, channels: channels, data: make([]byte, n)}, nil
}

// FromBytes wraps data without copying. Any channel count from 1 to 4 is
// accepted so that foreign layouts can be represented; the negotiator
// decides whether they can be uploaded.
func FromBytes(size []int, ct ChannelType, channels int, data []byte) (*PixelBuffer, error) {
	if err := validateShape(size, ct, channels); err != nil {
		return nil, err
	}
	if channels < 1 || channels > 4 {
		return nil, fmt.Errorf("%w: %d channels", ErrInvalidDimensions, channels)
	}
	if want := product(size) * channels * ct.ByteWidth(); len(data) != want {
		return nil, fmt.Errorf("%w: %d bytes for %v×%d %s, want %d", ErrInvalidDimensions, len(data), size, channels, ct, want)
	}
	s := make([]int, len(size))
	copy(s, size)
	return &PixelBuffer{size: s, ct: ct, channels: channels, data: data}, nil
}

func validateShape(size []int, ct ChannelType, channels int) error {
	if len(size) != 2 && len(size) != 3 {
		return fmt.Errorf("%w: %d dimensions", ErrInvalidDimensions, len(size))
	}
	for _, n := range size {
		if n <= 0 {
			return fmt.Errorf("%w: size %v", ErrInvalidDimensions, size)
		}
	}
	if ct.ByteWidth() == 0 {
		return fmt.Errorf("%w: channel type %s", ErrInvalidDimensions, ct)
	}
	return nil
}

func product(size []int) int {
	n := 1
	for _, s := range size {
		n *= s
	}
	return n
}

// Dims returns 2 or 3.
func (p *PixelBuffer) Dims() int { return len(p.size) }

// Size returns a copy of the extents, slowest varying first.
func (p *PixelBuffer) Size() []int {
	s := make([]int, len(p.size))
	copy(s, p.size)
	return s
}

// Rows returns the number of rows (the height).
func (p *PixelBuffer) Rows() int { return p.size[len(p.size)-2] }

// Cols returns the number of columns (the width).
func (p *PixelBuffer) Cols() int { return p.size[len(p.size)-1] }

// Width is an alias for Cols.
func (p *PixelBuffer) Width() int { return p.Cols() }

// Height is an alias for Rows.
func (p *PixelBuffer) Height() int { return p.Rows() }

// Depth returns the number of slices; 1 for 2-D buffers.
func (p *PixelBuffer) Depth() int {
	if len(p.size) == 3 {
		return p.size[0]
	}
	return 1
}

// ChannelType returns the channel scalar type.
func (p *PixelBuffer) ChannelType() ChannelType { return p.ct }

// Channels returns the number of interleaved channels.
func (p *PixelBuffer) Channels() int { return p.channels }

// ElementCount returns the number of elements (pixels or voxels).
func (p *PixelBuffer) ElementCount() int { return product(p.size) }

// ElemSize returns the size of one element in bytes.
func (p *PixelBuffer) ElemSize() int { return p.channels * p.ct.ByteWidth() }

// IsEmpty reports whether the buffer holds no elements.
func (p *PixelBuffer) IsEmpty() bool {
	return p.ct == ChannelEmpty || p.ElementCount() == 0
}

// Data returns the backing storage. The slice aliases the buffer.
func (p *PixelBuffer) Data() []byte { return p.data }

// Stride returns the number of bytes per row.
func (p *PixelBuffer) Stride() int { return p.Cols() * p.ElemSize() }

// Clone returns a deep copy.
func (p *PixelBuffer) Clone() *PixelBuffer {
	c := &PixelBuffer{size: p.Size(), ct: p.ct, channels: p.channels, data: make([]byte, len(p.data))}
	copy(c.data, p.data)
	return c
}

// SameShape reports whether q has the same size, type and channel count.
func (p *PixelBuffer) SameShape(q *PixelBuffer) bool {
	if p.ct != q.ct || p.channels != q.channels || len(p.size) != len(q.size) {
		return false
	}
	for i := range p.size {
		if p.size[i] != q.size[i] {
			return false
		}
	}
	return true
}

// CopyFrom makes p a deep copy of q, adopting its shape. Storage is reused
// when the byte length matches.
func (p *PixelBuffer) CopyFrom(q *PixelBuffer) {
	if p == q {
		return
	}
	if len(p.data) != len(q.data) {
		p.data = make([]byte, len(q.data))
	}
	copy(p.data, q.data)
	p.size = q.Size()
	p.ct = q.ct
	p.channels = q.channels
}

// offset returns the byte offset of element (x, y, z).
func (p *PixelBuffer) offset(x, y, z int) int {
	return ((z*p.Rows()+y)*p.Cols() + x) * p.ElemSize()
}

// Pixel returns the bytes of the element at column x, row y of a 2-D buffer
// (slice 0 of a volume). The slice aliases the buffer.
func (p *PixelBuffer) Pixel(x, y int) []byte {
	return p.Voxel(x, y, 0)
}

// Voxel returns the bytes of the element at (x, y, z).
func (p *PixelBuffer) Voxel(x, y, z int) []byte {
	o := p.offset(x, y, z)
	return p.data[o : o+p.ElemSize()]
}

// Value returns channel c of element (x, y, z) as a float64.
func (p *PixelBuffer) Value(x, y, z, c int) float64 {
	o := p.offset(x, y, z) + c*p.ct.ByteWidth()
	switch p.ct {
	case ChannelU8:
		return float64(p.data[o])
	case ChannelS8:
		return float64(int8(p.data[o]))
	case ChannelU16:
		return float64(binary.LittleEndian.Uint16(p.data[o:]))
	case ChannelS16:
		return float64(int16(binary.LittleEndian.Uint16(p.data[o:])))
	case ChannelS32:
		return float64(int32(binary.LittleEndian.Uint32(p.data[o:])))
	default:
		return 0
	}
}

// SetValue stores v, rounded and clamped to the channel range, into
// channel c of element (x, y, z).
func (p *PixelBuffer) SetValue(x, y, z, c int, v float64) {
	lo, hi := p.ct.Range()
	v = math.Round(v)
	if v < lo {
		v = lo
	} else if v > hi {
		v = hi
	}
	o := p.offset(x, y, z) + c*p.ct.ByteWidth()
	switch p.ct {
	case ChannelU8:
		p.data[o] = uint8(v)
	case ChannelS8:
		p.data[o] = uint8(int8(v))
	case ChannelU16:
		binary.LittleEndian.PutUint16(p.data[o:], uint16(v))
	case ChannelS16:
		binary.LittleEndian.PutUint16(p.data[o:], uint16(int16(v)))
	case ChannelS32:
		binary.LittleEndian.PutUint32(p.data[o:], uint32(int32(v)))
	}
}

// Fill sets every element to values, one per channel. Missing trailing
// values leave their channels untouched.
func (p *PixelBuffer) Fill(values ...float64) {
	if len(values) > p.channels {
		values = values[:p.channels]
	}
	d, h, w := p.Depth(), p.Rows(), p.Cols()
	for z := 0; z < d; z++ {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				for c, v := range values {
					p.SetValue(x, y, z, c, v)
				}
			}
		}
	}
}

// replace swaps in new storage after an in-place resample.
func (p *PixelBuffer) replace(size []int, data []byte) {
	p.size = size
	p.data = data
}

func (p *PixelBuffer) String() string {
	return fmt.Sprintf("PixelBuffer(%v %s×%d)", p.size, p.ct, p.channels)
}
