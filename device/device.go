// Package device defines the GPU texture device used by texbridge sinks.
//
// A Device creates, fills, reads and destroys textures. Devices are driven
// from a single goroutine (the resource thread), so implementations need not
// be safe for concurrent use unless documented otherwise. Devices that must be
// bound to the OS thread that drives them implement ThreadBinder.
//
// Three implementations are provided:
//   - Memory: headless textures in host memory (tests, CPU-only hosts)
//   - device/wgpu: gogpu/wgpu HAL (Vulkan, or a shared gpucontext device)
//   - device/opengl: OpenGL 4.1 core through go-gl with a hidden GLFW context
package device

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
)

// Device errors.
var (
	// ErrUnknownTexture is returned for a texture ID the device does not own.
	ErrUnknownTexture = errors.New("device: unknown texture")

	// ErrInvalidDescriptor is returned when a descriptor has no format or
	// non-positive dimensions.
	ErrInvalidDescriptor = errors.New("device: invalid texture descriptor")

	// ErrRegionOutOfBounds is returned when a write region exceeds the texture.
	ErrRegionOutOfBounds = errors.New("device: region out of bounds")

	// ErrDataSize is returned when the data length does not match the region.
	ErrDataSize = errors.New("device: data size does not match region")

	// ErrNotReadable is returned when reading a texture created without Readable.
	ErrNotReadable = errors.New("device: texture is not readable")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("device: closed")
)

// Format is the pixel format of a texture. Only the formats texbridge can
// negotiate are listed.
type Format uint8

const (
	// FormatUndefined marks a descriptor that was never allocated.
	FormatUndefined Format = iota

	// FormatR8 is a single 8-bit unsigned normalized channel.
	FormatR8

	// FormatBGRA8 is four 8-bit unsigned normalized channels in B, G, R, A order.
	FormatBGRA8
)

// String returns a human-readable name for the format.
func (f Format) String() string {
	switch f {
	case FormatUndefined:
		return "Undefined"
	case FormatR8:
		return "R8"
	case FormatBGRA8:
		return "BGRA8"
	default:
		return fmt.Sprintf("Format(%d)", f)
	}
}

// BytesPerPixel returns the texel size in bytes, or 0 for FormatUndefined.
func (f Format) BytesPerPixel() int {
	switch f {
	case FormatR8:
		return 1
	case FormatBGRA8:
		return 4
	default:
		return 0
	}
}

// GPUFormat converts to the WebGPU texture format.
func (f Format) GPUFormat() gputypes.TextureFormat {
	switch f {
	case FormatR8:
		return gputypes.TextureFormatR8Unorm
	case FormatBGRA8:
		return gputypes.TextureFormatBGRA8Unorm
	default:
		return gputypes.TextureFormatUndefined
	}
}

// Dimension is the texture dimensionality.
type Dimension uint8

const (
	// Dimension2D is a planar texture. Depth is always 1.
	Dimension2D Dimension = iota

	// Dimension3D is a volume texture.
	Dimension3D
)

func (d Dimension) String() string {
	if d == Dimension3D {
		return "3D"
	}
	return "2D"
}

// Descriptor describes a texture's layout. Descriptors are comparable; two
// equal descriptors describe the same allocation.
type Descriptor struct {
	Label     string
	Format    Format
	Width     int
	Height    int
	Depth     int
	Dimension Dimension

	// Readable textures support ReadTexture.
	Readable bool

	// RenderTarget textures may also be bound as a color attachment.
	RenderTarget bool
}

// Validate reports whether the descriptor can be allocated.
func (d Descriptor) Validate() error {
	if d.Format.BytesPerPixel() == 0 {
		return fmt.Errorf("%w: format %s", ErrInvalidDescriptor, d.Format)
	}
	if d.Width <= 0 || d.Height <= 0 || d.Depth <= 0 {
		return fmt.Errorf("%w: size %dx%dx%d", ErrInvalidDescriptor, d.Width, d.Height, d.Depth)
	}
	if d.Dimension == Dimension2D && d.Depth != 1 {
		return fmt.Errorf("%w: 2D texture with depth %d", ErrInvalidDescriptor, d.Depth)
	}
	return nil
}

// ByteSize returns the size of the tightly packed texel data.
func (d Descriptor) ByteSize() int {
	return d.Width * d.Height * d.Depth * d.Format.BytesPerPixel()
}

// Full returns the region covering the whole texture.
func (d Descriptor) Full() Region {
	return Region{Width: d.Width, Height: d.Height, Depth: d.Depth}
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%s %s %dx%dx%d", d.Dimension, d.Format, d.Width, d.Height, d.Depth)
}

// Region is a box of texels. Data written to a region is tightly packed:
// Width texels per row, Height rows per slice, Depth slices.
type Region struct {
	X, Y, Z              int
	Width, Height, Depth int
}

// Within reports whether r lies inside a texture described by d.
func (r Region) Within(d Descriptor) bool {
	if r.X < 0 || r.Y < 0 || r.Z < 0 || r.Width <= 0 || r.Height <= 0 || r.Depth <= 0 {
		return false
	}
	return r.X+r.Width <= d.Width && r.Y+r.Height <= d.Height && r.Z+r.Depth <= d.Depth
}

// Texels returns the number of texels in the region.
func (r Region) Texels() int {
	return r.Width * r.Height * r.Depth
}

// TextureID identifies a texture owned by a Device. Zero is never issued.
type TextureID uint64

// Device creates and fills textures.
type Device interface {
	// CreateTexture allocates a zero-initialized texture.
	CreateTexture(desc Descriptor) (TextureID, error)

	// WriteTexture copies tightly packed data into region of the texture.
	// The device does not retain data after returning.
	WriteTexture(id TextureID, region Region, data []byte) error

	// ReadTexture returns the whole texture as tightly packed data. It blocks
	// until the GPU has finished every earlier write.
	ReadTexture(id TextureID) ([]byte, error)

	// DestroyTexture releases the texture. Unknown IDs are ignored.
	DestroyTexture(id TextureID)

	// Close releases every remaining texture and the device itself.
	Close() error
}

// ThreadBinder is implemented by devices whose API is bound to the OS thread
// that issues calls (OpenGL contexts). BindThread is called once from the
// locked resource thread before any other method.
type ThreadBinder interface {
	BindThread() error
}

// CheckWrite validates a write against a descriptor. Backends call it before
// touching the GPU.
func CheckWrite(desc Descriptor, region Region, data []byte) error {
	if !region.Within(desc) {
		return fmt.Errorf("%w: %+v in %s", ErrRegionOutOfBounds, region, desc)
	}
	if want := region.Texels() * desc.Format.BytesPerPixel(); len(data) != want {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrDataSize, len(data), want)
	}
	return nil
}
