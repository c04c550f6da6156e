package texbridge

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/texbridge/device"
	"github.com/gogpu/texbridge/resource"
)

// SinkKind discriminates the texture sinks.
type SinkKind uint8

const (
	// KindRenderTarget is a 2-D color attachment; always BGRA8.
	KindRenderTarget SinkKind = iota

	// KindTexture2D is a sampled 2-D texture; R8 or BGRA8.
	KindTexture2D

	// KindVolume is a 3-D texture fed by single-channel 8-bit volumes.
	KindVolume
)

// String returns the kind name.
func (k SinkKind) String() string {
	switch k {
	case KindRenderTarget:
		return "render-target"
	case KindTexture2D:
		return "texture2d"
	case KindVolume:
		return "volume"
	default:
		return fmt.Sprintf("SinkKind(%d)", k)
	}
}

// RegionUpdate is a block of converted texel data headed for a sink. The
// sink takes ownership of Data; Release, if set, receives it back once the
// resource thread is done with it.
type RegionUpdate struct {
	Region  device.Region
	Data    []byte
	Release func([]byte)
}

func (u RegionUpdate) release() {
	if u.Release != nil {
		u.Release(u.Data)
	}
}

// TextureSink is a GPU-resident destination for pixel data.
type TextureSink interface {
	Kind() SinkKind
	Label() string

	// Descriptor returns the most recently requested texture layout and
	// whether one was ever requested.
	Descriptor() (TextureDescriptor, bool)

	// Reallocatable reports whether the texture may change size.
	Reallocatable() bool

	// Accept checks that the sink can hold buf at all.
	Accept(buf *PixelBuffer) error

	// EnsureAllocated requests a texture of the given layout. It is a no-op
	// when the current descriptor already matches.
	EnsureAllocated(format TextureFormat, width, height, depth int) error

	// SubmitRegionUpdate hands u to the resource thread without blocking.
	SubmitRegionUpdate(u RegionUpdate) error

	// Handle returns the GPU resource backing the sink.
	Handle() *resource.Resource
}

// SinkOption configures a Sink.
type SinkOption func(*sinkConfig)

type sinkConfig struct {
	label    string
	fixed    bool
	readable bool
	initial  *TextureDescriptor
}

// WithLabel sets the debug label.
func WithLabel(label string) SinkOption {
	return func(c *sinkConfig) { c.label = label }
}

// WithFixedSize forbids reallocation once the texture exists. Publishing a
// buffer of another size then requires a resize request.
func WithFixedSize() SinkOption {
	return func(c *sinkConfig) { c.fixed = true }
}

// WithoutReadback creates textures without CPU read-back support.
func WithoutReadback() SinkOption {
	return func(c *sinkConfig) { c.readable = false }
}

// WithAllocation allocates the texture at construction, for sinks whose
// size is dictated by the consumer rather than by the first frame.
func WithAllocation(format TextureFormat, width, height, depth int) SinkOption {
	return func(c *sinkConfig) {
		c.initial = &TextureDescriptor{Format: format, Width: width, Height: height, Depth: depth}
	}
}

// Sink is the texture sink for all three kinds. It is safe for concurrent
// use; uploads from one producer reach the GPU in submission order.
type Sink struct {
	kind     SinkKind
	label    string
	fixed    bool
	readable bool
	thread   *resource.Thread
	res      *resource.Resource

	mu         sync.Mutex
	desc       TextureDescriptor
	allocated  bool
	generation uint64
	closed     bool

	allocRequests atomic.Int64
	updates       atomic.Int64
}

// NewRenderTargetSink creates a render-target sink.
func NewRenderTargetSink(thread *resource.Thread, opts ...SinkOption) (*Sink, error) {
	return NewSink(KindRenderTarget, thread, opts...)
}

// NewTexture2DSink creates a 2-D texture sink.
func NewTexture2DSink(thread *resource.Thread, opts ...SinkOption) (*Sink, error) {
	return NewSink(KindTexture2D, thread, opts...)
}

// NewVolumeSink creates a volume texture sink.
func NewVolumeSink(thread *resource.Thread, opts ...SinkOption) (*Sink, error) {
	return NewSink(KindVolume, thread, opts...)
}

// NewSink creates a sink of the given kind whose texture is managed by
// thread. The texture is allocated lazily by the first publish unless
// WithAllocation is given.
func NewSink(kind SinkKind, thread *resource.Thread, opts ...SinkOption) (*Sink, error) {
	if thread == nil {
		return nil, errors.New("texbridge: nil resource thread")
	}
	cfg := sinkConfig{label: kind.String(), readable: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Sink{
		kind:     kind,
		label:    cfg.label,
		fixed:    cfg.fixed,
		readable: cfg.readable,
		thread:   thread,
		res:      thread.NewResource(cfg.label),
	}
	if cfg.initial != nil {
		d := cfg.initial
		if err := s.EnsureAllocated(d.Format, d.Width, d.Height, d.Depth); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Kind returns the sink kind.
func (s *Sink) Kind() SinkKind { return s.kind }

// Label returns the debug label.
func (s *Sink) Label() string { return s.label }

// Reallocatable reports whether the texture may change size.
func (s *Sink) Reallocatable() bool { return !s.fixed }

// Readable reports whether ReadBack is supported.
func (s *Sink) Readable() bool { return s.readable }

// Handle returns the GPU resource backing the sink.
func (s *Sink) Handle() *resource.Resource { return s.res }

// Descriptor returns the most recently requested layout.
func (s *Sink) Descriptor() (TextureDescriptor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.desc, s.allocated
}

// Resident returns the layout the resource thread actually allocated. It
// trails Descriptor until the thread catches up and reports false if the
// allocation failed.
func (s *Sink) Resident() (TextureDescriptor, bool) {
	return s.res.Resident()
}

// Accept checks dimensionality and, for volumes, the element layout.
func (s *Sink) Accept(buf *PixelBuffer) error {
	switch s.kind {
	case KindVolume:
		if buf.Dims() != 3 || buf.Channels() != 1 || buf.ChannelType() != ChannelU8 {
			return fmt.Errorf("%w: got %d-D %s × %d", ErrVolumeFormatMismatch, buf.Dims(), buf.ChannelType(), buf.Channels())
		}
	default:
		if buf.Dims() != 2 {
			return fmt.Errorf("%w: %s sink cannot hold a %d-D buffer", ErrUnsupportedFormat, s.kind, buf.Dims())
		}
	}
	return nil
}

// describe builds the full descriptor for a requested layout.
func (s *Sink) describe(format TextureFormat, width, height, depth int) TextureDescriptor {
	d := TextureDescriptor{
		Label:    s.label,
		Format:   format,
		Width:    width,
		Height:   height,
		Depth:    depth,
		Readable: s.readable,
	}
	switch s.kind {
	case KindRenderTarget:
		d.Format = FormatBGRA8
		d.RenderTarget = true
		d.Depth = 1
	case KindTexture2D:
		d.Depth = 1
	case KindVolume:
		d.Format = FormatR8
		d.Dimension = device.Dimension3D
	}
	return d
}

// EnsureAllocated requests a texture of the given layout. Repeating the
// current layout enqueues nothing. A new layout bumps the sink generation,
// so uploads computed for the previous texture are discarded by the
// resource thread.
func (s *Sink) EnsureAllocated(format TextureFormat, width, height, depth int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}

	desc := s.describe(format, width, height, depth)
	if err := desc.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDimensions, err)
	}
	if s.allocated && desc == s.desc {
		return nil
	}
	if s.allocated && s.fixed {
		if desc.Format != s.desc.Format {
			return fmt.Errorf("%w: fixed %s sink is %s, need %s", ErrUnsupportedFormat, s.kind, s.desc.Format, desc.Format)
		}
		return fmt.Errorf("%w: fixed %s sink is %dx%dx%d, need %dx%dx%d", ErrSizeMismatch, s.kind,
			s.desc.Width, s.desc.Height, s.desc.Depth, desc.Width, desc.Height, desc.Depth)
	}

	gen := s.generation + 1
	if err := s.thread.Allocate(s.res, desc, gen); err != nil {
		return fmt.Errorf("texbridge: allocate %s: %w", s.label, err)
	}
	s.generation = gen
	s.desc = desc
	s.allocated = true
	s.allocRequests.Add(1)
	Logger().Debug("sink allocation requested", "sink", s.label, "desc", desc.String(), "gen", gen)
	return nil
}

// SubmitRegionUpdate validates u against the current layout and hands it to
// the resource thread. On error the data is released immediately.
func (s *Sink) SubmitRegionUpdate(u RegionUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		u.release()
		return ErrSinkClosed
	}
	if !s.allocated {
		u.release()
		return ErrNotAllocated
	}
	if err := device.CheckWrite(s.desc, u.Region, u.Data); err != nil {
		u.release()
		return fmt.Errorf("%w: %v", ErrSizeMismatch, err)
	}
	if err := s.thread.Write(s.res, s.generation, u.Region, u.Data, u.Release); err != nil {
		return fmt.Errorf("texbridge: submit to %s: %w", s.label, err)
	}
	s.updates.Add(1)
	return nil
}

// ReadBack copies the texture into a new buffer, blocking until every
// earlier upload has landed. Render targets and BGRA8 textures yield
// 4-channel buffers, R8 textures 1-channel buffers, volumes 3-D buffers.
func (s *Sink) ReadBack() (*PixelBuffer, error) {
	s.mu.Lock()
	readable, allocated, closed := s.readable, s.allocated, s.closed
	s.mu.Unlock()
	switch {
	case closed:
		return nil, ErrSinkClosed
	case !readable:
		return nil, fmt.Errorf("%w: %s created without read-back", ErrReadbackUnavailable, s.label)
	case !allocated:
		return nil, fmt.Errorf("%w: %s has no texture", ErrReadbackUnavailable, s.label)
	}

	data, desc, err := s.thread.Read(s.res)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadbackUnavailable, err)
	}
	return bufferFromTexture(desc, data)
}

func bufferFromTexture(desc TextureDescriptor, data []byte) (*PixelBuffer, error) {
	channels := desc.Format.BytesPerPixel()
	if channels == 0 {
		return nil, fmt.Errorf("%w: format %s", ErrUnsupportedFormat, desc.Format)
	}
	size := []int{desc.Height, desc.Width}
	if desc.Dimension == device.Dimension3D {
		size = []int{desc.Depth, desc.Height, desc.Width}
	}
	return FromBytes(size, ChannelU8, channels, data)
}

// SinkStats is a snapshot of sink counters.
type SinkStats struct {
	AllocationRequests int64
	Updates            int64
	Generation         uint64
}

// Stats returns the sink counters.
func (s *Sink) Stats() SinkStats {
	s.mu.Lock()
	gen := s.generation
	s.mu.Unlock()
	return SinkStats{
		AllocationRequests: s.allocRequests.Load(),
		Updates:            s.updates.Load(),
		Generation:         gen,
	}
}

// Close releases the texture. Further use returns ErrSinkClosed.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.allocated = false
	if err := s.thread.Release(s.res); err != nil && !errors.Is(err, resource.ErrClosed) {
		return err
	}
	return nil
}
