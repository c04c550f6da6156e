package device

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Memory is a Device that keeps textures in host memory. It is safe for
// concurrent use and counts every call, which makes it the device of choice
// for tests and for hosts without a GPU.
type Memory struct {
	mu       sync.Mutex
	textures map[TextureID]*memTexture
	nextID   atomic.Uint64
	closed   bool

	failCreate error
	failWrite  error

	creates  atomic.Int64
	writes   atomic.Int64
	reads    atomic.Int64
	destroys atomic.Int64
	bound    atomic.Int64
}

type memTexture struct {
	desc Descriptor
	data []byte
}

// NewMemory creates an empty in-memory device.
func NewMemory() *Memory {
	return &Memory{textures: make(map[TextureID]*memTexture)}
}

// FailCreate makes every subsequent CreateTexture return err. Pass nil to
// restore normal behavior.
func (m *Memory) FailCreate(err error) {
	m.mu.Lock()
	m.failCreate = err
	m.mu.Unlock()
}

// FailWrite makes every subsequent WriteTexture return err.
func (m *Memory) FailWrite(err error) {
	m.mu.Lock()
	m.failWrite = err
	m.mu.Unlock()
}

// BindThread records the binding; host memory has no thread affinity.
func (m *Memory) BindThread() error {
	m.bound.Add(1)
	return nil
}

// CreateTexture allocates a zeroed texture.
func (m *Memory) CreateTexture(desc Descriptor) (TextureID, error) {
	if err := desc.Validate(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	if m.failCreate != nil {
		return 0, m.failCreate
	}
	id := TextureID(m.nextID.Add(1))
	m.textures[id] = &memTexture{desc: desc, data: make([]byte, desc.ByteSize())}
	m.creates.Add(1)
	return id, nil
}

// WriteTexture copies data into the region.
func (m *Memory) WriteTexture(id TextureID, region Region, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite != nil {
		return m.failWrite
	}
	t, ok := m.textures[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownTexture, id)
	}
	if err := CheckWrite(t.desc, region, data); err != nil {
		return err
	}

	bpp := t.desc.Format.BytesPerPixel()
	rowBytes := region.Width * bpp
	for z := 0; z < region.Depth; z++ {
		for y := 0; y < region.Height; y++ {
			src := (z*region.Height + y) * rowBytes
			dst := (((region.Z+z)*t.desc.Height+region.Y+y)*t.desc.Width + region.X) * bpp
			copy(t.data[dst:dst+rowBytes], data[src:src+rowBytes])
		}
	}
	m.writes.Add(1)
	return nil
}

// ReadTexture returns a copy of the texture data.
func (m *Memory) ReadTexture(id TextureID) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.textures[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownTexture, id)
	}
	if !t.desc.Readable {
		return nil, ErrNotReadable
	}
	m.reads.Add(1)
	out := make([]byte, len(t.data))
	copy(out, t.data)
	return out, nil
}

// DestroyTexture forgets the texture.
func (m *Memory) DestroyTexture(id TextureID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.textures[id]; ok {
		delete(m.textures, id)
		m.destroys.Add(1)
	}
}

// Close drops every texture.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.textures = make(map[TextureID]*memTexture)
	m.closed = true
	return nil
}

// Descriptor returns the descriptor a texture was created with.
func (m *Memory) Descriptor(id TextureID) (Descriptor, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.textures[id]
	if !ok {
		return Descriptor{}, false
	}
	return t.desc, true
}

// MemoryStats is a snapshot of Memory call counters.
type MemoryStats struct {
	Creates  int64
	Writes   int64
	Reads    int64
	Destroys int64
	Live     int
	Binds    int64
}

// Stats returns the call counters.
func (m *Memory) Stats() MemoryStats {
	m.mu.Lock()
	live := len(m.textures)
	m.mu.Unlock()
	return MemoryStats{
		Creates:  m.creates.Load(),
		Writes:   m.writes.Load(),
		Reads:    m.reads.Load(),
		Destroys: m.destroys.Load(),
		Live:     live,
		Binds:    m.bound.Load(),
	}
}
