package texbridge

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/gogpu/texbridge/internal/pool"
	"github.com/gogpu/texbridge/resource"
)

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithInterpolation sets the kernel used when a publish resamples.
func WithInterpolation(m Interpolation) CoordinatorOption {
	return func(c *Coordinator) { c.interp = m }
}

// WithAlpha sets the alpha written when expanding to BGRA. Defaults to 255.
func WithAlpha(a uint8) CoordinatorOption {
	return func(c *Coordinator) { c.alpha = a }
}

// WithPoolSize gives the coordinator a private region pool retaining up to
// n regions per size, instead of the shared default pool.
func WithPoolSize(n int) CoordinatorOption {
	return func(c *Coordinator) { c.pool = pool.New(n) }
}

// Coordinator publishes pixel buffers to texture sinks. One coordinator
// serves sinks of every kind and may be shared by several producers.
type Coordinator struct {
	pool   *pool.Pool
	interp Interpolation
	alpha  uint8

	published atomic.Int64
	failed    atomic.Int64
}

// NewCoordinator creates a coordinator.
func NewCoordinator(opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		pool:   pool.Default,
		interp: InterpBilinear,
		alpha:  0xff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Publish commits buf to sink and returns the GPU resource the data is
// headed for. It never waits for the GPU: the converted bytes are handed
// to the resource thread and the call returns.
//
// When buffer and texture sizes differ, resizeRequested scales buf in place
// to the texture size; otherwise the texture is reallocated to the buffer
// size, which fails with ErrSizeMismatch on fixed sinks.
//
// A fixed sink of another format fails with ErrUnsupportedFormat; if the
// sizes differ too, the error also matches ErrSizeMismatch.
//
// A failed publish leaves the sink untouched. The buffer is modified only
// by a resample that already happened.
//
// Publish may be called from several goroutines. Allocation and upload are
// two steps, so when producers publish buffers of different shapes to one
// sink, a reallocation by one can make another's upload fail with
// ErrSizeMismatch. The sink is not corrupted and the next publish succeeds.
func (c *Coordinator) Publish(buf *PixelBuffer, sink TextureSink, resizeRequested bool) (*resource.Resource, error) {
	if sink == nil {
		return nil, errors.New("texbridge: nil sink")
	}
	res, err := c.publish(buf, sink, resizeRequested)
	if err != nil {
		c.failed.Add(1)
		Logger().Debug("publish failed", "sink", sink.Label(), "err", err)
		return nil, err
	}
	c.published.Add(1)
	return res, nil
}

func (c *Coordinator) publish(buf *PixelBuffer, sink TextureSink, resizeRequested bool) (*resource.Resource, error) {
	if buf == nil || buf.IsEmpty() {
		return nil, ErrEmptyBuffer
	}
	if err := sink.Accept(buf); err != nil {
		return nil, err
	}
	plan, err := NegotiateFor(sink.Kind(), buf.ChannelType(), buf.Channels())
	if err != nil {
		return nil, err
	}

	desc, allocated := sink.Descriptor()
	if allocated && !sink.Reallocatable() && desc.Format != plan.TargetFormat {
		if !resizeRequested && (buf.Width() != desc.Width || buf.Height() != desc.Height || buf.Depth() != desc.Depth) {
			return nil, fmt.Errorf("%w: fixed sink %s is %s, buffer needs %s; %w: buffer %dx%dx%d, texture %dx%dx%d",
				ErrUnsupportedFormat, sink.Label(), desc.Format, plan.TargetFormat,
				ErrSizeMismatch, buf.Width(), buf.Height(), buf.Depth(), desc.Width, desc.Height, desc.Depth)
		}
		return nil, fmt.Errorf("%w: fixed sink %s is %s, buffer needs %s", ErrUnsupportedFormat, sink.Label(), desc.Format, plan.TargetFormat)
	}

	action := DecideResize(ResizeInput{
		Width:           buf.Width(),
		Height:          buf.Height(),
		Depth:           buf.Depth(),
		Texture:         desc,
		Allocated:       allocated,
		ResizeRequested: resizeRequested,
		Reallocatable:   sink.Reallocatable(),
	})
	switch action {
	case ResizeResample:
		if buf.Dims() == 3 {
			err = buf.ResampleVolume(desc.Width, desc.Height, desc.Depth, c.interp)
		} else {
			err = buf.Resample(desc.Width, desc.Height, c.interp)
		}
		if err != nil {
			return nil, fmt.Errorf("texbridge: resample to %dx%dx%d: %w", desc.Width, desc.Height, desc.Depth, err)
		}
	case ResizeFail:
		return nil, fmt.Errorf("%w: buffer %dx%dx%d, fixed texture %dx%dx%d", ErrSizeMismatch,
			buf.Width(), buf.Height(), buf.Depth(), desc.Width, desc.Height, desc.Depth)
	}

	if err := sink.EnsureAllocated(plan.TargetFormat, buf.Width(), buf.Height(), buf.Depth()); err != nil {
		return nil, err
	}
	desc, _ = sink.Descriptor()

	region := c.pool.Get(buf.ElementCount() * plan.TargetElementSize)
	if err := plan.Apply(region, buf.Data(), c.alpha); err != nil {
		c.pool.Put(region)
		return nil, fmt.Errorf("texbridge: convert %s: %w", plan.Conversion, err)
	}
	err = sink.SubmitRegionUpdate(RegionUpdate{
		Region:  desc.Full(),
		Data:    region,
		Release: c.pool.Put,
	})
	if err != nil {
		return nil, err
	}
	return sink.Handle(), nil
}

// CoordinatorStats is a snapshot of publish counters.
type CoordinatorStats struct {
	Published  int64
	Failed     int64
	PoolHits   int64
	PoolMisses int64
}

// Stats returns the publish counters.
func (c *Coordinator) Stats() CoordinatorStats {
	hits, misses := c.pool.Stats()
	return CoordinatorStats{
		Published:  c.published.Load(),
		Failed:     c.failed.Load(),
		PoolHits:   hits,
		PoolMisses: misses,
	}
}
