package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/gogpu/texbridge"
	"github.com/gogpu/texbridge/imageops"
	"github.com/gogpu/texbridge/resource"
)

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithFPS paces the loop to at most fps frames per second. Zero (the
// default) pulls frames as fast as the source delivers them.
func WithFPS(fps float64) LoopOption {
	return func(l *Loop) { l.fps = fps }
}

// WithResize scales every frame to width×height before processing.
func WithResize(width, height int, mode texbridge.Interpolation) LoopOption {
	return func(l *Loop) { l.width, l.height, l.interp = width, height, mode }
}

// WithOps runs steps on every frame, in order, before publishing. A
// failing step leaves the frame as it was and the loop continues.
func WithOps(steps ...imageops.Step) LoopOption {
	return func(l *Loop) { l.steps = append(l.steps, steps...) }
}

// WithResizeToSink resamples frames to the sink's texture size instead of
// reallocating the texture when sizes differ.
func WithResizeToSink() LoopOption {
	return func(l *Loop) { l.resizeToSink = true }
}

// WithMaxFrames stops the loop after n published or failed frames.
func WithMaxFrames(n int) LoopOption {
	return func(l *Loop) { l.maxFrames = n }
}

// WithFrameHook calls fn after every successful publish. fn runs on the
// loop goroutine.
func WithFrameHook(fn func(*Frame, *resource.Resource)) LoopOption {
	return func(l *Loop) { l.hook = fn }
}

// LoopStats counts what the loop did.
type LoopStats struct {
	Frames          uint64
	Published       uint64
	OpFailures      uint64
	PublishFailures uint64
	LastSeq         uint64
}

// Loop pulls frames from a Source and publishes them to a sink.
type Loop struct {
	src   Source
	sink  texbridge.TextureSink
	coord *texbridge.Coordinator

	fps           float64
	width, height int
	interp        texbridge.Interpolation
	steps         []imageops.Step
	resizeToSink  bool
	maxFrames     int
	hook          func(*Frame, *resource.Resource)

	frames          atomic.Uint64
	published       atomic.Uint64
	opFailures      atomic.Uint64
	publishFailures atomic.Uint64
	lastSeq         atomic.Uint64
}

// NewLoop creates a loop publishing frames from src to sink through coord.
func NewLoop(src Source, sink texbridge.TextureSink, coord *texbridge.Coordinator, opts ...LoopOption) (*Loop, error) {
	if src == nil || sink == nil || coord == nil {
		return nil, errors.New("capture: loop needs a source, a sink and a coordinator")
	}
	l := &Loop{src: src, sink: sink, coord: coord, interp: texbridge.InterpBilinear}
	for _, opt := range opts {
		opt(l)
	}
	if l.fps < 0 {
		return nil, fmt.Errorf("capture: negative fps %v", l.fps)
	}
	if (l.width != 0 || l.height != 0) && (l.width <= 0 || l.height <= 0) {
		return nil, fmt.Errorf("%w: resize %dx%d", texbridge.ErrInvalidDimensions, l.width, l.height)
	}
	return l, nil
}

// Run processes frames until the source ends, ctx is done, the frame limit
// is reached, or the sink's resource thread closes. Reaching the end of the
// stream is not an error. Run does not close the source.
func (l *Loop) Run(ctx context.Context) error {
	log := texbridge.Logger().With("sink", l.sink.Label())
	log.Info("capture: loop started", "fps", l.fps, "ops", len(l.steps))

	var tick <-chan time.Time
	if l.fps > 0 {
		ticker := time.NewTicker(time.Duration(float64(time.Second) / l.fps))
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		if l.maxFrames > 0 && l.frames.Load() >= uint64(l.maxFrames) {
			break
		}
		if tick != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tick:
			}
		}

		frame, err := l.src.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
		if err := l.process(frame); err != nil {
			return err
		}
	}

	st := l.Stats()
	log.Info("capture: loop finished", "frames", st.Frames, "published", st.Published,
		"publish_failures", st.PublishFailures, "op_failures", st.OpFailures)
	return nil
}

// process runs one frame through resize, operations and publish. Only a
// closed resource thread is fatal.
func (l *Loop) process(f *Frame) error {
	l.frames.Add(1)
	l.lastSeq.Store(f.Seq)
	log := texbridge.Logger().With("seq", f.Seq, "trace_id", f.TraceID.String())

	if l.width > 0 && (f.Buffer.Width() != l.width || f.Buffer.Height() != l.height) {
		if err := f.Buffer.Resample(l.width, l.height, l.interp); err != nil {
			l.publishFailures.Add(1)
			log.Warn("capture: resize failed", "err", err)
			return nil
		}
	}

	for _, s := range l.steps {
		if err := imageops.Apply(s.Op, f.Buffer, f.Buffer, s.Params); err != nil {
			l.opFailures.Add(1)
		}
	}

	res, err := l.coord.Publish(f.Buffer, l.sink, l.resizeToSink)
	if err != nil {
		l.publishFailures.Add(1)
		if errors.Is(err, resource.ErrClosed) {
			return err
		}
		log.Warn("capture: publish failed", "err", err)
		return nil
	}
	l.published.Add(1)
	log.Debug("capture: frame published", "width", f.Buffer.Width(), "height", f.Buffer.Height())
	if l.hook != nil {
		l.hook(f, res)
	}
	return nil
}

// Stats returns a snapshot of the counters. Safe for concurrent use.
func (l *Loop) Stats() LoopStats {
	return LoopStats{
		Frames:          l.frames.Load(),
		Published:       l.published.Load(),
		OpFailures:      l.opFailures.Load(),
		PublishFailures: l.publishFailures.Load(),
		LastSeq:         l.lastSeq.Load(),
	}
}
