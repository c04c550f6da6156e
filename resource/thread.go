// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package resource runs the resource thread: the single goroutine, locked to
// an OS thread, that owns a device and applies allocation, upload, read-back
// and release requests in submission order.
//
// Producers enqueue requests without blocking. Upload requests transfer
// ownership of their bytes to the thread, which hands them back through a
// release callback exactly once, whether the upload was applied, dropped as
// stale or failed. Reads block the caller until the thread has processed
// every earlier request; there is no timeout.
package resource

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/gogpu/texbridge/device"
)

// Thread errors.
var (
	// ErrClosed is returned when enqueuing on a closed thread.
	ErrClosed = errors.New("resource: thread closed")

	// ErrNotStarted is returned by blocking calls before Start.
	ErrNotStarted = errors.New("resource: thread not started")

	// ErrNotAllocated is returned when reading a resource with no texture.
	ErrNotAllocated = errors.New("resource: no texture allocated")
)

type opKind uint8

const (
	opAllocate opKind = iota
	opWrite
	opRead
	opRelease
	opBarrier
)

func (k opKind) String() string {
	switch k {
	case opAllocate:
		return "allocate"
	case opWrite:
		return "write"
	case opRead:
		return "read"
	case opRelease:
		return "release"
	case opBarrier:
		return "barrier"
	default:
		return fmt.Sprintf("op(%d)", k)
	}
}

// message is one queued request.
type message struct {
	op     opKind
	res    *Resource
	desc   device.Descriptor
	gen    uint64
	region device.Region
	data   []byte

	release func([]byte)
	reply   chan ReadResult
	done    chan struct{}
}

// ReadResult is the outcome of a read-back.
type ReadResult struct {
	Desc device.Descriptor
	Data []byte
	Err  error
}

// Stats is a snapshot of thread counters.
type Stats struct {
	Enqueued    int64
	Applied     int64
	Dropped     int64 // uploads discarded because a reallocation superseded them
	Failed      int64
	Allocations int64
	Pending     int
}

// Option configures a Thread.
type Option func(*Thread)

// WithName sets the name used in log records.
func WithName(name string) Option {
	return func(t *Thread) { t.name = name }
}

// Thread serializes all device work on one goroutine.
type Thread struct {
	dev  device.Device
	name string

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []message
	closed  bool
	started bool
	done    chan struct{}

	// Owned by the thread goroutine.
	live map[*Resource]struct{}

	enqueued    atomic.Int64
	applied     atomic.Int64
	dropped     atomic.Int64
	failed      atomic.Int64
	allocations atomic.Int64
}

// NewThread creates a thread that drives dev. Requests may be enqueued
// before Start; they are applied once the thread runs.
func NewThread(dev device.Device, opts ...Option) *Thread {
	t := &Thread{
		dev:  dev,
		name: "resource",
		done: make(chan struct{}),
		live: make(map[*Resource]struct{}),
	}
	t.cond = sync.NewCond(&t.mu)
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start launches the thread goroutine and binds the device to it. It returns
// the bind error, in which case the thread is closed.
func (t *Thread) Start() error {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return nil
	}
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	t.started = true
	t.mu.Unlock()

	ready := make(chan error, 1)
	go t.run(ready)
	if err := <-ready; err != nil {
		t.mu.Lock()
		t.closed = true
		t.mu.Unlock()
		t.discardQueue()
		return fmt.Errorf("resource: bind device: %w", err)
	}
	slogger().Info("resource thread started", "name", t.name)
	return nil
}

// NewResource creates an unallocated resource owned by t.
func (t *Thread) NewResource(label string) *Resource {
	return &Resource{label: label, thread: t}
}

// Allocate requests a fresh texture for r, replacing any previous one.
// gen becomes the resource generation: uploads stamped with another
// generation are dropped from then on.
func (t *Thread) Allocate(r *Resource, desc device.Descriptor, gen uint64) error {
	return t.enqueue(message{op: opAllocate, res: r, desc: desc, gen: gen})
}

// Write hands data to the thread for upload into region of r. The thread
// owns data until it calls release (which may be nil). Write never blocks.
func (t *Thread) Write(r *Resource, gen uint64, region device.Region, data []byte, release func([]byte)) error {
	err := t.enqueue(message{op: opWrite, res: r, gen: gen, region: region, data: data, release: release})
	if err != nil && release != nil {
		release(data)
	}
	return err
}

// Read blocks until the thread has applied every earlier request and
// returns the texture contents of r.
func (t *Thread) Read(r *Resource) ([]byte, device.Descriptor, error) {
	reply := make(chan ReadResult, 1)
	if err := t.enqueueStarted(message{op: opRead, res: r, reply: reply}); err != nil {
		return nil, device.Descriptor{}, err
	}
	res := <-reply
	return res.Data, res.Desc, res.Err
}

// Release destroys the texture of r. The resource may be allocated again.
func (t *Thread) Release(r *Resource) error {
	return t.enqueue(message{op: opRelease, res: r})
}

// Sync blocks until every request enqueued before it was applied.
func (t *Thread) Sync() error {
	done := make(chan struct{})
	if err := t.enqueueStarted(message{op: opBarrier, done: done}); err != nil {
		return err
	}
	<-done
	return nil
}

// Close stops accepting requests, drains the queue, destroys every live
// texture and closes the device.
func (t *Thread) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		<-t.done
		return nil
	}
	t.closed = true
	started := t.started
	t.cond.Broadcast()
	t.mu.Unlock()

	if !started {
		t.discardQueue()
		close(t.done)
		return t.dev.Close()
	}
	<-t.done
	return nil
}

// Stats returns the thread counters.
func (t *Thread) Stats() Stats {
	t.mu.Lock()
	pending := len(t.queue)
	t.mu.Unlock()
	return Stats{
		Enqueued:    t.enqueued.Load(),
		Applied:     t.applied.Load(),
		Dropped:     t.dropped.Load(),
		Failed:      t.failed.Load(),
		Allocations: t.allocations.Load(),
		Pending:     pending,
	}
}

func (t *Thread) enqueue(msg message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	t.queue = append(t.queue, msg)
	t.enqueued.Add(1)
	t.cond.Signal()
	return nil
}

func (t *Thread) enqueueStarted(msg message) error {
	t.mu.Lock()
	started := t.started
	t.mu.Unlock()
	if !started {
		return ErrNotStarted
	}
	return t.enqueue(msg)
}

// discardQueue releases the bytes of every queued upload without applying it.
func (t *Thread) discardQueue() {
	t.mu.Lock()
	q := t.queue
	t.queue = nil
	t.mu.Unlock()
	for _, msg := range q {
		t.finish(msg, ErrClosed)
	}
}

func (t *Thread) next() (message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for len(t.queue) == 0 && !t.closed {
		t.cond.Wait()
	}
	if len(t.queue) == 0 {
		return message{}, false
	}
	msg := t.queue[0]
	t.queue[0] = message{}
	t.queue = t.queue[1:]
	return msg, true
}

func (t *Thread) run(ready chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(t.done)

	if b, ok := t.dev.(device.ThreadBinder); ok {
		if err := b.BindThread(); err != nil {
			_ = t.dev.Close()
			ready <- err
			return
		}
	}
	ready <- nil

	for {
		msg, ok := t.next()
		if !ok {
			break
		}
		t.apply(msg)
	}

	for r := range t.live {
		t.dev.DestroyTexture(r.id)
		r.id = 0
		r.resident.Store(nil)
	}
	t.live = nil
	if err := t.dev.Close(); err != nil {
		slogger().Warn("resource thread: device close failed", "name", t.name, "err", err)
	}
	slogger().Info("resource thread stopped", "name", t.name, "applied", t.applied.Load(), "dropped", t.dropped.Load())
}

func (t *Thread) apply(msg message) {
	r := msg.res
	switch msg.op {
	case opAllocate:
		if r.id != 0 {
			t.dev.DestroyTexture(r.id)
			r.id = 0
			delete(t.live, r)
		}
		r.resident.Store(nil)
		r.generation.Store(msg.gen)
		id, err := t.dev.CreateTexture(msg.desc)
		if err != nil {
			t.fail(msg, fmt.Errorf("create texture %s: %w", msg.desc, err))
			return
		}
		r.id = id
		desc := msg.desc
		r.resident.Store(&desc)
		r.setErr(nil)
		t.live[r] = struct{}{}
		t.allocations.Add(1)
		t.applied.Add(1)
		slogger().Debug("texture allocated", "label", r.label, "desc", desc.String(), "gen", msg.gen)

	case opWrite:
		if msg.gen != r.generation.Load() {
			t.dropped.Add(1)
			slogger().Debug("stale upload dropped", "label", r.label, "gen", msg.gen, "current", r.generation.Load())
			t.finish(msg, nil)
			return
		}
		if r.id == 0 {
			// The allocation failure was already recorded on the resource.
			t.failed.Add(1)
			t.finish(msg, ErrNotAllocated)
			return
		}
		if err := t.dev.WriteTexture(r.id, msg.region, msg.data); err != nil {
			t.fail(msg, fmt.Errorf("write texture: %w", err))
			return
		}
		t.applied.Add(1)
		t.finish(msg, nil)

	case opRead:
		desc, ok := r.Resident()
		if !ok || r.id == 0 {
			msg.reply <- ReadResult{Err: ErrNotAllocated}
			return
		}
		data, err := t.dev.ReadTexture(r.id)
		if err != nil {
			t.failed.Add(1)
			msg.reply <- ReadResult{Err: fmt.Errorf("read texture: %w", err)}
			return
		}
		t.applied.Add(1)
		msg.reply <- ReadResult{Desc: desc, Data: data}

	case opRelease:
		if r.id != 0 {
			t.dev.DestroyTexture(r.id)
			r.id = 0
			delete(t.live, r)
		}
		r.resident.Store(nil)
		t.applied.Add(1)

	case opBarrier:
		close(msg.done)
	}
}

// fail records a device failure. Failures are never returned to producers;
// they are logged and kept on the resource.
func (t *Thread) fail(msg message, err error) {
	t.failed.Add(1)
	label := ""
	if msg.res != nil {
		msg.res.setErr(err)
		label = msg.res.label
	}
	slogger().Warn("resource thread: request failed", "name", t.name, "op", msg.op.String(), "label", label, "err", err)
	t.finish(msg, err)
}

// finish returns owned bytes and unblocks waiters.
func (t *Thread) finish(msg message, err error) {
	if msg.release != nil {
		msg.release(msg.data)
	}
	if msg.reply != nil {
		msg.reply <- ReadResult{Err: err}
	}
	if msg.done != nil {
		close(msg.done)
	}
}
