// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package resource

import (
	"sync"
	"sync/atomic"

	"github.com/gogpu/texbridge/device"
)

// Resource is a GPU texture owned by a Thread. Producers hold it as an
// opaque handle; only the thread goroutine touches the device texture.
type Resource struct {
	label  string
	thread *Thread

	// Owned by the thread goroutine.
	id device.TextureID

	generation atomic.Uint64
	resident   atomic.Pointer[device.Descriptor]

	errMu   sync.Mutex
	lastErr error
}

// Label returns the debug label given at creation.
func (r *Resource) Label() string { return r.label }

// Thread returns the thread that owns the resource.
func (r *Resource) Thread() *Thread { return r.thread }

// Resident returns the descriptor of the texture the thread has actually
// allocated. It lags behind allocation requests until the thread processes
// them, and reports false after a failed allocation or a release.
func (r *Resource) Resident() (device.Descriptor, bool) {
	d := r.resident.Load()
	if d == nil {
		return device.Descriptor{}, false
	}
	return *d, true
}

// Generation returns the allocation generation the thread last applied.
func (r *Resource) Generation() uint64 { return r.generation.Load() }

// Err returns the last device error recorded for the resource, if any.
func (r *Resource) Err() error {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	return r.lastErr
}

func (r *Resource) setErr(err error) {
	r.errMu.Lock()
	r.lastErr = err
	r.errMu.Unlock()
}
