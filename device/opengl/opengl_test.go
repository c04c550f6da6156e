// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package opengl

import (
	"errors"
	"testing"

	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/gogpu/texbridge/device"
	"github.com/gogpu/texbridge/resource"
)

func TestPixelFormat(t *testing.T) {
	tests := []struct {
		format       device.Format
		wantInternal int32
		wantFormat   uint32
		wantOK       bool
	}{
		{device.FormatR8, gl.R8, gl.RED, true},
		{device.FormatBGRA8, gl.RGBA8, gl.BGRA, true},
		{device.FormatUndefined, 0, 0, false},
	}
	for _, tt := range tests {
		internal, format, ok := pixelFormat(tt.format)
		if internal != tt.wantInternal || format != tt.wantFormat || ok != tt.wantOK {
			t.Errorf("pixelFormat(%s) = %d, %d, %v", tt.format, internal, format, ok)
		}
	}
}

func TestTarget(t *testing.T) {
	if got := target(device.Descriptor{Dimension: device.Dimension2D}); got != gl.TEXTURE_2D {
		t.Errorf("2-D target = 0x%x", got)
	}
	if got := target(device.Descriptor{Dimension: device.Dimension3D}); got != gl.TEXTURE_3D {
		t.Errorf("3-D target = 0x%x", got)
	}
}

func TestUnboundDevice(t *testing.T) {
	d := New()
	if _, err := d.CreateTexture(device.Descriptor{Format: device.FormatR8, Width: 1, Height: 1, Depth: 1}); !errors.Is(err, ErrNotBound) {
		t.Errorf("CreateTexture before BindThread = %v, want ErrNotBound", err)
	}
	if err := d.Close(); err != nil {
		t.Errorf("Close unbound = %v", err)
	}
	if _, err := d.ReadTexture(1); !errors.Is(err, device.ErrClosed) {
		t.Errorf("ReadTexture after Close = %v, want ErrClosed", err)
	}
}

// TestRoundTripOnResourceThread needs a display; it is skipped when no GL
// context can be created.
func TestRoundTripOnResourceThread(t *testing.T) {
	th := resource.NewThread(New(), resource.WithName("gl-test"))
	if err := th.Start(); err != nil {
		t.Skipf("no OpenGL context: %v", err)
	}
	defer th.Close()

	res := th.NewResource("gray")
	desc := device.Descriptor{Format: device.FormatR8, Width: 3, Height: 2, Depth: 1, Readable: true}
	if err := th.Allocate(res, desc, 1); err != nil {
		t.Fatal(err)
	}
	data := []byte{1, 2, 3, 4, 5, 6}
	if err := th.Write(res, 1, desc.Full(), data, nil); err != nil {
		t.Fatal(err)
	}
	got, _, err := th.Read(res)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	for i := range data {
		if got[i] != data[i] {
			t.Fatalf("Read = %v, want %v", got, data)
		}
	}
}
