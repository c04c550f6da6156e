// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package opengl implements device.Device on OpenGL 4.1 core.
//
// The device owns a hidden GLFW window whose context is made current on
// the resource thread by BindThread. On macOS GLFW must be initialized on
// the main thread, so use this device there only when the resource thread
// is started from the main goroutine with the OS thread locked.
package opengl

import (
	"errors"
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/gogpu/texbridge/device"
)

// ErrNotBound is returned when the device is used before BindThread.
var ErrNotBound = errors.New("opengl: context not bound to a thread")

// Device is a device.Device backed by OpenGL textures.
type Device struct {
	window   *glfw.Window
	textures map[device.TextureID]*texture
	nextID   device.TextureID
	closed   bool
}

type texture struct {
	desc device.Descriptor
	name uint32
}

var (
	_ device.Device       = (*Device)(nil)
	_ device.ThreadBinder = (*Device)(nil)
)

// New returns an unbound device. The context is created by BindThread.
func New() *Device {
	return &Device{textures: make(map[device.TextureID]*texture)}
}

// BindThread creates the hidden window and makes its context current on
// the calling OS thread.
func (d *Device) BindThread() error {
	if d.window != nil {
		d.window.MakeContextCurrent()
		return nil
	}
	if err := glfw.Init(); err != nil {
		return fmt.Errorf("opengl: init glfw: %w", err)
	}
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.Visible, glfw.False)

	win, err := glfw.CreateWindow(16, 16, "texbridge", nil, nil)
	if err != nil {
		glfw.Terminate()
		return fmt.Errorf("opengl: create context window: %w", err)
	}
	win.MakeContextCurrent()
	if err := gl.Init(); err != nil {
		win.Destroy()
		glfw.Terminate()
		return fmt.Errorf("opengl: load functions: %w", err)
	}
	d.window = win
	return nil
}

// pixelFormat maps a texture format to GL internal format and client
// format. BGRA8 is stored as RGBA8 and transferred as BGRA.
func pixelFormat(f device.Format) (internal int32, format uint32, ok bool) {
	switch f {
	case device.FormatR8:
		return gl.R8, gl.RED, true
	case device.FormatBGRA8:
		return gl.RGBA8, gl.BGRA, true
	default:
		return 0, 0, false
	}
}

func target(desc device.Descriptor) uint32 {
	if desc.Dimension == device.Dimension3D {
		return gl.TEXTURE_3D
	}
	return gl.TEXTURE_2D
}

// CreateTexture allocates a zero-filled texture.
func (d *Device) CreateTexture(desc device.Descriptor) (device.TextureID, error) {
	if err := d.ready(); err != nil {
		return 0, err
	}
	if err := desc.Validate(); err != nil {
		return 0, err
	}
	internal, format, ok := pixelFormat(desc.Format)
	if !ok {
		return 0, fmt.Errorf("%w: format %s", device.ErrInvalidDescriptor, desc.Format)
	}

	var name uint32
	gl.GenTextures(1, &name)
	tgt := target(desc)
	gl.BindTexture(tgt, name)
	gl.TexParameteri(tgt, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(tgt, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(tgt, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(tgt, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)

	zero := make([]byte, desc.ByteSize())
	if tgt == gl.TEXTURE_3D {
		gl.TexParameteri(tgt, gl.TEXTURE_WRAP_R, gl.CLAMP_TO_EDGE)
		gl.TexImage3D(tgt, 0, internal, int32(desc.Width), int32(desc.Height), int32(desc.Depth), 0, format, gl.UNSIGNED_BYTE, gl.Ptr(zero))
	} else {
		gl.TexImage2D(tgt, 0, internal, int32(desc.Width), int32(desc.Height), 0, format, gl.UNSIGNED_BYTE, gl.Ptr(zero))
	}
	gl.BindTexture(tgt, 0)
	if err := glError("create texture"); err != nil {
		gl.DeleteTextures(1, &name)
		return 0, err
	}

	d.nextID++
	d.textures[d.nextID] = &texture{desc: desc, name: name}
	return d.nextID, nil
}

// WriteTexture uploads tightly packed data into region.
func (d *Device) WriteTexture(id device.TextureID, region device.Region, data []byte) error {
	t, err := d.lookup(id)
	if err != nil {
		return err
	}
	if err := device.CheckWrite(t.desc, region, data); err != nil {
		return err
	}
	_, format, _ := pixelFormat(t.desc.Format)
	tgt := target(t.desc)
	ptr := gl.Ptr(data)

	gl.BindTexture(tgt, t.name)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	if tgt == gl.TEXTURE_3D {
		gl.TexSubImage3D(tgt, 0, int32(region.X), int32(region.Y), int32(region.Z),
			int32(region.Width), int32(region.Height), int32(region.Depth), format, gl.UNSIGNED_BYTE, ptr)
	} else {
		gl.TexSubImage2D(tgt, 0, int32(region.X), int32(region.Y),
			int32(region.Width), int32(region.Height), format, gl.UNSIGNED_BYTE, ptr)
	}
	gl.BindTexture(tgt, 0)
	return glError("write texture")
}

// ReadTexture returns the texels with glGetTexImage, which waits for every
// earlier command touching the texture.
func (d *Device) ReadTexture(id device.TextureID) ([]byte, error) {
	t, err := d.lookup(id)
	if err != nil {
		return nil, err
	}
	if !t.desc.Readable {
		return nil, device.ErrNotReadable
	}
	_, format, _ := pixelFormat(t.desc.Format)
	tgt := target(t.desc)
	out := make([]byte, t.desc.ByteSize())

	gl.BindTexture(tgt, t.name)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.GetTexImage(tgt, 0, format, gl.UNSIGNED_BYTE, gl.Ptr(out))
	gl.BindTexture(tgt, 0)
	if err := glError("read texture"); err != nil {
		return nil, err
	}
	return out, nil
}

// DestroyTexture deletes the GL texture. Unknown IDs are ignored.
func (d *Device) DestroyTexture(id device.TextureID) {
	t, ok := d.textures[id]
	if !ok {
		return
	}
	delete(d.textures, id)
	gl.DeleteTextures(1, &t.name)
}

// Close deletes every texture and destroys the context.
func (d *Device) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	if d.window == nil {
		return nil
	}
	for id := range d.textures {
		d.DestroyTexture(id)
	}
	d.window.Destroy()
	d.window = nil
	glfw.Terminate()
	return nil
}

func (d *Device) ready() error {
	if d.closed {
		return device.ErrClosed
	}
	if d.window == nil {
		return ErrNotBound
	}
	return nil
}

func (d *Device) lookup(id device.TextureID) (*texture, error) {
	if err := d.ready(); err != nil {
		return nil, err
	}
	t, ok := d.textures[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", device.ErrUnknownTexture, id)
	}
	return t, nil
}

func glError(op string) error {
	if code := gl.GetError(); code != gl.NO_ERROR {
		return fmt.Errorf("opengl: %s: error 0x%04x", op, code)
	}
	return nil
}
