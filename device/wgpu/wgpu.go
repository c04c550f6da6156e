// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package wgpu implements device.Device on the gogpu/wgpu hardware
// abstraction layer.
//
// Open creates a standalone Vulkan device. FromProvider shares the device
// of a gogpu application (gpucontext.DeviceProvider) so sink textures live
// on the same GPU device the application renders with.
package wgpu

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Register the Vulkan backend.
	_ "github.com/gogpu/wgpu/hal/vulkan"

	"github.com/gogpu/texbridge/device"
	"github.com/gogpu/texbridge/internal/convert"
)

// copyPitchAlignment is the WebGPU row alignment for texture-to-buffer
// copies.
const copyPitchAlignment = 256

// fenceWaitStep bounds a single fence wait. Read-back waits in steps until
// the GPU signals, logging each step that times out.
const fenceWaitStep = 5 * time.Second

var (
	// ErrNoGPU is returned by Open when no usable adapter exists.
	ErrNoGPU = errors.New("wgpu: no GPU adapter available")

	// ErrNoHAL is returned by FromProvider when the provider does not expose
	// a hal.Device and hal.Queue.
	ErrNoHAL = errors.New("wgpu: provider does not expose HAL device")
)

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(slog.New(slog.DiscardHandler))
}

// SetLogger sets the logger used for device lifecycle messages. nil
// restores the silent default.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	loggerPtr.Store(l)
}

func slogger() *slog.Logger { return loggerPtr.Load() }

// Device is a device.Device backed by a hal.Device and hal.Queue. Like every
// device it is driven from the resource thread only.
type Device struct {
	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	external bool
	name     string

	textures map[device.TextureID]*texture
	nextID   device.TextureID
	closed   bool
}

type texture struct {
	desc device.Descriptor
	tex  hal.Texture
}

var _ device.Device = (*Device)(nil)

// Open creates a standalone Vulkan device on the first discrete or
// integrated GPU, falling back to the first adapter.
func Open() (*Device, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("%w: vulkan backend not registered", ErrNoGPU)
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create instance: %w", err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoGPU
	}
	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("wgpu: open device: %w", err)
	}
	d := newDevice(openDev.Device, openDev.Queue, selected.Info.Name)
	d.instance = instance
	slogger().Info("wgpu: device opened (standalone)", "adapter", selected.Info.Name)
	return d, nil
}

// FromProvider shares the GPU device of provider. The provider must expose
// HalDevice() any and HalQueue() any returning hal.Device and hal.Queue.
// Close leaves the shared device alive.
func FromProvider(provider gpucontext.DeviceProvider) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNoHAL
	}
	dev, ok := hp.HalDevice().(hal.Device)
	if !ok || dev == nil {
		return nil, fmt.Errorf("%w: HalDevice returned %T", ErrNoHAL, hp.HalDevice())
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue returned %T", ErrNoHAL, hp.HalQueue())
	}
	return Wrap(dev, queue), nil
}

// Wrap uses an existing device and queue. Close leaves them alive.
func Wrap(dev hal.Device, queue hal.Queue) *Device {
	d := newDevice(dev, queue, "shared")
	d.external = true
	return d
}

func newDevice(dev hal.Device, queue hal.Queue, name string) *Device {
	return &Device{
		device:   dev,
		queue:    queue,
		name:     name,
		textures: make(map[device.TextureID]*texture),
	}
}

func usageFor(desc device.Descriptor) gputypes.TextureUsage {
	usage := gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst
	if desc.Readable {
		usage |= gputypes.TextureUsageCopySrc
	}
	if desc.RenderTarget {
		usage |= gputypes.TextureUsageRenderAttachment
	}
	return usage
}

func dimensionFor(desc device.Descriptor) gputypes.TextureDimension {
	if desc.Dimension == device.Dimension3D {
		return gputypes.TextureDimension3D
	}
	return gputypes.TextureDimension2D
}

func depthOf(desc device.Descriptor) uint32 {
	if desc.Depth < 1 {
		return 1
	}
	return uint32(desc.Depth)
}

// CreateTexture allocates a GPU texture.
func (d *Device) CreateTexture(desc device.Descriptor) (device.TextureID, error) {
	if d.closed {
		return 0, device.ErrClosed
	}
	if err := desc.Validate(); err != nil {
		return 0, err
	}
	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         desc.Label,
		Size:          hal.Extent3D{Width: uint32(desc.Width), Height: uint32(desc.Height), DepthOrArrayLayers: depthOf(desc)},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     dimensionFor(desc),
		Format:        desc.Format.GPUFormat(),
		Usage:         usageFor(desc),
	})
	if err != nil {
		return 0, fmt.Errorf("wgpu: create texture %s: %w", desc, err)
	}
	d.nextID++
	d.textures[d.nextID] = &texture{desc: desc, tex: tex}
	slogger().Debug("wgpu: texture created", "id", uint64(d.nextID), "desc", desc.String())
	return d.nextID, nil
}

// WriteTexture uploads data into region through the queue.
func (d *Device) WriteTexture(id device.TextureID, region device.Region, data []byte) error {
	t, err := d.lookup(id)
	if err != nil {
		return err
	}
	if err := device.CheckWrite(t.desc, region, data); err != nil {
		return err
	}
	bpp := uint32(t.desc.Format.BytesPerPixel())
	d.queue.WriteTexture(
		&hal.ImageCopyTexture{
			Texture:  t.tex,
			MipLevel: 0,
			Origin:   hal.Origin3D{X: uint32(region.X), Y: uint32(region.Y), Z: uint32(region.Z)},
		},
		data,
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(region.Width) * bpp,
			RowsPerImage: uint32(region.Height),
		},
		&hal.Extent3D{Width: uint32(region.Width), Height: uint32(region.Height), DepthOrArrayLayers: uint32(max(region.Depth, 1))},
	)
	return nil
}

// ReadTexture copies the texture into a staging buffer, waits for the GPU
// and returns the tightly packed texels.
func (d *Device) ReadTexture(id device.TextureID) ([]byte, error) {
	t, err := d.lookup(id)
	if err != nil {
		return nil, err
	}
	if !t.desc.Readable {
		return nil, device.ErrNotReadable
	}

	w, h, depth := uint32(t.desc.Width), uint32(t.desc.Height), depthOf(t.desc)
	bytesPerRow := w * uint32(t.desc.Format.BytesPerPixel())
	alignedBytesPerRow := (bytesPerRow + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
	stagingSize := uint64(alignedBytesPerRow) * uint64(h) * uint64(depth)

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "texbridge_readback"})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("texbridge_readback"); err != nil {
		return nil, fmt.Errorf("wgpu: begin encoding: %w", err)
	}

	staging, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "texbridge_staging",
		Size:  stagingSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		encoder.DiscardEncoding()
		return nil, fmt.Errorf("wgpu: create staging buffer: %w", err)
	}
	defer d.device.DestroyBuffer(staging)

	// Uploads leave the texture as a copy destination.
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: t.tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopyDst,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})
	encoder.CopyTextureToBuffer(t.tex, staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: alignedBytesPerRow, RowsPerImage: h},
		TextureBase:  hal.ImageCopyTexture{Texture: t.tex, MipLevel: 0},
		Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: depth},
	}})
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: t.tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopySrc,
			NewUsage: gputypes.TextureUsageCopyDst,
		},
	}})

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("wgpu: end encoding: %w", err)
	}
	defer d.device.FreeCommandBuffer(cmdBuf)

	fence, err := d.device.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("wgpu: create fence: %w", err)
	}
	defer d.device.DestroyFence(fence)

	if err := d.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return nil, fmt.Errorf("wgpu: submit: %w", err)
	}
	if err := d.wait(fence); err != nil {
		return nil, err
	}

	readback := make([]byte, stagingSize)
	if err := d.queue.ReadBuffer(staging, 0, readback); err != nil {
		return nil, fmt.Errorf("wgpu: read staging buffer: %w", err)
	}
	if alignedBytesPerRow == bytesPerRow {
		return readback, nil
	}
	out := make([]byte, int(bytesPerRow)*int(h)*int(depth))
	convert.StripRowPadding(out, readback, int(bytesPerRow), int(alignedBytesPerRow), int(h*depth))
	return out, nil
}

// wait blocks until fence reaches 1. Read-back has no overall deadline.
func (d *Device) wait(fence hal.Fence) error {
	for step := 1; ; step++ {
		ok, err := d.device.Wait(fence, 1, fenceWaitStep)
		if err != nil {
			return fmt.Errorf("wgpu: wait for GPU: %w", err)
		}
		if ok {
			return nil
		}
		slogger().Warn("wgpu: read-back still waiting for GPU", "waited", time.Duration(step)*fenceWaitStep)
	}
}

// DestroyTexture releases the GPU texture.
func (d *Device) DestroyTexture(id device.TextureID) {
	t, ok := d.textures[id]
	if !ok {
		return
	}
	delete(d.textures, id)
	d.device.DestroyTexture(t.tex)
}

// Len returns the number of live textures.
func (d *Device) Len() int { return len(d.textures) }

// Close destroys every texture, then the device and instance unless they
// are shared.
func (d *Device) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	for id := range d.textures {
		d.DestroyTexture(id)
	}
	if !d.external {
		d.device.Destroy()
		if d.instance != nil {
			d.instance.Destroy()
		}
	}
	d.device, d.queue, d.instance = nil, nil, nil
	slogger().Info("wgpu: device closed", "name", d.name, "shared", d.external)
	return nil
}

func (d *Device) lookup(id device.TextureID) (*texture, error) {
	if d.closed {
		return nil, device.ErrClosed
	}
	t, ok := d.textures[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", device.ErrUnknownTexture, id)
	}
	return t, nil
}
