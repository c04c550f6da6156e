// Package texbridge moves pixel data between CPU buffers and GPU textures.
//
// # Overview
//
// A producer (camera, video file, image operation chain) fills a
// [PixelBuffer]. A [Coordinator] publishes the buffer to a texture sink:
// it negotiates the texture format, converts the layout, resolves size
// differences and hands the converted bytes to the resource thread that
// owns the GPU device. Publishing never waits for the GPU.
//
// # Quick Start
//
//	dev := device.NewMemory() // or wgpu.Open(), opengl.New()
//	thread := resource.NewThread(dev)
//	if err := thread.Start(); err != nil {
//	    return err
//	}
//	defer thread.Close()
//
//	sink, _ := texbridge.NewRenderTargetSink(thread)
//	coord := texbridge.NewCoordinator()
//
//	buf, _ := texbridge.NewPixelBuffer(480, 640, texbridge.ChannelU8, 3)
//	handle, err := coord.Publish(buf, sink, false)
//
// # Formats
//
// Only 8-bit unsigned buffers can be uploaded:
//
//	u8 × 1 -> R8 (BGRA8 gray on render targets)
//	u8 × 3 -> BGRA8, alpha 255 appended
//	u8 × 4 -> BGRA8
//
// Volume sinks take 3-D single-channel 8-bit buffers into R8 3-D textures.
//
// # Concurrency
//
// Sinks and coordinators are safe for concurrent use. All device calls run
// on one goroutine locked to an OS thread (package resource), in the order
// they were submitted. Uploads computed for a texture that was reallocated
// in the meantime are dropped. [Sink.ReadBack] blocks until every earlier
// upload has landed.
package texbridge

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0
)
