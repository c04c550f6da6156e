package texbridge

import (
	"errors"
	"testing"

	"github.com/gogpu/texbridge/device"
	"github.com/gogpu/texbridge/resource"
)

func newTestThread(t *testing.T) (*resource.Thread, *device.Memory) {
	t.Helper()
	mem := device.NewMemory()
	th := resource.NewThread(mem, resource.WithName(t.Name()))
	if err := th.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = th.Close() })
	return th, mem
}

func TestSinkEnsureAllocatedIdempotent(t *testing.T) {
	th, mem := newTestThread(t)
	s, err := NewTexture2DSink(th)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.EnsureAllocated(FormatR8, 32, 16, 1); err != nil {
		t.Fatalf("first EnsureAllocated: %v", err)
	}
	desc1, _ := s.Descriptor()
	enq := th.Stats().Enqueued

	if err := s.EnsureAllocated(FormatR8, 32, 16, 1); err != nil {
		t.Fatalf("second EnsureAllocated: %v", err)
	}
	desc2, _ := s.Descriptor()

	if desc1 != desc2 {
		t.Errorf("descriptor changed: %s -> %s", desc1, desc2)
	}
	if got := th.Stats().Enqueued; got != enq {
		t.Errorf("second EnsureAllocated enqueued %d messages", got-enq)
	}
	if err := th.Sync(); err != nil {
		t.Fatal(err)
	}
	if got := mem.Stats().Creates; got != 1 {
		t.Errorf("device creates = %d, want 1", got)
	}
	if s.Stats().AllocationRequests != 1 {
		t.Errorf("AllocationRequests = %d", s.Stats().AllocationRequests)
	}
}

func TestSinkStateMachine(t *testing.T) {
	th, mem := newTestThread(t)
	s, _ := NewTexture2DSink(th, WithLabel("preview"))

	if _, ok := s.Descriptor(); ok {
		t.Fatal("new sink reports a descriptor")
	}
	if _, err := s.ReadBack(); !errors.Is(err, ErrReadbackUnavailable) {
		t.Errorf("ReadBack on unallocated sink = %v", err)
	}

	_ = s.EnsureAllocated(FormatBGRA8, 4, 4, 1)
	_ = s.EnsureAllocated(FormatBGRA8, 8, 4, 1)
	_ = th.Sync()

	res, ok := s.Resident()
	if !ok || res.Width != 8 {
		t.Errorf("Resident() = %s, %v", res, ok)
	}
	if s.Stats().Generation != 2 {
		t.Errorf("Generation = %d, want 2", s.Stats().Generation)
	}
	if st := mem.Stats(); st.Creates != 2 || st.Live != 1 {
		t.Errorf("device stats = %+v", st)
	}

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	_ = th.Sync()
	if mem.Stats().Live != 0 {
		t.Error("Close did not release the texture")
	}
	if err := s.EnsureAllocated(FormatBGRA8, 8, 4, 1); !errors.Is(err, ErrSinkClosed) {
		t.Errorf("EnsureAllocated after Close = %v", err)
	}
}

func TestSinkDescriptorsByKind(t *testing.T) {
	th, _ := newTestThread(t)

	rt, _ := NewRenderTargetSink(th)
	_ = rt.EnsureAllocated(FormatR8, 4, 4, 1)
	d, _ := rt.Descriptor()
	if d.Format != FormatBGRA8 || !d.RenderTarget {
		t.Errorf("render target descriptor = %+v", d)
	}

	vol, _ := NewVolumeSink(th)
	_ = vol.EnsureAllocated(FormatR8, 4, 4, 8)
	d, _ = vol.Descriptor()
	if d.Dimension != device.Dimension3D || d.Depth != 8 || d.Format != FormatR8 {
		t.Errorf("volume descriptor = %+v", d)
	}
}

func TestSinkAccept(t *testing.T) {
	th, _ := newTestThread(t)
	vol, _ := NewVolumeSink(th)
	tex, _ := NewTexture2DSink(th)

	v8, _ := NewVolumeBuffer(2, 2, 2, ChannelU8, 1)
	v16, _ := NewVolumeBuffer(2, 2, 2, ChannelU16, 1)
	v2ch, _ := FromBytes([]int{2, 2, 2}, ChannelU8, 2, make([]byte, 16))
	flat := MustNew(2, 2, ChannelU8, 1)

	tests := []struct {
		name string
		sink *Sink
		buf  *PixelBuffer
		want error
	}{
		{"volume accepts u8 gray volume", vol, v8, nil},
		{"volume rejects u16", vol, v16, ErrVolumeFormatMismatch},
		{"volume rejects two channels", vol, v2ch, ErrVolumeFormatMismatch},
		{"volume rejects 2D", vol, flat, ErrVolumeFormatMismatch},
		{"texture accepts 2D", tex, flat, nil},
		{"texture rejects 3D", tex, v8, ErrUnsupportedFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sink.Accept(tt.buf)
			if tt.want == nil && err != nil {
				t.Errorf("Accept = %v, want nil", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("Accept = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSinkFixedSize(t *testing.T) {
	th, _ := newTestThread(t)
	s, err := NewTexture2DSink(th, WithFixedSize(), WithAllocation(FormatBGRA8, 16, 16, 1))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.EnsureAllocated(FormatBGRA8, 8, 8, 1); !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("resize fixed sink = %v, want ErrSizeMismatch", err)
	}
	if err := s.EnsureAllocated(FormatR8, 16, 16, 1); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("reformat fixed sink = %v, want ErrUnsupportedFormat", err)
	}
	if d, _ := s.Descriptor(); d.Width != 16 || d.Height != 16 {
		t.Errorf("descriptor changed to %s", d)
	}
}

func TestSinkSubmitValidation(t *testing.T) {
	th, _ := newTestThread(t)
	s, _ := NewTexture2DSink(th)

	released := 0
	release := func([]byte) { released++ }

	err := s.SubmitRegionUpdate(RegionUpdate{Region: device.Region{Width: 1, Height: 1, Depth: 1}, Data: []byte{1}, Release: release})
	if !errors.Is(err, ErrNotAllocated) {
		t.Errorf("submit before allocation = %v", err)
	}

	_ = s.EnsureAllocated(FormatR8, 2, 2, 1)
	err = s.SubmitRegionUpdate(RegionUpdate{Region: device.Region{Width: 3, Height: 2, Depth: 1}, Data: make([]byte, 6), Release: release})
	if !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("oversized region = %v", err)
	}
	if released != 2 {
		t.Errorf("rejected updates released %d times, want 2", released)
	}
}

func TestSinkReadBackDisabled(t *testing.T) {
	th, _ := newTestThread(t)
	s, _ := NewTexture2DSink(th, WithoutReadback(), WithAllocation(FormatR8, 2, 2, 1))
	if _, err := s.ReadBack(); !errors.Is(err, ErrReadbackUnavailable) {
		t.Errorf("ReadBack = %v, want ErrReadbackUnavailable", err)
	}
}

func TestSinkInvalidAllocation(t *testing.T) {
	th, _ := newTestThread(t)
	if _, err := NewTexture2DSink(th, WithAllocation(FormatBGRA8, 0, 16, 1)); !errors.Is(err, ErrInvalidDimensions) {
		t.Errorf("zero-width allocation = %v", err)
	}
	if _, err := NewSink(KindTexture2D, nil); err == nil {
		t.Error("NewSink(nil thread) succeeded")
	}
}
