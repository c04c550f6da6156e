package texbridge

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/gogpu/texbridge/device"
	"github.com/gogpu/texbridge/resource"
)

// captureLogs installs a debug-level text logger for the duration of the
// test and returns its output buffer.
func captureLogs(t *testing.T) *syncBuffer {
	t.Helper()
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })
	buf := &syncBuffer{}
	SetLogger(slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	return buf
}

// syncBuffer is written from the resource thread and read by the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestLoggerSilentByDefault(t *testing.T) {
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		if Logger().Enabled(context.Background(), level) {
			t.Errorf("default logger enabled at %v", level)
		}
	}
}

func TestSetLoggerNilSilences(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	SetLogger(slog.Default())
	SetLogger(nil)
	if Logger() == nil {
		t.Fatal("SetLogger(nil) left a nil logger")
	}
	if Logger().Enabled(context.Background(), slog.LevelError) {
		t.Error("SetLogger(nil) did not silence logging")
	}
}

func TestLogEvents(t *testing.T) {
	tests := []struct {
		name string
		run  func(t *testing.T)
		want []string
	}{
		{
			name: "thread lifecycle",
			run: func(t *testing.T) {
				th := resource.NewThread(device.NewMemory(), resource.WithName("log-lifecycle"))
				if err := th.Start(); err != nil {
					t.Fatal(err)
				}
				_ = th.Close()
			},
			want: []string{"resource thread started", "name=log-lifecycle", "resource thread stopped"},
		},
		{
			name: "allocation and failed publish",
			run: func(t *testing.T) {
				th, _ := newTestThread(t)
				sink, _ := NewTexture2DSink(th, WithLabel("log-sink"))
				coord := NewCoordinator()
				if _, err := coord.Publish(MustNew(2, 2, ChannelU8, 1), sink, false); err != nil {
					t.Fatal(err)
				}
				_, _ = coord.Publish(MustNew(2, 2, ChannelU16, 1), sink, false)
				_ = th.Sync()
			},
			want: []string{"sink allocation requested", "sink=log-sink", "texture allocated", "publish failed", "unsupported format"},
		},
		{
			name: "device failure",
			run: func(t *testing.T) {
				th, mem := newTestThread(t)
				mem.FailCreate(errors.New("device lost"))
				sink, _ := NewTexture2DSink(th, WithLabel("log-lost"))
				_, _ = NewCoordinator().Publish(MustNew(2, 2, ChannelU8, 3), sink, false)
				_ = th.Sync()
			},
			want: []string{"level=WARN", "request failed", "op=allocate", "label=log-lost", "device lost"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := captureLogs(t)
			tt.run(t)
			for _, w := range tt.want {
				if !strings.Contains(out.String(), w) {
					t.Errorf("log output missing %q:\n%s", w, out.String())
				}
			}
		})
	}
}

func TestSetLoggerDuringPublish(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	th, _ := newTestThread(t)
	sink, _ := NewTexture2DSink(th)
	coord := NewCoordinator()

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = coord.Publish(MustNew(4, 4+i%2, ChannelU8, 1), sink, false)
		}()
		go func() {
			defer wg.Done()
			SetLogger(slog.New(slog.NewTextHandler(&syncBuffer{}, nil)))
			SetLogger(nil)
		}()
	}
	wg.Wait()
	if err := th.Sync(); err != nil {
		t.Fatal(err)
	}
}

func BenchmarkLoggerDisabled(b *testing.B) {
	l := Logger()
	b.ReportAllocs()
	for b.Loop() {
		l.Debug("stale upload dropped", "gen", 1)
	}
}
