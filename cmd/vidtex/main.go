// Command vidtex decodes a video (or loads a still image), runs smoothing
// operations on every frame and publishes the frames to a texture.
//
// Usage:
//
//	vidtex -input clip.mp4 -ops gaussian,median -resize 640x360 -snapshot last.png
//	ffmpeg -i clip.mp4 -f rawvideo -pix_fmt bgr24 - | vidtex -input - -raw 1280x720x3
//	vidtex -input photo.png -backend wgpu -sink rt -snapshot out.png
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/texbridge"
	"github.com/gogpu/texbridge/capture"
	"github.com/gogpu/texbridge/device"
	"github.com/gogpu/texbridge/device/opengl"
	"github.com/gogpu/texbridge/device/wgpu"
	"github.com/gogpu/texbridge/imageio"
	"github.com/gogpu/texbridge/imageops"
	"github.com/gogpu/texbridge/resource"
)

type config struct {
	input    string
	raw      string
	format   string
	camera   int
	backend  string
	sink     string
	resize   string
	fit      bool
	fixed    bool
	ops      string
	fps      float64
	frames   int
	snapshot string
	verbose  bool
}

func main() {
	var cfg config
	flag.StringVar(&cfg.input, "input", "", "video file, URL, device, still image, or - for raw frames on stdin")
	flag.StringVar(&cfg.raw, "raw", "", "raw stdin frame shape WxHxC (C = 1, 3 or 4)")
	flag.StringVar(&cfg.format, "format", "", "ffmpeg input format, e.g. v4l2")
	flag.IntVar(&cfg.camera, "camera", -1, "OpenCV camera index (gocv builds only)")
	flag.StringVar(&cfg.backend, "backend", "memory", "texture device: memory, wgpu or opengl")
	flag.StringVar(&cfg.sink, "sink", "tex2d", "sink kind: rt (render target) or tex2d")
	flag.StringVar(&cfg.resize, "resize", "", "resize frames to WxH before processing")
	flag.BoolVar(&cfg.fit, "fit", false, "resample frames to the texture size instead of reallocating")
	flag.BoolVar(&cfg.fixed, "fixed", false, "never reallocate the texture after the first frame")
	flag.StringVar(&cfg.ops, "ops", "", "comma-separated operations: gaussian, median, bilateral")
	flag.Float64Var(&cfg.fps, "fps", 0, "pace publishing to this rate (0 = as fast as decoded)")
	flag.IntVar(&cfg.frames, "frames", 0, "stop after this many frames (0 = whole stream)")
	flag.StringVar(&cfg.snapshot, "snapshot", "", "write the final texture to this image file (.png, .jpg, .bmp, .tif)")
	flag.BoolVar(&cfg.verbose, "v", false, "verbose logging")
	flag.Parse()

	level := slog.LevelInfo
	if cfg.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	texbridge.SetLogger(logger)
	wgpu.SetLogger(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("vidtex failed", "err", err)
		os.Exit(1)
	}
}

func run(cfg config, logger *slog.Logger) error {
	if cfg.input == "" && cfg.camera < 0 {
		return errors.New("no input: use -input or -camera")
	}
	steps, err := parseOps(cfg.ops)
	if err != nil {
		return err
	}

	dev, err := openDevice(cfg.backend)
	if err != nil {
		return err
	}
	thread := resource.NewThread(dev, resource.WithName("vidtex-"+cfg.backend))
	if err := thread.Start(); err != nil {
		return err
	}
	defer thread.Close()

	sink, err := newSink(cfg, thread)
	if err != nil {
		return err
	}
	defer sink.Close()
	coord := texbridge.NewCoordinator()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if _, err := imageio.FormatFor(cfg.input); err == nil {
		err = publishStill(cfg, coord, sink, steps)
	} else {
		err = runStream(ctx, cfg, coord, sink, steps, logger)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if err := thread.Sync(); err != nil {
		return err
	}
	if cfg.snapshot != "" {
		buf, err := sink.ReadBack()
		if err != nil {
			return err
		}
		if err := imageio.Save(cfg.snapshot, buf); err != nil {
			return err
		}
		logger.Info("snapshot written", "path", cfg.snapshot, "size", fmt.Sprintf("%dx%d", buf.Width(), buf.Height()))
	}

	printStats(coord, sink, thread)
	return nil
}

func openDevice(name string) (device.Device, error) {
	switch name {
	case "memory":
		return device.NewMemory(), nil
	case "wgpu":
		dev, err := wgpu.Open()
		if err != nil {
			return nil, err
		}
		return dev, nil
	case "opengl", "gl":
		return opengl.New(), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", name)
	}
}

func newSink(cfg config, thread *resource.Thread) (*texbridge.Sink, error) {
	opts := []texbridge.SinkOption{texbridge.WithLabel("vidtex")}
	if cfg.fixed {
		opts = append(opts, texbridge.WithFixedSize())
	}
	if cfg.fit && cfg.resize != "" {
		w, h, err := parseSize(cfg.resize)
		if err != nil {
			return nil, err
		}
		opts = append(opts, texbridge.WithAllocation(texbridge.FormatBGRA8, w, h, 1))
	}
	switch cfg.sink {
	case "rt", "render-target":
		return texbridge.NewRenderTargetSink(thread, opts...)
	case "tex2d", "texture":
		return texbridge.NewTexture2DSink(thread, opts...)
	default:
		return nil, fmt.Errorf("unknown sink %q", cfg.sink)
	}
}

func publishStill(cfg config, coord *texbridge.Coordinator, sink *texbridge.Sink, steps []imageops.Step) error {
	buf, err := imageio.Load(cfg.input)
	if err != nil {
		return err
	}
	if cfg.resize != "" && !cfg.fit {
		w, h, err := parseSize(cfg.resize)
		if err != nil {
			return err
		}
		if err := buf.Resample(w, h, texbridge.InterpBilinear); err != nil {
			return err
		}
	}
	// Operation failures are logged and leave the image as it was.
	_ = imageops.Chain(buf, steps...)
	_, err = coord.Publish(buf, sink, cfg.fit)
	return err
}

func runStream(ctx context.Context, cfg config, coord *texbridge.Coordinator, sink *texbridge.Sink, steps []imageops.Step, logger *slog.Logger) error {
	src, err := openSource(cfg)
	if err != nil {
		return err
	}
	defer src.Close()

	opts := []capture.LoopOption{
		capture.WithOps(steps...),
		capture.WithFPS(cfg.fps),
		capture.WithMaxFrames(cfg.frames),
	}
	if cfg.fit {
		opts = append(opts, capture.WithResizeToSink())
	} else if cfg.resize != "" {
		w, h, err := parseSize(cfg.resize)
		if err != nil {
			return err
		}
		opts = append(opts, capture.WithResize(w, h, texbridge.InterpBilinear))
	}
	if cfg.verbose {
		opts = append(opts, capture.WithFrameHook(func(f *capture.Frame, res *resource.Resource) {
			logger.Debug("frame", "seq", f.Seq, "trace_id", f.TraceID, "generation", res.Generation())
		}))
	}

	loop, err := capture.NewLoop(src, sink, coord, opts...)
	if err != nil {
		return err
	}
	return loop.Run(ctx)
}

func openSource(cfg config) (capture.Source, error) {
	if cfg.camera >= 0 {
		return openCamera(cfg.camera)
	}
	if cfg.input == "-" {
		if cfg.raw == "" {
			return nil, errors.New("-input - needs -raw WxHxC")
		}
		w, h, ch, err := parseShape(cfg.raw)
		if err != nil {
			return nil, err
		}
		src, err := capture.NewRawSource(os.Stdin, w, h, ch)
		if err != nil {
			return nil, err
		}
		return src, nil
	}
	var opts []capture.FFmpegOption
	if cfg.format != "" {
		opts = append(opts, capture.WithInputFormat(cfg.format))
	}
	src, err := capture.OpenFFmpeg(cfg.input, opts...)
	if err != nil {
		return nil, err
	}
	return src, nil
}

func parseOps(s string) ([]imageops.Step, error) {
	var steps []imageops.Step
	for _, name := range strings.Split(s, ",") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		op, err := imageops.ParseOp(name)
		if err != nil {
			return nil, err
		}
		steps = append(steps, imageops.Step{Op: op, Params: imageops.DefaultParams(op)})
	}
	return steps, nil
}

func parseSize(s string) (w, h int, err error) {
	parts := strings.Split(strings.ToLower(s), "x")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("size %q: want WxH", s)
	}
	return parseDims(parts[0], parts[1])
}

func parseShape(s string) (w, h, ch int, err error) {
	parts := strings.Split(strings.ToLower(s), "x")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("shape %q: want WxHxC", s)
	}
	if w, h, err = parseDims(parts[0], parts[1]); err != nil {
		return 0, 0, 0, err
	}
	if ch, err = strconv.Atoi(parts[2]); err != nil {
		return 0, 0, 0, fmt.Errorf("shape %q: %w", s, err)
	}
	return w, h, ch, nil
}

func parseDims(ws, hs string) (w, h int, err error) {
	if w, err = strconv.Atoi(ws); err != nil {
		return 0, 0, err
	}
	if h, err = strconv.Atoi(hs); err != nil {
		return 0, 0, err
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("%w: %dx%d", texbridge.ErrInvalidDimensions, w, h)
	}
	return w, h, nil
}

func printStats(coord *texbridge.Coordinator, sink *texbridge.Sink, thread *resource.Thread) {
	p := message.NewPrinter(language.English)
	cs, ss, ts := coord.Stats(), sink.Stats(), thread.Stats()
	p.Fprintf(os.Stderr, "published %d frames (%d failed)\n", cs.Published, cs.Failed)
	p.Fprintf(os.Stderr, "texture: %d allocations, %d uploads, generation %d\n", ss.AllocationRequests, ss.Updates, ss.Generation)
	p.Fprintf(os.Stderr, "resource thread: %d applied, %d stale dropped, %d failed\n", ts.Applied, ts.Dropped, ts.Failed)
	p.Fprintf(os.Stderr, "region pool: %d hits, %d misses\n", cs.PoolHits, cs.PoolMisses)
	if desc, ok := sink.Resident(); ok {
		p.Fprintf(os.Stderr, "resident: %s\n", desc)
	}
}
