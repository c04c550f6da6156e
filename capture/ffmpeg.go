package capture

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/gogpu/texbridge"
)

// FFmpegOption configures an FFmpegSource.
type FFmpegOption func(*ffmpegConfig)

type ffmpegConfig struct {
	path        string
	inputFormat string
	width       int
	height      int
	fps         float64
	gray        bool
}

// WithFFmpegPath sets the ffmpeg executable. Defaults to "ffmpeg" on PATH.
func WithFFmpegPath(path string) FFmpegOption {
	return func(c *ffmpegConfig) { c.path = path }
}

// WithInputFormat forces the demuxer, e.g. "v4l2" or "avfoundation" for
// capture devices.
func WithInputFormat(format string) FFmpegOption {
	return func(c *ffmpegConfig) { c.inputFormat = format }
}

// WithOutputSize makes ffmpeg scale frames to width×height. Without it the
// stream's native size is probed.
func WithOutputSize(width, height int) FFmpegOption {
	return func(c *ffmpegConfig) { c.width, c.height = width, height }
}

// WithOutputRate resamples the stream to fps frames per second.
func WithOutputRate(fps float64) FFmpegOption {
	return func(c *ffmpegConfig) { c.fps = fps }
}

// WithGray decodes to single-channel gray instead of BGR.
func WithGray() FFmpegOption {
	return func(c *ffmpegConfig) { c.gray = true }
}

// FFmpegSource decodes a file, URL or capture device with an ffmpeg child
// process writing rawvideo to a pipe.
type FFmpegSource struct {
	*RawSource

	input  string
	stderr *tailBuffer
	errc   chan error

	closeOnce sync.Once
}

// OpenFFmpeg starts decoding input. The process runs until the stream ends
// or Close is called.
func OpenFFmpeg(input string, opts ...FFmpegOption) (*FFmpegSource, error) {
	cfg := ffmpegConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.width <= 0 || cfg.height <= 0 {
		info, err := ProbeVideo(input)
		if err != nil {
			return nil, err
		}
		cfg.width, cfg.height = info.Width, info.Height
	}

	inArgs := ffmpeg.KwArgs{}
	if cfg.inputFormat != "" {
		inArgs["f"] = cfg.inputFormat
	}
	pixFmt, channels := "bgr24", 3
	if cfg.gray {
		pixFmt, channels = "gray", 1
	}
	outArgs := ffmpeg.KwArgs{
		"format":  "rawvideo",
		"pix_fmt": pixFmt,
		"s":       fmt.Sprintf("%dx%d", cfg.width, cfg.height),
	}
	if cfg.fps > 0 {
		outArgs["r"] = strconv.FormatFloat(cfg.fps, 'f', -1, 64)
	}

	pr, pw := io.Pipe()
	raw, err := NewRawSource(pr, cfg.width, cfg.height, channels)
	if err != nil {
		return nil, err
	}

	stderr := &tailBuffer{limit: 4096}
	cmd := ffmpeg.Input(input, inArgs).
		Output("pipe:", outArgs).
		WithOutput(pw).
		WithErrorOutput(stderr)
	if cfg.path != "" {
		cmd = cmd.SetFfmpegPath(cfg.path)
	}

	s := &FFmpegSource{
		RawSource: raw,
		input:     input,
		stderr:    stderr,
		errc:      make(chan error, 1),
	}
	go func() {
		err := cmd.Run()
		// Unblocks the reader; a clean exit reads as io.EOF.
		_ = pw.CloseWithError(err)
		s.errc <- err
	}()

	texbridge.Logger().Info("capture: ffmpeg started",
		"input", input, "width", cfg.width, "height", cfg.height, "pix_fmt", pixFmt)
	return s, nil
}

// Next returns the next decoded frame, or io.EOF once ffmpeg exits
// cleanly. A failing ffmpeg process is reported with its last stderr lines.
func (s *FFmpegSource) Next(ctx context.Context) (*Frame, error) {
	f, err := s.RawSource.Next(ctx)
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, ErrClosed) || ctx.Err() != nil {
		return f, err
	}
	if tail := s.stderr.String(); tail != "" {
		return nil, fmt.Errorf("%w (ffmpeg: %s)", err, tail)
	}
	return nil, err
}

// Close stops ffmpeg and waits for it to exit.
func (s *FFmpegSource) Close() error {
	s.closeOnce.Do(func() {
		_ = s.RawSource.Close()
		// ffmpeg exits on the broken pipe, usually with a non-zero status.
		if err := <-s.errc; err != nil {
			texbridge.Logger().Debug("capture: ffmpeg exited", "input", s.input, "err", err)
		}
		texbridge.Logger().Info("capture: ffmpeg stopped", "input", s.input, "bytes", s.BytesRead())
	})
	return nil
}

// VideoInfo describes the first video stream of an input.
type VideoInfo struct {
	Width  int
	Height int
	FPS    float64
	Codec  string
}

// ProbeVideo runs ffprobe on input and returns its first video stream.
func ProbeVideo(input string) (VideoInfo, error) {
	out, err := ffmpeg.Probe(input)
	if err != nil {
		return VideoInfo{}, fmt.Errorf("capture: probe %s: %w", input, err)
	}
	return parseProbe(out)
}

type probeResult struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		CodecName    string `json:"codec_name"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
		RFrameRate   string `json:"r_frame_rate"`
	} `json:"streams"`
}

func parseProbe(out string) (VideoInfo, error) {
	var res probeResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		return VideoInfo{}, fmt.Errorf("capture: parse probe output: %w", err)
	}
	for _, st := range res.Streams {
		if st.CodecType != "video" {
			continue
		}
		if st.Width <= 0 || st.Height <= 0 {
			return VideoInfo{}, fmt.Errorf("%w: video stream %dx%d", texbridge.ErrInvalidDimensions, st.Width, st.Height)
		}
		fps := parseRate(st.AvgFrameRate)
		if fps == 0 {
			fps = parseRate(st.RFrameRate)
		}
		return VideoInfo{Width: st.Width, Height: st.Height, FPS: fps, Codec: st.CodecName}, nil
	}
	return VideoInfo{}, errors.New("capture: no video stream")
}

// parseRate parses ffprobe rationals such as "30000/1001".
func parseRate(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !ok {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.TrimSpace(string(b.buf))
}
