package record

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"time"
)

// ffmpegSink pipes raw RGBA frames into an ffmpeg process that performs the
// actual encode. It is the preferred sink whenever ffmpeg is installed.
type ffmpegSink struct {
	binary string

	mu       sync.Mutex
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	width    int
	height   int
	finished bool
	waitErr  chan error
}

// NewFFmpegSink constructs an unopened ffmpeg-backed sink. It fails when the
// ffmpeg binary cannot be found on PATH.
func NewFFmpegSink() (Sink, error) {
	binary, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, newSinkCreationError("ffmpeg binary not found on PATH")
	}
	return &ffmpegSink{binary: binary}, nil
}

func (s *ffmpegSink) Open(path string, width, height int, quality Quality) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd != nil {
		return newSinkConfigurationError("ffmpeg sink already open")
	}
	if width <= 0 || height <= 0 || width%2 != 0 || height%2 != 0 {
		return newSinkConfigurationError(fmt.Sprintf("dimensions must be positive and even, got %dx%d", width, height))
	}

	args := []string{
		"-y",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", width, height),
		"-r", strconv.Itoa(quality.FrameRate),
		"-i", "-",
		"-c:v", codecArg(quality.Codec),
		"-b:v", fmt.Sprintf("%dk", quality.BitrateKbps),
		"-g", strconv.Itoa(quality.KeyframeInterval),
		"-pix_fmt", "yuv420p",
	}
	if !quality.AllowFrameReordering {
		args = append(args, "-bf", "0")
	}
	args = append(args, path)

	cmd := exec.Command(s.binary, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return newSinkConfigurationError(fmt.Sprintf("ffmpeg stdin pipe: %v", err))
	}
	if err := cmd.Start(); err != nil {
		return newSinkConfigurationError(fmt.Sprintf("start ffmpeg: %v", err))
	}

	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()

	s.cmd = cmd
	s.stdin = stdin
	s.width = width
	s.height = height
	s.finished = false
	s.waitErr = waitErr
	return nil
}

func (s *ffmpegSink) IsReadyForMoreData() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cmd != nil && !s.finished
}

func (s *ffmpegSink) Append(img image.Image, pts time.Duration) bool {
	if img == nil || pts < 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd == nil || s.finished {
		return false
	}
	raw := rgbaBytes(img, s.width, s.height)
	if raw == nil {
		return false
	}
	if _, err := s.stdin.Write(raw); err != nil {
		return false
	}
	return true
}

func (s *ffmpegSink) MarkInputFinished() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finished {
		return
	}
	s.finished = true
	if s.stdin != nil {
		_ = s.stdin.Close()
	}
}

func (s *ffmpegSink) Finalize(ctx context.Context) error {
	s.mu.Lock()
	cmd := s.cmd
	waitErr := s.waitErr
	s.cmd = nil
	s.stdin = nil
	s.mu.Unlock()

	if cmd == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	select {
	case err := <-waitErr:
		if err != nil {
			return fmt.Errorf("ffmpeg exited with error: %w", err)
		}
		return nil
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-waitErr
		return fmt.Errorf("ffmpeg finalize: %w", ctx.Err())
	}
}

// rgbaBytes returns the frame's pixels as tightly packed RGBA rows, or nil
// when the image does not match the negotiated geometry.
func rgbaBytes(img image.Image, width, height int) []byte {
	bounds := img.Bounds()
	if bounds.Dx() != width || bounds.Dy() != height {
		return nil
	}
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != width*4 || !bounds.Min.Eq(image.Point{}) {
		converted := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.Draw(converted, converted.Bounds(), img, bounds.Min, draw.Src)
		rgba = converted
	}
	return rgba.Pix
}

func codecArg(codec string) string {
	switch codec {
	case "", "h264":
		return "libx264"
	case "h265", "hevc":
		return "libx265"
	case "vp9":
		return "libvpx-vp9"
	default:
		return codec
	}
}
