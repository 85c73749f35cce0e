package record

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"sync"
	"time"
)

// mjpegSink writes frames as a raw MJPEG stream: consecutive JPEG images in
// one file. Players and transcoders (e.g. ffmpeg) accept the format directly,
// and it needs no external binary, which makes it the portable fallback sink.
type mjpegSink struct {
	mu       sync.Mutex
	file     *os.File
	writer   *bufio.Writer
	quality  int
	finished bool
	appended uint64
}

// NewMJPEGSink constructs an unopened MJPEG sink.
func NewMJPEGSink() (Sink, error) {
	return &mjpegSink{}, nil
}

func (s *mjpegSink) Open(path string, width, height int, quality Quality) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file != nil {
		return newSinkConfigurationError("mjpeg sink already open")
	}
	if width <= 0 || height <= 0 {
		return newSinkConfigurationError(fmt.Sprintf("invalid dimensions %dx%d", width, height))
	}
	if width%2 != 0 || height%2 != 0 {
		return newSinkConfigurationError(fmt.Sprintf("dimensions must be even, got %dx%d", width, height))
	}

	file, err := os.Create(path)
	if err != nil {
		return newSinkConfigurationError(fmt.Sprintf("create %q: %v", path, err))
	}
	s.file = file
	s.writer = bufio.NewWriter(file)
	s.quality = jpegQuality(quality.BitrateKbps)
	s.finished = false
	s.appended = 0
	return nil
}

func (s *mjpegSink) IsReadyForMoreData() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file != nil && !s.finished
}

func (s *mjpegSink) Append(img image.Image, pts time.Duration) bool {
	if img == nil || pts < 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil || s.finished {
		return false
	}
	if err := jpeg.Encode(s.writer, img, &jpeg.Options{Quality: s.quality}); err != nil {
		return false
	}
	s.appended++
	return true
}

func (s *mjpegSink) MarkInputFinished() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = true
}

func (s *mjpegSink) Finalize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	if ctx != nil && ctx.Err() != nil {
		return ctx.Err()
	}

	var firstErr error
	if err := s.writer.Flush(); err != nil {
		firstErr = fmt.Errorf("flush mjpeg stream: %w", err)
	}
	if err := s.file.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close mjpeg file: %w", err)
	}
	s.file = nil
	s.writer = nil
	return firstErr
}

// jpegQuality maps the requested bitrate onto a JPEG quality setting. MJPEG
// has no rate control, so the mapping is coarse on purpose.
func jpegQuality(bitrateKbps int) int {
	q := 60 + bitrateKbps/400
	if q > 95 {
		q = 95
	}
	if q < 60 {
		q = 60
	}
	return q
}
