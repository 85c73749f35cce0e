package record

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testFrame(width, height int, c color.RGBA) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestMJPEGSinkWritesStream(t *testing.T) {
	sink, err := NewMJPEGSink()
	if err != nil {
		t.Fatalf("NewMJPEGSink() error = %v", err)
	}
	path := filepath.Join(t.TempDir(), "out.mjpeg")
	if err := sink.Open(path, 64, 48, testQuality(30)); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if !sink.IsReadyForMoreData() {
		t.Fatal("sink not ready after Open")
	}

	for i := 0; i < 3; i++ {
		frame := testFrame(64, 48, color.RGBA{R: uint8(80 * i), G: 60, B: 120, A: 255})
		if !sink.Append(frame, time.Duration(i)*33*time.Millisecond) {
			t.Fatalf("Append() frame %d rejected", i)
		}
	}

	sink.MarkInputFinished()
	if sink.IsReadyForMoreData() {
		t.Error("sink ready after MarkInputFinished")
	}
	if sink.Append(testFrame(64, 48, color.RGBA{A: 255}), time.Second) {
		t.Error("Append() accepted a frame after input finished")
	}
	if err := sink.Finalize(context.Background()); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	// Each frame contributes one JPEG, each starting with the SOI marker.
	if got := bytes.Count(data, []byte{0xFF, 0xD8, 0xFF}); got != 3 {
		t.Errorf("stream holds %d JPEG images, want 3", got)
	}
}

func TestMJPEGSinkRejectsBadGeometry(t *testing.T) {
	tests := []struct {
		name   string
		width  int
		height int
	}{
		{name: "odd width", width: 63, height: 48},
		{name: "odd height", width: 64, height: 47},
		{name: "zero width", width: 0, height: 48},
		{name: "negative height", width: 64, height: -2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink, err := NewMJPEGSink()
			if err != nil {
				t.Fatalf("NewMJPEGSink() error = %v", err)
			}
			path := filepath.Join(t.TempDir(), "out.mjpeg")
			if err := sink.Open(path, tt.width, tt.height, testQuality(30)); err == nil {
				t.Fatalf("Open(%dx%d) succeeded, want error", tt.width, tt.height)
			}
			if sink.IsReadyForMoreData() {
				t.Error("sink ready after failed Open")
			}
		})
	}
}

func TestMJPEGSinkDoubleOpen(t *testing.T) {
	sink, err := NewMJPEGSink()
	if err != nil {
		t.Fatalf("NewMJPEGSink() error = %v", err)
	}
	dir := t.TempDir()
	if err := sink.Open(filepath.Join(dir, "a.mjpeg"), 64, 48, testQuality(30)); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := sink.Open(filepath.Join(dir, "b.mjpeg"), 64, 48, testQuality(30)); err == nil {
		t.Fatal("second Open() succeeded, want error")
	}
	if err := sink.Finalize(context.Background()); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
}

func TestMJPEGSinkAppendBeforeOpen(t *testing.T) {
	sink, err := NewMJPEGSink()
	if err != nil {
		t.Fatalf("NewMJPEGSink() error = %v", err)
	}
	if sink.IsReadyForMoreData() {
		t.Error("unopened sink reports ready")
	}
	if sink.Append(testFrame(64, 48, color.RGBA{A: 255}), 0) {
		t.Error("Append() before Open succeeded")
	}
	if sink.Append(nil, 0) {
		t.Error("Append(nil) succeeded")
	}
	if err := sink.Finalize(context.Background()); err != nil {
		t.Errorf("Finalize() on unopened sink error = %v", err)
	}
}

func TestJPEGQualityMapping(t *testing.T) {
	tests := []struct {
		bitrateKbps int
		want        int
	}{
		{bitrateKbps: 0, want: 60},
		{bitrateKbps: 2000, want: 65},
		{bitrateKbps: 8000, want: 80},
		{bitrateKbps: 20000, want: 95},
		{bitrateKbps: 100000, want: 95},
	}
	for _, tt := range tests {
		if got := jpegQuality(tt.bitrateKbps); got != tt.want {
			t.Errorf("jpegQuality(%d) = %d, want %d", tt.bitrateKbps, got, tt.want)
		}
	}
}
