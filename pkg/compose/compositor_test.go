package compose

import (
	"errors"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/offlinefirst/dualcam/pkg/camera"
	"github.com/offlinefirst/dualcam/pkg/render"
)

func solidFrame(source camera.FrameSource, w, h int, fill color.RGBA) camera.Frame {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, fill)
		}
	}
	return camera.NewFrame(img, source, "RGBA", time.Now(), 1)
}

func newTestCompositor(t *testing.T) (*Compositor, *render.Renderer, *render.Renderer) {
	t.Helper()
	primary := render.New(camera.SourcePrimary)
	secondary := render.New(camera.SourceSecondary)
	c, err := New(primary, secondary)
	if err != nil {
		t.Fatalf("new compositor: %v", err)
	}
	return c, primary, secondary
}

func TestCaptureFullScreenWithoutFramesFails(t *testing.T) {
	c, _, _ := newTestCompositor(t)
	if _, err := c.CaptureFullScreen(); !errors.Is(err, ErrNoSurface) {
		t.Fatalf("expected ErrNoSurface, got %v", err)
	}
}

func TestCaptureFullScreenCompositesInset(t *testing.T) {
	c, primary, secondary := newTestCompositor(t)
	primary.Consume(solidFrame(camera.SourcePrimary, 300, 200, color.RGBA{R: 255, A: 255}))
	secondary.Consume(solidFrame(camera.SourceSecondary, 300, 200, color.RGBA{G: 255, A: 255}))

	img, err := c.CaptureFullScreen()
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if img.Bounds().Dx() != 300 || img.Bounds().Dy() != 200 {
		t.Fatalf("composite should match primary geometry, got %v", img.Bounds())
	}

	// Bottom-left corner is pure primary.
	r, _, _, _ := img.At(2, 196).RGBA()
	if r>>8 != 255 {
		t.Fatalf("expected primary pixel at corner, red=%d", r>>8)
	}

	// The inset occupies the top-right with the secondary feed.
	insetX := 300 - insetMargin - 10
	insetY := insetMargin + 10
	_, g, _, _ := img.At(insetX, insetY).RGBA()
	if g>>8 != 255 {
		t.Fatalf("expected secondary pixel inside inset, green=%d", g>>8)
	}
}

func TestCaptureFullScreenDegradesWithoutSecondary(t *testing.T) {
	c, primary, _ := newTestCompositor(t)
	primary.Consume(solidFrame(camera.SourcePrimary, 100, 80, color.RGBA{B: 255, A: 255}))

	img, err := c.CaptureFullScreen()
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if img.Bounds().Dx() != 100 {
		t.Fatalf("unexpected composite bounds %v", img.Bounds())
	}
}

func TestCaptureRegion(t *testing.T) {
	c, primary, secondary := newTestCompositor(t)
	primary.Consume(solidFrame(camera.SourcePrimary, 200, 100, color.RGBA{R: 255, A: 255}))
	secondary.Consume(solidFrame(camera.SourceSecondary, 200, 100, color.RGBA{G: 255, A: 255}))

	t.Run("full screen via zero rectangle", func(t *testing.T) {
		img, err := c.CaptureRegion(image.Rectangle{})
		if err != nil {
			t.Fatalf("capture: %v", err)
		}
		if img.Bounds().Dx() != 200 {
			t.Fatalf("expected full width, got %v", img.Bounds())
		}
	})

	t.Run("crop", func(t *testing.T) {
		img, err := c.CaptureRegion(image.Rect(10, 10, 60, 40))
		if err != nil {
			t.Fatalf("capture: %v", err)
		}
		if img.Bounds().Dx() != 50 || img.Bounds().Dy() != 30 {
			t.Fatalf("unexpected crop bounds %v", img.Bounds())
		}
	})

	t.Run("zero area", func(t *testing.T) {
		if _, err := c.CaptureRegion(image.Rect(5, 5, 5, 50)); !errors.Is(err, ErrZeroRegion) {
			t.Fatalf("expected ErrZeroRegion, got %v", err)
		}
	})

	t.Run("outside screen", func(t *testing.T) {
		if _, err := c.CaptureRegion(image.Rect(500, 500, 600, 600)); !errors.Is(err, ErrZeroRegion) {
			t.Fatalf("expected ErrZeroRegion, got %v", err)
		}
	})
}
