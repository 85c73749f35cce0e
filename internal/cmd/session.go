package cmd

import (
	"fmt"
	"image"
	"log/slog"
	"strconv"
	"strings"

	"github.com/offlinefirst/dualcam/pkg/camera"
	"github.com/offlinefirst/dualcam/pkg/config"
)

// buildSession constructs the dual-feed session for the configured backend.
func buildSession(cfg config.Config, logger *slog.Logger) (*camera.Session, error) {
	var primary, secondary camera.FrameProducer
	switch cfg.Session.Backend {
	case "synthetic":
		primary = camera.NewSyntheticProducer(camera.SyntheticOptions{})
		secondary = camera.NewSyntheticProducer(camera.SyntheticOptions{})
	case "camera":
		primary = camera.NewCameraProducer(camera.CameraOptions{})
		secondary = camera.NewCameraProducer(camera.CameraOptions{})
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Session.Backend)
	}

	return camera.NewSession(camera.SessionOptions{
		Primary:   primary,
		Secondary: secondary,
		Width:     cfg.Session.Width,
		Height:    cfg.Session.Height,
		FrameRate: cfg.Session.FrameRate,
		Logger:    logger,
	})
}

// parseRegion reads a "x0,y0,x1,y1" rectangle. The empty string yields the
// zero rectangle, meaning full screen.
func parseRegion(value string) (image.Rectangle, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return image.Rectangle{}, nil
	}

	parts := strings.Split(trimmed, ",")
	if len(parts) != 4 {
		return image.Rectangle{}, fmt.Errorf("region must be x0,y0,x1,y1, got %q", value)
	}
	coords := make([]int, 4)
	for i, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return image.Rectangle{}, fmt.Errorf("region coordinate %q: %w", part, err)
		}
		coords[i] = n
	}
	rect := image.Rect(coords[0], coords[1], coords[2], coords[3])
	if rect.Dx() <= 0 || rect.Dy() <= 0 {
		return image.Rectangle{}, fmt.Errorf("region %q has no area", value)
	}
	return rect, nil
}
