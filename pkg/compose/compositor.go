// Package compose renders the on-screen representation of a capture session:
// the primary preview full-frame with the secondary preview inset
// picture-in-picture. It stands in for a window-server screenshot surface.
package compose

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/offlinefirst/dualcam/pkg/render"
)

var (
	// ErrZeroRegion is returned when a requested capture region has no area.
	ErrZeroRegion = errors.New("capture region has zero area")
	// ErrNoSurface is returned when no preview frame exists to composite.
	ErrNoSurface = errors.New("no active preview surface")
)

// insetFraction sizes the picture-in-picture overlay relative to the base
// frame width.
const insetFraction = 3

// insetMargin is the pixel gap between the overlay and the frame edge.
const insetMargin = 16

// Compositor composes the two preview streams into a single screen image.
type Compositor struct {
	primary   *render.Renderer
	secondary *render.Renderer
}

// New constructs a compositor over the two renderers.
func New(primary, secondary *render.Renderer) (*Compositor, error) {
	if primary == nil || secondary == nil {
		return nil, errors.New("both renderers must be provided")
	}
	return &Compositor{primary: primary, secondary: secondary}, nil
}

// CaptureFullScreen composites the current previews into one image.
func (c *Compositor) CaptureFullScreen() (image.Image, error) {
	base, err := c.primary.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("%w: primary preview empty", ErrNoSurface)
	}

	composite := imaging.Clone(base)

	inset, err := c.secondary.Snapshot()
	if err != nil {
		// A missing secondary preview degrades to a single-feed screen
		// rather than failing the capture outright.
		return composite, nil
	}

	bounds := composite.Bounds()
	insetWidth := bounds.Dx() / insetFraction
	if insetWidth < 1 {
		insetWidth = 1
	}
	scaled := imaging.Resize(inset, insetWidth, 0, imaging.Linear)
	offset := image.Pt(
		bounds.Max.X-scaled.Bounds().Dx()-insetMargin,
		bounds.Min.Y+insetMargin,
	)
	if offset.X < bounds.Min.X {
		offset.X = bounds.Min.X
	}
	return imaging.Paste(composite, scaled, offset), nil
}

// CaptureRegion composites the previews and crops to region. A zero rectangle
// requests the full screen; any other zero-area rectangle is an error.
func (c *Compositor) CaptureRegion(region image.Rectangle) (image.Image, error) {
	full, err := c.CaptureFullScreen()
	if err != nil {
		return nil, err
	}
	if region == (image.Rectangle{}) {
		return full, nil
	}
	if region.Dx() <= 0 || region.Dy() <= 0 {
		return nil, ErrZeroRegion
	}

	clipped := region.Intersect(full.Bounds())
	if clipped.Dx() <= 0 || clipped.Dy() <= 0 {
		return nil, fmt.Errorf("%w: region %v outside screen %v", ErrZeroRegion, region, full.Bounds())
	}
	return imaging.Crop(full, clipped), nil
}
