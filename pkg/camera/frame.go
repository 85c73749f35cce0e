package camera

import (
	"image"
	"time"
)

// FrameSource identifies one of the two concurrent hardware feeds.
type FrameSource int

const (
	// SourcePrimary is the main feed (e.g. the rear camera).
	SourcePrimary FrameSource = iota
	// SourceSecondary is the companion feed (e.g. the front camera).
	SourceSecondary
)

// Sources lists both feeds in a stable order.
var Sources = [2]FrameSource{SourcePrimary, SourceSecondary}

func (s FrameSource) String() string {
	switch s {
	case SourcePrimary:
		return "primary"
	case SourceSecondary:
		return "secondary"
	default:
		return "unknown"
	}
}

// Frame is one decoded video frame. The pixel data is shared read-only across
// consumers; a consumer that needs to hold pixels past the lifetime of its
// subscription must clone the image, since producer buffer pools may recycle
// the backing storage.
type Frame struct {
	Image       image.Image
	Width       int
	Height      int
	Stride      int
	PixelFormat string
	Source      FrameSource
	Timestamp   time.Time
	Sequence    uint64
}

// NewFrame wraps img with capture metadata, deriving dimensions and stride
// from the image bounds.
func NewFrame(img image.Image, source FrameSource, format string, ts time.Time, seq uint64) Frame {
	f := Frame{
		Image:       img,
		PixelFormat: format,
		Source:      source,
		Timestamp:   ts,
		Sequence:    seq,
	}
	if img != nil {
		bounds := img.Bounds()
		f.Width = bounds.Dx()
		f.Height = bounds.Dy()
		f.Stride = f.Width * 4
		if rgba, ok := img.(*image.RGBA); ok {
			f.Stride = rgba.Stride
		}
	}
	return f
}
