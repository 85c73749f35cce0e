package record

import (
	"errors"
	"fmt"
	"image"
	"time"
)

// ModeKind discriminates the recording source.
type ModeKind int

const (
	// ModeScreenComposite records the composed on-screen preview.
	ModeScreenComposite ModeKind = iota
	// ModeRawDualStream would record both feeds directly. Accepted as input
	// but unimplemented; Start rejects it before acquiring any resource.
	ModeRawDualStream
)

func (k ModeKind) String() string {
	switch k {
	case ModeScreenComposite:
		return "screen_composite"
	case ModeRawDualStream:
		return "raw_dual_stream"
	default:
		return "unknown"
	}
}

// Mode selects what gets recorded.
type Mode struct {
	Kind ModeKind
	// Region restricts a screen-composite recording; the zero rectangle
	// means full screen.
	Region image.Rectangle
	// Combine asks a raw dual-stream recording to mux both feeds into one
	// container.
	Combine bool
}

// ScreenComposite builds a screen-composite mode for the given region.
func ScreenComposite(region image.Rectangle) Mode {
	return Mode{Kind: ModeScreenComposite, Region: region}
}

// RawDualStream builds the (unimplemented) raw dual-stream mode.
func RawDualStream(combine bool) Mode {
	return Mode{Kind: ModeRawDualStream, Combine: combine}
}

// Quality is the encode profile for one recording.
type Quality struct {
	BitrateKbps          int
	FrameRate            int
	Codec                string
	KeyframeInterval     int
	AllowFrameReordering bool
}

// TargetFrameDuration converts the frame rate into a per-frame duration.
func (q Quality) TargetFrameDuration() time.Duration {
	return time.Second / time.Duration(q.FrameRate)
}

func (q Quality) validate() error {
	if q.FrameRate <= 0 {
		return errors.New("quality frame rate must be positive")
	}
	if q.BitrateKbps <= 0 {
		return errors.New("quality bitrate must be positive")
	}
	if q.KeyframeInterval <= 0 {
		return errors.New("quality keyframe interval must be positive")
	}
	return nil
}

// Config describes one recording request.
type Config struct {
	Mode    Mode
	Quality Quality
	// OutputPath overrides the generated output location when non-empty.
	OutputPath string
}

func (c Config) validate() error {
	if err := c.Quality.validate(); err != nil {
		return fmt.Errorf("quality: %w", err)
	}
	return nil
}
