package record

import (
	"context"
	"image"
	"time"
)

// Sink is the external encoder/container collaborator. A sink is opened once,
// fed timestamped frames while ready, and finalized exactly once.
type Sink interface {
	// Open prepares the container at path for frames of the given even
	// dimensions and quality profile.
	Open(path string, width, height int, quality Quality) error
	// IsReadyForMoreData reports whether the sink can accept a frame now.
	IsReadyForMoreData() bool
	// Append writes one frame with its presentation timestamp relative to
	// the start of the recording. A false return means the frame was
	// rejected and should be accounted as dropped.
	Append(img image.Image, pts time.Duration) bool
	// MarkInputFinished signals end-of-stream.
	MarkInputFinished()
	// Finalize flushes and closes the container.
	Finalize(ctx context.Context) error
}

// SinkFactory constructs an unopened sink. The pipeline opens it after
// resolving output path and dimensions, so a factory failure must not leave
// anything on disk.
type SinkFactory func() (Sink, error)
