package camera

import "context"

// SourceConfig describes the feed a producer should deliver.
type SourceConfig struct {
	Source    FrameSource
	Width     int
	Height    int
	FrameRate int
}

// FrameProducer is the hardware collaborator for one feed. Implementations
// deliver frames asynchronously on their own goroutine once started; the
// deliver callback must therefore tolerate being invoked from an arbitrary
// goroutine and must not block for long.
type FrameProducer interface {
	// RequestPermission negotiates platform access for the feed. A false
	// result without an error means the user denied the prompt.
	RequestPermission(ctx context.Context) (bool, error)
	// Configure prepares the hardware for the requested feed geometry.
	Configure(cfg SourceConfig) error
	// Start begins asynchronous frame delivery.
	Start(deliver func(Frame)) error
	// Stop halts delivery and releases hardware resources.
	Stop() error
}
