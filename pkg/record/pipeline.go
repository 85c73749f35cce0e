package record

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

// FrameGrabber is the narrow capability the pipeline uses to acquire frames.
// It is injected at construction so the pipeline never inspects the concrete
// capturer behind it.
type FrameGrabber interface {
	GrabFrame(ctx context.Context, region image.Rectangle) (image.Image, error)
}

// State tracks the pipeline lifecycle.
type State int

const (
	StateInactive State = iota
	StateActive
	StateFinalizing
)

func (s State) String() string {
	switch s {
	case StateInactive:
		return "inactive"
	case StateActive:
		return "active"
	case StateFinalizing:
		return "finalizing"
	default:
		return "unknown"
	}
}

// Stats snapshots the frame accounting of the current or last recording.
type Stats struct {
	Frames  uint64
	Dropped uint64
}

// Options configure a recording pipeline.
type Options struct {
	Grabber FrameGrabber
	NewSink SinkFactory
	// OutputDir receives generated recordings when a config supplies no
	// explicit output path.
	OutputDir string
	// Extension names generated output files (without dot).
	Extension string
	// TickInterval is the cadence of the periodic capture signal, typically
	// the display refresh interval. Appends are throttled to the quality
	// profile's frame rate regardless.
	TickInterval time.Duration
	// FinalizeTimeout bounds both the drain wait and sink finalization.
	FinalizeTimeout time.Duration
	// MaxLongEdge clamps encode dimensions.
	MaxLongEdge int
	Clock       clock.Clock
	Logger      *slog.Logger
}

// Pipeline drives a frame-paced encode loop against a sink. One pipeline
// records at most one output at a time; Start and Stop must pair.
type Pipeline struct {
	opts   Options
	clk    clock.Clock
	logger *slog.Logger

	mu         sync.Mutex
	state      State
	sink       Sink
	quality    Quality
	region     image.Rectangle
	outputPath string
	width      int
	height     int
	startedAt  time.Time
	cancel     context.CancelFunc
	loopDone   chan struct{}

	// Pacing state, owned by the serialized tick path while Active.
	prev    time.Time
	slack   time.Duration
	frames  uint64
	dropped uint64
}

// NewPipeline validates options and constructs an inactive pipeline.
func NewPipeline(opts Options) (*Pipeline, error) {
	if opts.Grabber == nil {
		return nil, errors.New("frame grabber must be provided")
	}
	if opts.NewSink == nil {
		return nil, errors.New("sink factory must be provided")
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}
	if opts.Extension == "" {
		opts.Extension = "mjpeg"
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second / 60
	}
	if opts.FinalizeTimeout <= 0 {
		opts.FinalizeTimeout = time.Second
	}
	if opts.MaxLongEdge <= 0 {
		opts.MaxLongEdge = 1280
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{opts: opts, clk: clk, logger: logger, state: StateInactive}, nil
}

// State reports the current lifecycle state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Stats snapshots the frame counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Frames:  atomic.LoadUint64(&p.frames),
		Dropped: atomic.LoadUint64(&p.dropped),
	}
}

// Start opens the sink and begins the periodic capture loop. It fails without
// side effects when a recording is active, when the mode is unimplemented, or
// when any sub-step fails; partially-acquired resources are released before
// the error returns.
func (p *Pipeline) Start(ctx context.Context, cfg Config) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateInactive {
		return ErrRecordingInProgress
	}
	if cfg.Mode.Kind == ModeRawDualStream {
		return ErrNotImplemented
	}
	if err := cfg.validate(); err != nil {
		return err
	}

	outputPath := cfg.OutputPath
	if outputPath == "" {
		if err := os.MkdirAll(p.opts.OutputDir, 0o755); err != nil {
			return fmt.Errorf("ensure output directory: %w", err)
		}
		outputPath = filepath.Join(p.opts.OutputDir, fmt.Sprintf("rec_%s.%s", uuid.NewString(), p.opts.Extension))
	}

	probe, err := p.opts.Grabber.GrabFrame(ctx, cfg.Mode.Region)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnknownDimensions, err)
	}
	bounds := probe.Bounds()
	width, height := clampDimensions(bounds.Dx(), bounds.Dy(), p.opts.MaxLongEdge)
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: probe frame is %dx%d", ErrUnknownDimensions, bounds.Dx(), bounds.Dy())
	}

	sink, err := p.opts.NewSink()
	if err != nil {
		if errors.Is(err, ErrSinkCreation) {
			return err
		}
		return newSinkCreationError(err.Error())
	}
	if err := sink.Open(outputPath, width, height, cfg.Quality); err != nil {
		if errors.Is(err, ErrSinkConfiguration) {
			return err
		}
		return newSinkConfigurationError(err.Error())
	}

	now := p.clk.Now()
	p.sink = sink
	p.quality = cfg.Quality
	p.region = cfg.Mode.Region
	p.outputPath = outputPath
	p.width = width
	p.height = height
	p.startedAt = now
	p.prev = now
	p.slack = 0
	atomic.StoreUint64(&p.frames, 0)
	atomic.StoreUint64(&p.dropped, 0)

	loopCtx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.loopDone = make(chan struct{})
	p.state = StateActive
	go p.loop(loopCtx, p.loopDone)

	p.logger.Info("recording started",
		"output", outputPath, "width", width, "height", height,
		"frame_rate", cfg.Quality.FrameRate, "bitrate_kbps", cfg.Quality.BitrateKbps)
	return nil
}

// Stop halts the capture loop, drains and finalizes the sink, and returns the
// output path. Whatever happens, the pipeline is Inactive afterwards.
func (p *Pipeline) Stop() (string, error) {
	p.mu.Lock()
	if p.state != StateActive {
		p.mu.Unlock()
		return "", ErrNoRecordingInProgress
	}
	p.state = StateFinalizing
	cancel, loopDone, sink, outputPath := p.cancel, p.loopDone, p.sink, p.outputPath
	p.mu.Unlock()

	cancel()
	<-loopDone

	// Give the sink a bounded window to accept in-flight data before the
	// input is forcibly marked finished.
	deadline := p.clk.Now().Add(p.opts.FinalizeTimeout)
	for !sink.IsReadyForMoreData() && p.clk.Now().Before(deadline) {
		p.clk.Sleep(20 * time.Millisecond)
	}
	sink.MarkInputFinished()

	finalizeCtx, cancelFinalize := context.WithTimeout(context.Background(), p.opts.FinalizeTimeout)
	finalizeErr := sink.Finalize(finalizeCtx)
	cancelFinalize()

	stats := p.Stats()

	p.mu.Lock()
	p.sink = nil
	p.outputPath = ""
	p.cancel = nil
	p.loopDone = nil
	p.state = StateInactive
	p.mu.Unlock()

	if finalizeErr != nil {
		return "", fmt.Errorf("finalize recording: %w", finalizeErr)
	}
	p.logger.Info("recording stopped", "output", outputPath,
		"frames", stats.Frames, "dropped", stats.Dropped)
	return outputPath, nil
}

func (p *Pipeline) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	ticker := p.clk.Ticker(p.opts.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			p.tick(ctx, now)
		}
	}
}

// tick runs one pacing decision. Ticks are serialized: only the loop
// goroutine (or a test driving the pipeline directly) invokes it.
func (p *Pipeline) tick(ctx context.Context, now time.Time) {
	if !p.sink.IsReadyForMoreData() {
		return
	}

	target := p.quality.TargetFrameDuration()
	pending := p.slack + now.Sub(p.prev)

	switch {
	case pending < target:
		// Too early for the next frame.
		return
	case pending > 2*target:
		// Fell behind: account the missed slots and restart the cadence
		// from this tick. Missed frames are never replayed.
		whole := int64((pending - 1) / target)
		if whole > 1 {
			atomic.AddUint64(&p.dropped, uint64(whole-1))
		}
		p.slack = 0
	default:
		p.slack = pending - target
	}

	img, err := p.opts.Grabber.GrabFrame(ctx, p.region)
	if err != nil {
		atomic.AddUint64(&p.dropped, 1)
		return
	}
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		atomic.AddUint64(&p.dropped, 1)
		return
	}
	if bounds.Dx() != p.width || bounds.Dy() != p.height {
		img = imaging.Resize(img, p.width, p.height, imaging.Linear)
	}

	pts := now.Sub(p.startedAt)
	if pts < 0 {
		pts = 0
	}
	if !p.sink.Append(img, pts) {
		atomic.AddUint64(&p.dropped, 1)
		return
	}
	atomic.AddUint64(&p.frames, 1)
	p.prev = now
}
