package camera

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/offlinefirst/dualcam/pkg/broadcast"
)

// SessionState tracks a session's lifecycle.
type SessionState int

const (
	StateCreated SessionState = iota
	StateStarting
	StateRunning
	StateStopping
	StateStopped
)

func (s SessionState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// SessionOptions configure a capture session.
type SessionOptions struct {
	// Primary and Secondary produce the two hardware feeds. Both are
	// required; a missing producer means the dual-stream capability is
	// unavailable on this device.
	Primary   FrameProducer
	Secondary FrameProducer
	// Guard enforces the single-active-session invariant. Defaults to
	// DefaultGuard.
	Guard *ActiveGuard
	// Geometry applied to both feeds.
	Width     int
	Height    int
	FrameRate int
	Logger    *slog.Logger
}

// Session owns exclusive access to the two hardware feeds and publishes each
// as an independent frame stream.
type Session struct {
	opts   SessionOptions
	guard  *ActiveGuard
	logger *slog.Logger

	mu        sync.Mutex
	state     SessionState
	producers map[FrameSource]FrameProducer
	seq       map[FrameSource]*uint64

	broadcasters map[FrameSource]*broadcast.Broadcaster[Frame]
}

// NewSession validates options and constructs a session in the Created state.
func NewSession(opts SessionOptions) (*Session, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("session geometry must be positive, got %dx%d", opts.Width, opts.Height)
	}
	if opts.FrameRate <= 0 {
		return nil, fmt.Errorf("session frame rate must be positive, got %d", opts.FrameRate)
	}
	guard := opts.Guard
	if guard == nil {
		guard = DefaultGuard
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Session{
		opts:         opts,
		guard:        guard,
		logger:       logger,
		state:        StateCreated,
		producers:    make(map[FrameSource]FrameProducer, 2),
		seq:          make(map[FrameSource]*uint64, 2),
		broadcasters: make(map[FrameSource]*broadcast.Broadcaster[Frame], 2),
	}
	s.producers[SourcePrimary] = opts.Primary
	s.producers[SourceSecondary] = opts.Secondary
	for _, source := range Sources {
		s.broadcasters[source] = broadcast.New[Frame]()
		s.seq[source] = new(uint64)
	}
	return s, nil
}

// Broadcaster exposes the frame stream for one source. Subscriptions made
// before Start simply receive nothing until the session runs.
func (s *Session) Broadcaster(source FrameSource) *broadcast.Broadcaster[Frame] {
	return s.broadcasters[source]
}

// State reports the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start claims the process-wide active slot, negotiates permission, and
// configures and starts both feeds. Calling Start on a Running session is a
// no-op success. On any failure every partially-acquired resource is released
// before the error is returned.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRunning {
		return nil
	}
	if s.state == StateStarting || s.state == StateStopping {
		return ErrInterrupted
	}

	if s.producers[SourcePrimary] == nil || s.producers[SourceSecondary] == nil {
		return ErrUnsupportedHardware
	}

	if err := s.guard.Acquire(s); err != nil {
		return err
	}
	s.state = StateStarting

	fail := func(err error, started []FrameSource) error {
		for _, source := range started {
			if stopErr := s.producers[source].Stop(); stopErr != nil {
				s.logger.Warn("stop producer during rollback", "source", source.String(), "error", stopErr)
			}
		}
		s.guard.Release(s)
		s.state = StateCreated
		return err
	}

	granted, err := s.producers[SourcePrimary].RequestPermission(ctx)
	if err != nil {
		return fail(fmt.Errorf("request camera permission: %w", err), nil)
	}
	if !granted {
		return fail(ErrPermissionDenied, nil)
	}

	var started []FrameSource
	for _, source := range Sources {
		producer := s.producers[source]
		cfg := SourceConfig{
			Source:    source,
			Width:     s.opts.Width,
			Height:    s.opts.Height,
			FrameRate: s.opts.FrameRate,
		}
		if err := producer.Configure(cfg); err != nil {
			return fail(fmt.Errorf("configure %s feed: %w", source, err), started)
		}
		if err := producer.Start(s.deliverFunc(source)); err != nil {
			return fail(fmt.Errorf("start %s feed: %w", source, err), started)
		}
		started = append(started, source)
	}

	s.state = StateRunning
	s.logger.Info("capture session running",
		"width", s.opts.Width, "height", s.opts.Height, "frame_rate", s.opts.FrameRate)
	return nil
}

// deliverFunc stamps frames with a per-source sequence before broadcasting.
// Producers may already number frames; the session re-stamps so consumers
// see a gap-free sequence regardless of producer behaviour.
func (s *Session) deliverFunc(source FrameSource) func(Frame) {
	counter := s.seq[source]
	b := s.broadcasters[source]
	return func(f Frame) {
		f.Source = source
		f.Sequence = atomic.AddUint64(counter, 1)
		if f.Timestamp.IsZero() {
			f.Timestamp = time.Now()
		}
		b.Broadcast(f)
	}
}

// Stop releases hardware resources and clears the active slot if this session
// still holds it. Existing subscriptions stay registered; they simply stop
// receiving frames.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning {
		return
	}
	s.state = StateStopping

	for _, source := range Sources {
		if err := s.producers[source].Stop(); err != nil {
			s.logger.Warn("stop producer", "source", source.String(), "error", err)
		}
	}
	s.guard.Release(s)
	s.state = StateStopped
	s.logger.Info("capture session stopped")
}
