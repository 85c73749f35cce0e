package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/sync/errgroup"

	"github.com/offlinefirst/dualcam/pkg/broadcast"
	"github.com/offlinefirst/dualcam/pkg/camera"
	"github.com/offlinefirst/dualcam/pkg/compose"
	"github.com/offlinefirst/dualcam/pkg/config"
	"github.com/offlinefirst/dualcam/pkg/record"
	"github.com/offlinefirst/dualcam/pkg/render"
)

// ControllerOptions configure the capture façade.
type ControllerOptions struct {
	Session *camera.Session
	Config  config.Config
	Layout  Layout
	// Environment overrides sink backend detection, mainly for tests.
	Environment *record.Environment
	Clock       clock.Clock
	Logger      *slog.Logger
}

// RawPhotos holds simultaneous stills from both feeds.
type RawPhotos struct {
	Primary   image.Image
	Secondary image.Image
}

// Controller is the single entry point tying the capture session, the live
// preview renderers, the compositor, and the recording pipeline together.
type Controller struct {
	session    *camera.Session
	logger     *slog.Logger
	clk        clock.Clock
	env        record.Environment
	renderers  map[camera.FrameSource]*render.Renderer
	compositor *compose.Compositor
	pipeline   *record.Pipeline

	mu           sync.Mutex
	subs         []*broadcast.Subscription[camera.Frame]
	attached     bool
	recStartedAt time.Time
}

// NewController wires the renderers, compositor and recording pipeline around
// the given session. The session itself is not started.
func NewController(opts ControllerOptions) (*Controller, error) {
	if opts.Session == nil {
		return nil, errors.New("session must be provided")
	}
	if opts.Logger == nil {
		return nil, errors.New("logger must be provided")
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}

	renderers := map[camera.FrameSource]*render.Renderer{
		camera.SourcePrimary:   render.New(camera.SourcePrimary),
		camera.SourceSecondary: render.New(camera.SourceSecondary),
	}
	compositor, err := compose.New(renderers[camera.SourcePrimary], renderers[camera.SourceSecondary])
	if err != nil {
		return nil, fmt.Errorf("initialise compositor: %w", err)
	}

	env := record.DetectEnvironment()
	if opts.Environment != nil {
		env = *opts.Environment
	}
	factory, ext := record.SinkFactoryFor(env)

	pipeline, err := record.NewPipeline(record.Options{
		Grabber:     compositeGrabber{compositor: compositor},
		NewSink:     factory,
		OutputDir:   opts.Layout.RecordingsDir,
		Extension:   ext,
		MaxLongEdge: opts.Config.Recording.MaxLongEdge,
		Clock:       clk,
		Logger:      opts.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("initialise recording pipeline: %w", err)
	}

	return &Controller{
		session:    opts.Session,
		logger:     opts.Logger,
		clk:        clk,
		env:        env,
		renderers:  renderers,
		compositor: compositor,
		pipeline:   pipeline,
	}, nil
}

// Environment reports the sink backend recordings will use.
func (c *Controller) Environment() record.Environment {
	return c.env
}

// StartSession starts both feeds and attaches the preview renderers. Calling
// it on a running session is a no-op, matching the session semantics.
func (c *Controller) StartSession(ctx context.Context) error {
	if err := c.session.Start(ctx); err != nil {
		return err
	}
	return c.attach()
}

// attach subscribes a renderer to each source broadcaster. Subscriptions are
// created once and survive until StopSession.
func (c *Controller) attach() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.attached {
		return nil
	}

	var subs []*broadcast.Subscription[camera.Frame]
	for _, source := range camera.Sources {
		sub, err := c.session.Broadcaster(source).Subscribe()
		if err != nil {
			for _, s := range subs {
				s.Cancel()
			}
			return fmt.Errorf("subscribe %s feed: %w", source, err)
		}
		subs = append(subs, sub)
		go c.renderers[source].Feed(sub)
	}
	c.subs = subs
	c.attached = true
	c.logger.Info("preview renderers attached", "sources", len(subs))
	return nil
}

// StopSession stops any active recording, detaches the renderers and stops
// the session.
func (c *Controller) StopSession() {
	if c.pipeline.State() == record.StateActive {
		if _, err := c.StopVideoRecording(); err != nil && !errors.Is(err, record.ErrNoRecordingInProgress) {
			c.logger.Warn("stopping recording during session teardown failed", "error", err)
		}
	}

	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.attached = false
	c.mu.Unlock()

	for _, sub := range subs {
		sub.Cancel()
	}
	c.session.Stop()
}

// CaptureCurrentScreen returns the composed preview, optionally restricted to
// a region. The zero rectangle captures the full screen.
func (c *Controller) CaptureCurrentScreen(region image.Rectangle) (image.Image, error) {
	return c.compositor.CaptureRegion(region)
}

// CaptureRawPhotos snapshots both feeds concurrently. Both stills must be
// available for the call to succeed.
func (c *Controller) CaptureRawPhotos(ctx context.Context) (RawPhotos, error) {
	var photos RawPhotos
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		img, err := c.renderers[camera.SourcePrimary].Snapshot()
		if err != nil {
			return fmt.Errorf("primary feed: %w", err)
		}
		photos.Primary = img
		return nil
	})
	g.Go(func() error {
		img, err := c.renderers[camera.SourceSecondary].Snapshot()
		if err != nil {
			return fmt.Errorf("secondary feed: %w", err)
		}
		photos.Secondary = img
		return nil
	})
	if err := g.Wait(); err != nil {
		return RawPhotos{}, err
	}
	return photos, nil
}

// StartVideoRecording begins recording the composed preview.
func (c *Controller) StartVideoRecording(ctx context.Context, cfg record.Config) error {
	if err := c.pipeline.Start(ctx, cfg); err != nil {
		return err
	}
	c.mu.Lock()
	c.recStartedAt = c.clk.Now().UTC()
	c.mu.Unlock()
	return nil
}

// StopVideoRecording finalizes the active recording and returns its manifest
// entry.
func (c *Controller) StopVideoRecording() (RecordingEntry, error) {
	path, err := c.pipeline.Stop()
	if err != nil {
		return RecordingEntry{}, err
	}
	stats := c.pipeline.Stats()
	c.mu.Lock()
	startedAt := c.recStartedAt
	c.mu.Unlock()
	return RecordingEntry{
		File:      path,
		Provider:  c.env.Provider,
		Frames:    stats.Frames,
		Dropped:   stats.Dropped,
		StartedAt: startedAt,
		EndedAt:   c.clk.Now().UTC(),
	}, nil
}

// RecordingState reports the pipeline lifecycle state.
func (c *Controller) RecordingState() record.State {
	return c.pipeline.State()
}

// compositeGrabber adapts the compositor to the pipeline's frame source.
type compositeGrabber struct {
	compositor *compose.Compositor
}

func (g compositeGrabber) GrabFrame(_ context.Context, region image.Rectangle) (image.Image, error) {
	return g.compositor.CaptureRegion(region)
}
