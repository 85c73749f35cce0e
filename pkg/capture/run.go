package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/offlinefirst/dualcam/pkg/compose"
	"github.com/offlinefirst/dualcam/pkg/config"
	"github.com/offlinefirst/dualcam/pkg/record"
)

// warmupTimeout bounds the wait for the first composed frame after the
// session starts.
const warmupTimeout = 3 * time.Second

// RunOptions controls one orchestrated capture run.
type RunOptions struct {
	Config     config.Config
	Layout     Layout
	Controller *Controller
	Logger     *slog.Logger
	Clock      clock.Clock
	// RecordDuration stops the recording after the given time. Zero skips
	// recording entirely.
	RecordDuration time.Duration
	// OutputPath overrides the generated recording location.
	OutputPath string
	// Region restricts the recording and snapshot to a screen region; the
	// zero rectangle captures everything.
	Region image.Rectangle
	// Snapshot saves the composed preview as a PNG at the end of the run.
	Snapshot bool
	// Photos saves a raw still from each feed at the end of the run.
	Photos bool
}

// RunSummary reports what a capture run produced.
type RunSummary struct {
	Recording *RecordingEntry
	Snapshot  *SnapshotEntry
	Photos    []string
}

// Run executes one capture run: start the session, wait for frames, record
// for the requested duration, then collect the requested stills. The session
// is stopped before Run returns.
func Run(ctx context.Context, opts RunOptions) (RunSummary, error) {
	if opts.Logger == nil {
		return RunSummary{}, errors.New("logger must be provided")
	}
	if opts.Controller == nil {
		return RunSummary{}, errors.New("controller must be provided")
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}

	logFile, err := os.OpenFile(opts.Layout.CaptureLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return RunSummary{}, fmt.Errorf("open capture log: %w", err)
	}
	defer logFile.Close()

	if err := opts.Controller.StartSession(ctx); err != nil {
		return RunSummary{}, fmt.Errorf("start session: %w", err)
	}
	defer opts.Controller.StopSession()
	writeCaptureLog(logFile, clk.Now(), "session", "started (backend=%s)", opts.Config.Session.Backend)

	if err := waitForFirstFrame(ctx, clk, opts.Controller); err != nil {
		writeCaptureLog(logFile, clk.Now(), "session", "no frames arrived: %v", err)
		return RunSummary{}, err
	}

	summary := RunSummary{}

	if opts.RecordDuration > 0 {
		opts.Logger.Info("starting recording", "duration", opts.RecordDuration)
		cfg := record.Config{
			Mode:       record.ScreenComposite(opts.Region),
			OutputPath: opts.OutputPath,
			Quality: record.Quality{
				BitrateKbps:          opts.Config.Recording.BitrateKbps,
				FrameRate:            opts.Config.Recording.FrameRate,
				Codec:                opts.Config.Recording.Codec,
				KeyframeInterval:     opts.Config.Recording.KeyframeInterval,
				AllowFrameReordering: opts.Config.Recording.AllowFrameReordering,
			},
		}
		if err := opts.Controller.StartVideoRecording(ctx, cfg); err != nil {
			writeCaptureLog(logFile, clk.Now(), "recording", "failed to start: %v", err)
			return RunSummary{}, fmt.Errorf("start recording: %w", err)
		}

		timer := clk.Timer(opts.RecordDuration)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}

		entry, err := opts.Controller.StopVideoRecording()
		if err != nil {
			writeCaptureLog(logFile, clk.Now(), "recording", "failed to finalize: %v", err)
			return RunSummary{}, fmt.Errorf("stop recording: %w", err)
		}
		summary.Recording = &entry
		writeCaptureLog(logFile, clk.Now(), "recording", "wrote %s (frames=%d dropped=%d)", entry.File, entry.Frames, entry.Dropped)
		opts.Logger.Info("recording complete", "file", entry.File, "frames", entry.Frames, "dropped", entry.Dropped)

		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
	}

	if opts.Snapshot {
		img, err := opts.Controller.CaptureCurrentScreen(opts.Region)
		if err != nil {
			writeCaptureLog(logFile, clk.Now(), "snapshot", "failed: %v", err)
			return summary, fmt.Errorf("capture snapshot: %w", err)
		}
		path := filepath.Join(opts.Layout.SnapshotsDir, fmt.Sprintf("snapshot_%s.png", clk.Now().UTC().Format("20060102_150405")))
		if err := writePNG(path, img); err != nil {
			return summary, err
		}
		summary.Snapshot = &SnapshotEntry{File: path, CapturedAt: clk.Now().UTC()}
		writeCaptureLog(logFile, clk.Now(), "snapshot", "wrote %s", path)
		opts.Logger.Info("snapshot complete", "file", path)
	}

	if opts.Photos {
		photos, err := opts.Controller.CaptureRawPhotos(ctx)
		if err != nil {
			writeCaptureLog(logFile, clk.Now(), "photos", "failed: %v", err)
			return summary, fmt.Errorf("capture raw photos: %w", err)
		}
		stamp := clk.Now().UTC().Format("20060102_150405")
		pairs := []struct {
			name string
			img  image.Image
		}{
			{name: fmt.Sprintf("primary_%s.png", stamp), img: photos.Primary},
			{name: fmt.Sprintf("secondary_%s.png", stamp), img: photos.Secondary},
		}
		for _, pair := range pairs {
			path := filepath.Join(opts.Layout.PhotosDir, pair.name)
			if err := writePNG(path, pair.img); err != nil {
				return summary, err
			}
			summary.Photos = append(summary.Photos, path)
		}
		writeCaptureLog(logFile, clk.Now(), "photos", "wrote %d stills", len(summary.Photos))
		opts.Logger.Info("raw photos complete", "count", len(summary.Photos))
	}

	writeCaptureLog(logFile, clk.Now(), "session", "stopped")
	return summary, nil
}

// waitForFirstFrame polls the compositor until both the session has delivered
// a primary frame and the preview can be composed.
func waitForFirstFrame(ctx context.Context, clk clock.Clock, controller *Controller) error {
	deadline := clk.Now().Add(warmupTimeout)
	for {
		_, err := controller.CaptureCurrentScreen(image.Rectangle{})
		if err == nil {
			return nil
		}
		if !errors.Is(err, compose.ErrNoSurface) {
			return fmt.Errorf("compose preview: %w", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !clk.Now().Before(deadline) {
			return fmt.Errorf("no frames within %s: %w", warmupTimeout, err)
		}
		clk.Sleep(20 * time.Millisecond)
	}
}

func writePNG(path string, img image.Image) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %q: %w", path, err)
	}
	if err := png.Encode(file, img); err != nil {
		file.Close()
		return fmt.Errorf("encode %q: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close %q: %w", path, err)
	}
	return nil
}

func writeCaptureLog(file *os.File, timestamp time.Time, subsystem, message string, args ...any) {
	if file == nil {
		return
	}
	formatted := message
	if len(args) > 0 {
		formatted = fmt.Sprintf(message, args...)
	}
	line := fmt.Sprintf("[%s] subsystem=%s %s\n", timestamp.UTC().Format(time.RFC3339), subsystem, formatted)
	_, _ = file.WriteString(line)
}
