package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/offlinefirst/dualcam/internal/buildinfo"
	"github.com/offlinefirst/dualcam/pkg/capture"
)

func newRecordCommand() command {
	return command{
		name:        "record",
		description: "Record the composed dual-feed preview to a video file",
		configure: func(fs *flag.FlagSet) {
			fs.Duration("duration", 5*time.Second, "How long to record")
			fs.String("output", "", "Explicit recording file path (default: generated inside the run directory)")
			fs.String("region", "", "Restrict capture to a region (x0,y0,x1,y1)")
			fs.Bool("snapshot", false, "Also save a PNG of the final composed frame")
			fs.Bool("photos", false, "Also save raw stills from both feeds")
			fs.Bool("plan-only", false, "Print the resolved configuration without recording")
		},
		run: runRecord,
	}
}

var (
	timeNow      = time.Now
	hostname     = os.Hostname
	manifestSave = capture.SaveManifest
)

func runRecord(fs *flag.FlagSet, args []string, ctx *AppContext, stdout io.Writer, stderr io.Writer) error {
	if ctx == nil {
		return fmt.Errorf("application context unavailable")
	}

	if boolFlag(fs, "plan-only") {
		printPlan(ctx, stdout)
		return nil
	}

	region, err := parseRegion(stringFlag(fs, "region"))
	if err != nil {
		return err
	}
	duration := durationFlag(fs, "duration", 5*time.Second)
	if duration <= 0 {
		return fmt.Errorf("duration must be positive, got %s", duration)
	}

	ctx.Logger.Info("record command invoked",
		"duration", duration, "output_dir", ctx.Config.Paths.OutputDir, "config_source", ctx.Config.Source)

	layout, manifest, err := prepareRun(ctx)
	if err != nil {
		return err
	}

	session, err := buildSession(ctx.Config, ctx.Logger)
	if err != nil {
		return err
	}
	controller, err := capture.NewController(capture.ControllerOptions{
		Session: session,
		Config:  ctx.Config,
		Layout:  layout,
		Logger:  ctx.Logger,
	})
	if err != nil {
		return err
	}

	summary, runErr := capture.Run(context.Background(), capture.RunOptions{
		Config:         ctx.Config,
		Layout:         layout,
		Controller:     controller,
		Logger:         ctx.Logger,
		RecordDuration: duration,
		OutputPath:     stringFlag(fs, "output"),
		Region:         region,
		Snapshot:       boolFlag(fs, "snapshot"),
		Photos:         boolFlag(fs, "photos"),
	})

	if err := finishRun(ctx, layout, manifest, summary, runErr); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Run directory: %s\n", layout.Root)
	fmt.Fprintf(stdout, "Manifest: %s\n", layout.ManifestPath)
	if summary.Recording != nil {
		fmt.Fprintf(stdout, "Recording: %s (frames=%d dropped=%d provider=%s)\n",
			summary.Recording.File, summary.Recording.Frames, summary.Recording.Dropped, summary.Recording.Provider)
	}
	if summary.Snapshot != nil {
		fmt.Fprintf(stdout, "Snapshot: %s\n", summary.Snapshot.File)
	}
	for _, photo := range summary.Photos {
		fmt.Fprintf(stdout, "Photo: %s\n", photo)
	}
	return nil
}

// prepareRun resolves the run identity, builds the filesystem layout and
// writes the initial manifest.
func prepareRun(ctx *AppContext) (capture.Layout, capture.Manifest, error) {
	var layout capture.Layout
	var manifest capture.Manifest

	if err := os.MkdirAll(ctx.Config.Paths.OutputDir, 0o755); err != nil {
		return layout, manifest, fmt.Errorf("ensure output directory: %w", err)
	}

	runID, err := capture.ResolveRunID(ctx.Config.Paths.OutputDir, timeNow())
	if err != nil {
		return layout, manifest, fmt.Errorf("resolve run id: %w", err)
	}

	layout = capture.BuildLayout(ctx.Config.Paths.OutputDir, runID)
	if err := capture.EnsureFilesystem(layout); err != nil {
		return layout, manifest, fmt.Errorf("prepare run filesystem: %w", err)
	}

	host, err := hostname()
	if err != nil {
		host = "unknown"
	}

	manifest = capture.NewManifest(capture.ManifestOptions{
		RunID:      runID,
		CreatedAt:  timeNow(),
		Hostname:   host,
		AppVersion: buildinfo.Version(),
		Config:     ctx.Config,
		Layout:     layout,
	})
	started := timeNow().UTC()
	manifest.Status.State = "running"
	manifest.Status.StartedAt = &started
	if err := manifestSave(manifest, layout.ManifestPath); err != nil {
		return layout, manifest, fmt.Errorf("write manifest: %w", err)
	}

	return layout, manifest, nil
}

// finishRun records the outcome in the manifest, whether the run succeeded or
// not.
func finishRun(ctx *AppContext, layout capture.Layout, manifest capture.Manifest, summary capture.RunSummary, runErr error) error {
	ended := timeNow().UTC()
	manifest.Status.EndedAt = &ended
	if summary.Recording != nil {
		manifest.Status.Recordings = append(manifest.Status.Recordings, *summary.Recording)
	}
	if summary.Snapshot != nil {
		manifest.Status.Snapshots = append(manifest.Status.Snapshots, *summary.Snapshot)
	}

	if runErr != nil {
		manifest.Status.State = "failed"
		ctx.Logger.Error("capture run failed", "error", runErr)
		if saveErr := manifestSave(manifest, layout.ManifestPath); saveErr != nil {
			return fmt.Errorf("capture run: %v (additionally failed to persist manifest: %w)", runErr, saveErr)
		}
		return fmt.Errorf("capture run: %w", runErr)
	}

	manifest.Status.State = "completed"
	if err := manifestSave(manifest, layout.ManifestPath); err != nil {
		return fmt.Errorf("finalise manifest: %w", err)
	}
	return nil
}

func printPlan(ctx *AppContext, stdout io.Writer) {
	fmt.Fprintf(stdout, "Resolved configuration (source: %s)\n", ctx.Config.Source)
	fmt.Fprintf(stdout, "  output_dir: %s\n", ctx.Config.Paths.OutputDir)
	fmt.Fprintf(stdout, "  cache_dir: %s\n", ctx.Config.Paths.CacheDir)
	fmt.Fprintf(stdout, "  session.backend: %s\n", ctx.Config.Session.Backend)
	fmt.Fprintf(stdout, "  session.geometry: %dx%d@%d\n", ctx.Config.Session.Width, ctx.Config.Session.Height, ctx.Config.Session.FrameRate)
	fmt.Fprintf(stdout, "  recording.format: %s\n", ctx.Config.Recording.Format)
	fmt.Fprintf(stdout, "  recording.codec: %s\n", ctx.Config.Recording.Codec)
	fmt.Fprintf(stdout, "  recording.bitrate_kbps: %d\n", ctx.Config.Recording.BitrateKbps)
	fmt.Fprintf(stdout, "  recording.frame_rate: %d\n", ctx.Config.Recording.FrameRate)
	fmt.Fprintf(stdout, "  recording.max_long_edge: %d\n", ctx.Config.Recording.MaxLongEdge)
	fmt.Fprintf(stdout, "  logging.level: %s\n", ctx.Config.Logging.Level)
	fmt.Fprintf(stdout, "  logging.format: %s\n", ctx.Config.Logging.Format)
}

func boolFlag(fs *flag.FlagSet, name string) bool {
	f := fs.Lookup(name)
	if f == nil {
		return false
	}
	value, err := strconv.ParseBool(f.Value.String())
	if err != nil {
		return false
	}
	return value
}

func stringFlag(fs *flag.FlagSet, name string) string {
	f := fs.Lookup(name)
	if f == nil {
		return ""
	}
	return f.Value.String()
}

func durationFlag(fs *flag.FlagSet, name string, fallback time.Duration) time.Duration {
	f := fs.Lookup(name)
	if f == nil {
		return fallback
	}
	d, err := time.ParseDuration(f.Value.String())
	if err != nil {
		return fallback
	}
	return d
}
