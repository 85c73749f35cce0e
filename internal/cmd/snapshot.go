package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/offlinefirst/dualcam/pkg/capture"
)

func newSnapshotCommand() command {
	return command{
		name:        "snapshot",
		description: "Capture a single composed frame as a PNG",
		configure: func(fs *flag.FlagSet) {
			fs.String("region", "", "Restrict capture to a region (x0,y0,x1,y1)")
			fs.Bool("photos", false, "Also save raw stills from both feeds")
		},
		run: runSnapshot,
	}
}

func runSnapshot(fs *flag.FlagSet, args []string, ctx *AppContext, stdout io.Writer, stderr io.Writer) error {
	if ctx == nil {
		return fmt.Errorf("application context unavailable")
	}

	region, err := parseRegion(stringFlag(fs, "region"))
	if err != nil {
		return err
	}

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
		Config:     ctx.Config,
		Layout:     layout,
		Controller: controller,
		Logger:     ctx.Logger,
		Region:     region,
		Snapshot:   true,
		Photos:     boolFlag(fs, "photos"),
	})

	if err := finishRun(ctx, layout, manifest, summary, runErr); err != nil {
		return err
	}

	if summary.Snapshot != nil {
		fmt.Fprintf(stdout, "Snapshot: %s\n", summary.Snapshot.File)
	}
	for _, photo := range summary.Photos {
		fmt.Fprintf(stdout, "Photo: %s\n", photo)
	}
	return nil
}
