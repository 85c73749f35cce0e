package cmd

import (
	"flag"
	"fmt"
	"io"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/offlinefirst/dualcam/pkg/camera"
	"github.com/offlinefirst/dualcam/pkg/permissions"
	"github.com/offlinefirst/dualcam/pkg/record"
)

func newDoctorCommand() command {
	return command{
		name:        "doctor",
		description: "Inspect permissions, devices and the recording backend",
		run:         runDoctor,
	}
}

// Hooks for tests.
var (
	cameraCount   = camera.AvailableCameraCount
	cpuCounts     = func() (int, error) { return cpu.Counts(true) }
	virtualMemory = mem.VirtualMemory
)

func runDoctor(fs *flag.FlagSet, args []string, ctx *AppContext, stdout io.Writer, stderr io.Writer) error {
	if ctx == nil {
		return fmt.Errorf("application context unavailable")
	}

	fmt.Fprintf(stdout, "dualcam doctor (%s)\n\n", versionString())

	fmt.Fprintln(stdout, "Permissions:")
	cam := permissions.ProbeCamera(nil)
	fmt.Fprintf(stdout, "  camera: %s (%s)\n", cam.StatusString(), cam.Message)
	if cam.Guidance != "" {
		fmt.Fprintf(stdout, "    hint: %s\n", cam.Guidance)
	}
	screen := permissions.ProbeScreenRecording(nil)
	fmt.Fprintf(stdout, "  screen recording: %s (%s)\n", screen.StatusString(), screen.Message)
	if screen.Guidance != "" {
		fmt.Fprintf(stdout, "    hint: %s\n", screen.Guidance)
	}

	fmt.Fprintln(stdout, "\nDevices:")
	count := cameraCount()
	fmt.Fprintf(stdout, "  cameras detected: %d\n", count)
	if count < 2 && ctx.Config.Session.Backend == "camera" {
		fmt.Fprintln(stdout, "  warning: dual-feed capture needs two cameras; configure session.backend = \"synthetic\" to test without hardware")
	}
	fmt.Fprintf(stdout, "  configured backend: %s\n", ctx.Config.Session.Backend)

	fmt.Fprintln(stdout, "\nRecording backend:")
	env := record.DetectEnvironment()
	fmt.Fprintf(stdout, "  provider: %s (available=%t)\n", env.Provider, env.Available)
	fmt.Fprintf(stdout, "  detail: %s\n", env.Message)

	fmt.Fprintln(stdout, "\nHost:")
	if cores, err := cpuCounts(); err == nil {
		fmt.Fprintf(stdout, "  logical cpus: %d\n", cores)
	} else {
		fmt.Fprintf(stdout, "  logical cpus: unavailable (%v)\n", err)
	}
	if vm, err := virtualMemory(); err == nil {
		fmt.Fprintf(stdout, "  memory: %d MiB total, %.0f%% used\n", vm.Total/1024/1024, vm.UsedPercent)
	} else {
		fmt.Fprintf(stdout, "  memory: unavailable (%v)\n", err)
	}

	ctx.Logger.Info("doctor completed",
		"camera_permission", cam.StatusString(),
		"screen_permission", screen.StatusString(),
		"cameras", count,
		"record_provider", env.Provider)
	return nil
}
