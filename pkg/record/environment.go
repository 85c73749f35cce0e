package record

import (
	"os"
	"os/exec"
	"strings"
)

// Provider identifiers for manifest reporting.
const (
	ProviderFFmpeg = "ffmpeg"
	ProviderMJPEG  = "mjpeg"
)

// Environment describes the available sink backend for the host platform.
type Environment struct {
	Provider  string
	Available bool
	Message   string
}

// DetectEnvironment reports which sink backend recordings will use. The
// DUALCAM_RECORD_BACKEND variable forces a backend; otherwise ffmpeg is
// preferred when present, with the pure-Go MJPEG writer as fallback.
func DetectEnvironment() Environment {
	backend := strings.ToLower(strings.TrimSpace(os.Getenv("DUALCAM_RECORD_BACKEND")))

	switch backend {
	case ProviderMJPEG:
		return Environment{Provider: ProviderMJPEG, Available: true, Message: "mjpeg backend forced via env"}
	case ProviderFFmpeg:
		if _, err := exec.LookPath("ffmpeg"); err != nil {
			return Environment{Provider: ProviderFFmpeg, Available: false, Message: "ffmpeg forced via env but not found on PATH"}
		}
		return Environment{Provider: ProviderFFmpeg, Available: true, Message: "ffmpeg backend forced via env"}
	}

	if _, err := exec.LookPath("ffmpeg"); err == nil {
		return Environment{Provider: ProviderFFmpeg, Available: true, Message: "ffmpeg found on PATH"}
	}
	return Environment{Provider: ProviderMJPEG, Available: true, Message: "ffmpeg not found; using built-in mjpeg writer"}
}

// SinkFactoryFor returns the factory and file extension matching env.
func SinkFactoryFor(env Environment) (SinkFactory, string) {
	if env.Provider == ProviderFFmpeg && env.Available {
		return NewFFmpegSink, "mp4"
	}
	return NewMJPEGSink, "mjpeg"
}
