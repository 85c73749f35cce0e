package capture

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/offlinefirst/dualcam/pkg/config"
)

// SchemaVersion captures the manifest version for compatibility checks.
const SchemaVersion = 1

// Layout represents the absolute filesystem locations for a capture run.
type Layout struct {
	Root           string
	ManifestPath   string
	CaptureLogPath string
	RecordingsDir  string
	SnapshotsDir   string
	PhotosDir      string
}

// Paths holds the relative locations stored in the manifest for portability.
type Paths struct {
	Root       string `json:"root"`
	Manifest   string `json:"manifest"`
	CaptureLog string `json:"capture_log"`
	Recordings string `json:"recordings"`
	Snapshots  string `json:"snapshots"`
	Photos     string `json:"photos"`
}

// SessionSettings records the camera session parameters for the run.
type SessionSettings struct {
	Backend   string `json:"backend"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	FrameRate int    `json:"frame_rate"`
}

// RecordingSettings records the encode profile configured for the run.
type RecordingSettings struct {
	Format      string `json:"format"`
	FrameRate   int    `json:"frame_rate"`
	BitrateKbps int    `json:"bitrate_kbps"`
	Codec       string `json:"codec"`
}

// RecordingEntry describes one finished recording within the run.
type RecordingEntry struct {
	File      string    `json:"file"`
	Provider  string    `json:"provider"`
	Frames    uint64    `json:"frames"`
	Dropped   uint64    `json:"dropped"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// SnapshotEntry describes one captured still within the run.
type SnapshotEntry struct {
	File       string    `json:"file"`
	CapturedAt time.Time `json:"captured_at"`
}

// Status summarises the lifecycle of a capture run.
type Status struct {
	State      string           `json:"state"`
	StartedAt  *time.Time       `json:"started_at,omitempty"`
	EndedAt    *time.Time       `json:"ended_at,omitempty"`
	Recordings []RecordingEntry `json:"recordings,omitempty"`
	Snapshots  []SnapshotEntry  `json:"snapshots,omitempty"`
}

// Manifest is the durable metadata describing a capture run.
type Manifest struct {
	SchemaVersion int               `json:"schema_version"`
	RunID         string            `json:"run_id"`
	CreatedAt     time.Time         `json:"created_at"`
	Hostname      string            `json:"hostname"`
	AppVersion    string            `json:"app_version"`
	ConfigSource  string            `json:"config_source"`
	Session       SessionSettings   `json:"session"`
	Recording     RecordingSettings `json:"recording"`
	Paths         Paths             `json:"paths"`
	Status        Status            `json:"status"`
}

// ManifestOptions captures the knobs for creating a new manifest.
type ManifestOptions struct {
	RunID      string
	CreatedAt  time.Time
	Hostname   string
	AppVersion string
	Config     config.Config
	Layout     Layout
}

// NewManifest constructs a manifest using the supplied options.
func NewManifest(opts ManifestOptions) Manifest {
	return Manifest{
		SchemaVersion: SchemaVersion,
		RunID:         opts.RunID,
		CreatedAt:     opts.CreatedAt.UTC(),
		Hostname:      opts.Hostname,
		AppVersion:    opts.AppVersion,
		ConfigSource:  opts.Config.Source,
		Session: SessionSettings{
			Backend:   opts.Config.Session.Backend,
			Width:     opts.Config.Session.Width,
			Height:    opts.Config.Session.Height,
			FrameRate: opts.Config.Session.FrameRate,
		},
		Recording: RecordingSettings{
			Format:      opts.Config.Recording.Format,
			FrameRate:   opts.Config.Recording.FrameRate,
			BitrateKbps: opts.Config.Recording.BitrateKbps,
			Codec:       opts.Config.Recording.Codec,
		},
		Paths:  opts.Layout.RelativePaths(),
		Status: Status{State: "pending"},
	}
}

// BuildLayout creates an absolute filesystem layout for a run.
func BuildLayout(outputDir, runID string) Layout {
	root := filepath.Join(outputDir, runID)
	return Layout{
		Root:           root,
		ManifestPath:   filepath.Join(root, "manifest.json"),
		CaptureLogPath: filepath.Join(root, "capture.log"),
		RecordingsDir:  filepath.Join(root, "recordings"),
		SnapshotsDir:   filepath.Join(root, "snapshots"),
		PhotosDir:      filepath.Join(root, "photos"),
	}
}

// RelativePaths exposes the manifest-friendly relative paths for the layout.
func (l Layout) RelativePaths() Paths {
	return Paths{
		Root:       ".",
		Manifest:   filepath.Base(l.ManifestPath),
		CaptureLog: filepath.Base(l.CaptureLogPath),
		Recordings: filepath.Base(l.RecordingsDir),
		Snapshots:  filepath.Base(l.SnapshotsDir),
		Photos:     filepath.Base(l.PhotosDir),
	}
}

// EnsureFilesystem prepares the directory tree for a run layout.
func EnsureFilesystem(layout Layout) error {
	if err := os.MkdirAll(layout.Root, 0o755); err != nil {
		return fmt.Errorf("create run root: %w", err)
	}

	dirs := []string{
		layout.RecordingsDir,
		layout.SnapshotsDir,
		layout.PhotosDir,
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}

	file, err := os.OpenFile(layout.CaptureLogPath, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("initialise capture log: %w", err)
	}
	defer file.Close()

	return nil
}

// SaveManifest writes the manifest JSON to disk with indentation for readability.
func SaveManifest(man Manifest, path string) error {
	data, err := json.MarshalIndent(man, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// LoadManifest reads a manifest JSON file from disk.
func LoadManifest(path string) (Manifest, error) {
	var man Manifest
	data, err := os.ReadFile(path)
	if err != nil {
		return man, fmt.Errorf("read manifest: %w", err)
	}
	if err := json.Unmarshal(data, &man); err != nil {
		return man, fmt.Errorf("decode manifest: %w", err)
	}
	return man, nil
}

// ResolveRunID chooses a run identifier derived from the timestamp and avoids collisions.
func ResolveRunID(outputDir string, now time.Time) (string, error) {
	if strings.TrimSpace(outputDir) == "" {
		return "", errors.New("output directory must not be empty")
	}

	base := now.UTC().Format("20060102_150405")
	candidate := base
	suffix := 1
	for {
		_, err := os.Stat(filepath.Join(outputDir, candidate))
		if err == nil {
			candidate = fmt.Sprintf("%s_%02d", base, suffix)
			suffix++
			continue
		}
		if errors.Is(err, os.ErrNotExist) {
			return candidate, nil
		}
		return "", fmt.Errorf("inspect output directory: %w", err)
	}
}
