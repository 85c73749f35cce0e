package capture

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/offlinefirst/dualcam/pkg/config"
)

func TestBuildLayoutAndRelativePaths(t *testing.T) {
	layout := BuildLayout("/tmp/captures", "20260512_093000")

	if layout.Root != filepath.Join("/tmp/captures", "20260512_093000") {
		t.Fatalf("unexpected root: %s", layout.Root)
	}

	rel := layout.RelativePaths()
	if rel.Root != "." {
		t.Fatalf("expected relative root '.', got %q", rel.Root)
	}
	if rel.Manifest != "manifest.json" {
		t.Fatalf("expected manifest.json, got %s", rel.Manifest)
	}
	if rel.Recordings != "recordings" {
		t.Fatalf("expected recordings directory name, got %s", rel.Recordings)
	}
	if rel.Photos != "photos" {
		t.Fatalf("expected photos directory name, got %s", rel.Photos)
	}
}

func TestEnsureFilesystemCreatesDirectories(t *testing.T) {
	dir := t.TempDir()
	layout := BuildLayout(dir, "run")

	if err := EnsureFilesystem(layout); err != nil {
		t.Fatalf("EnsureFilesystem failed: %v", err)
	}

	paths := []string{
		layout.Root,
		layout.RecordingsDir,
		layout.SnapshotsDir,
		layout.PhotosDir,
	}
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			t.Fatalf("expected path %s: %v", p, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected directory at %s", p)
		}
	}

	if _, err := os.Stat(layout.CaptureLogPath); err != nil {
		t.Fatalf("expected capture log file: %v", err)
	}
}

func TestNewManifest(t *testing.T) {
	cfg := config.Default()
	cfg.Source = "config.toml"
	layout := BuildLayout("/tmp/captures", "run")
	now := time.Date(2026, 5, 12, 9, 30, 0, 0, time.UTC)

	man := NewManifest(ManifestOptions{
		RunID:      "run",
		CreatedAt:  now,
		Hostname:   "host",
		AppVersion: "test",
		Config:     cfg,
		Layout:     layout,
	})

	if man.SchemaVersion != SchemaVersion {
		t.Fatalf("unexpected schema version: %d", man.SchemaVersion)
	}
	if man.CreatedAt.Location() != time.UTC {
		t.Fatalf("expected CreatedAt in UTC, got %s", man.CreatedAt.Location())
	}
	if man.Session.Backend != cfg.Session.Backend {
		t.Fatalf("session backend mismatch: %s", man.Session.Backend)
	}
	if man.Recording.BitrateKbps != cfg.Recording.BitrateKbps {
		t.Fatalf("recording bitrate mismatch: %d", man.Recording.BitrateKbps)
	}
	if man.Status.State != "pending" {
		t.Fatalf("unexpected initial state: %s", man.Status.State)
	}
}

func TestSaveAndLoadManifest(t *testing.T) {
	dir := t.TempDir()
	layout := BuildLayout(dir, "run")
	cfg := config.Default()
	cfg.Source = "explicit"
	now := time.Now().UTC().Round(time.Second)

	man := NewManifest(ManifestOptions{
		RunID:      "run",
		CreatedAt:  now,
		Hostname:   "host",
		AppVersion: "version",
		Config:     cfg,
		Layout:     layout,
	})
	man.Status.State = "completed"
	man.Status.Recordings = []RecordingEntry{{
		File:     "recordings/rec.mjpeg",
		Provider: "mjpeg",
		Frames:   42,
		Dropped:  1,
	}}

	path := filepath.Join(dir, "manifest.json")
	if err := SaveManifest(man, path); err != nil {
		t.Fatalf("SaveManifest failed: %v", err)
	}

	loaded, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest failed: %v", err)
	}
	if loaded.RunID != man.RunID {
		t.Fatalf("run id mismatch: %s", loaded.RunID)
	}
	if !loaded.CreatedAt.Equal(man.CreatedAt) {
		t.Fatalf("created at mismatch: %s vs %s", loaded.CreatedAt, man.CreatedAt)
	}
	if len(loaded.Status.Recordings) != 1 || loaded.Status.Recordings[0].Frames != 42 {
		t.Fatalf("recording entry mismatch: %+v", loaded.Status.Recordings)
	}
}

func TestLoadManifestMissingFile(t *testing.T) {
	if _, err := LoadManifest(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing manifest")
	}
}

func TestResolveRunID(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 5, 12, 9, 30, 0, 0, time.UTC)

	id, err := ResolveRunID(dir, now)
	if err != nil {
		t.Fatalf("ResolveRunID failed: %v", err)
	}
	if id != "20260512_093000" {
		t.Fatalf("unexpected run id: %s", id)
	}

	if err := os.MkdirAll(filepath.Join(dir, id), 0o755); err != nil {
		t.Fatalf("create collision dir: %v", err)
	}
	next, err := ResolveRunID(dir, now)
	if err != nil {
		t.Fatalf("ResolveRunID with collision failed: %v", err)
	}
	if next != "20260512_093000_01" {
		t.Fatalf("unexpected collision run id: %s", next)
	}

	if _, err := ResolveRunID("  ", now); err == nil {
		t.Fatal("expected error for empty output directory")
	}
}
