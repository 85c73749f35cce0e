package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const DefaultFileName = "config.toml"

// Config captures the user-adjustable knobs for the capture and recording workflows.
type Config struct {
	Paths     PathsConfig     `toml:"paths"`
	Session   SessionConfig   `toml:"session"`
	Recording RecordingConfig `toml:"recording"`
	Logging   LoggingConfig   `toml:"logging"`

	// Source indicates where the configuration originated (defaults or a file path).
	Source string `toml:"-"`
}

// PathsConfig controls filesystem locations used by the CLI.
type PathsConfig struct {
	OutputDir string `toml:"output_dir"`
	CacheDir  string `toml:"cache_dir"`
}

// SessionConfig describes the dual-source capture session.
type SessionConfig struct {
	// Backend selects the frame producer implementation: "camera" or "synthetic".
	Backend   string `toml:"backend"`
	Width     int    `toml:"width"`
	Height    int    `toml:"height"`
	FrameRate int    `toml:"frame_rate"`
}

// RecordingConfig defines the encode quality profile and clamping bound.
type RecordingConfig struct {
	Format               string `toml:"format"`
	FrameRate            int    `toml:"frame_rate"`
	BitrateKbps          int    `toml:"bitrate_kbps"`
	Codec                string `toml:"codec"`
	KeyframeInterval     int    `toml:"keyframe_interval"`
	AllowFrameReordering bool   `toml:"allow_frame_reordering"`
	MaxLongEdge          int    `toml:"max_long_edge"`
}

// LoggingConfig defines log verbosity and formatting.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns the baseline configuration used when no overrides are supplied.
func Default() Config {
	return Config{
		Paths: PathsConfig{
			OutputDir: "captures",
			CacheDir:  "cache",
		},
		Session: SessionConfig{
			Backend:   "synthetic",
			Width:     1280,
			Height:    720,
			FrameRate: 30,
		},
		Recording: RecordingConfig{
			Format:               "mjpeg",
			FrameRate:            30,
			BitrateKbps:          8000,
			Codec:                "h264",
			KeyframeInterval:     60,
			AllowFrameReordering: false,
			MaxLongEdge:          1280,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Source: "<defaults>",
	}
}

// Load reads configuration from disk if present, otherwise returning defaults.
// When path is empty, the loader attempts to read ./config.toml but tolerates a missing file.
func Load(path string) (Config, error) {
	cfg := Default()

	candidate := strings.TrimSpace(path)
	explicit := candidate != ""
	if !explicit {
		candidate = DefaultFileName
	}

	raw, err := os.ReadFile(candidate)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if explicit {
				return cfg, fmt.Errorf("config file %q not found", candidate)
			}
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config file %q: %w", candidate, err)
	}

	if err := toml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("decode config file %q: %w", candidate, err)
	}
	cfg.Source = candidate
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate ensures essential configuration values are present and sensible.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir must not be empty")
	}
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		return errors.New("paths.cache_dir must not be empty")
	}

	if _, err := NormalizeLogLevel(c.Logging.Level); err != nil {
		return err
	}
	if _, err := NormalizeFormat(c.Logging.Format); err != nil {
		return err
	}

	switch c.Session.Backend {
	case "camera", "synthetic":
	default:
		return fmt.Errorf("session.backend must be \"camera\" or \"synthetic\", got %q", c.Session.Backend)
	}
	if c.Session.Width <= 0 || c.Session.Height <= 0 {
		return errors.New("session.width and session.height must be positive")
	}
	if c.Session.FrameRate <= 0 {
		return errors.New("session.frame_rate must be positive")
	}

	if strings.TrimSpace(c.Recording.Format) == "" {
		return errors.New("recording.format must not be empty")
	}
	if c.Recording.FrameRate <= 0 {
		return errors.New("recording.frame_rate must be positive")
	}
	if c.Recording.BitrateKbps <= 0 {
		return errors.New("recording.bitrate_kbps must be positive")
	}
	if c.Recording.KeyframeInterval <= 0 {
		return errors.New("recording.keyframe_interval must be positive")
	}
	if c.Recording.MaxLongEdge <= 0 {
		return errors.New("recording.max_long_edge must be positive")
	}

	return nil
}

func (c *Config) normalize() {
	c.Paths.OutputDir = filepath.Clean(strings.TrimSpace(c.Paths.OutputDir))
	c.Paths.CacheDir = filepath.Clean(strings.TrimSpace(c.Paths.CacheDir))

	defaults := Default()

	if c.Paths.OutputDir == "." || c.Paths.OutputDir == "" {
		c.Paths.OutputDir = defaults.Paths.OutputDir
	}
	if c.Paths.CacheDir == "." || c.Paths.CacheDir == "" {
		c.Paths.CacheDir = defaults.Paths.CacheDir
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = defaults.Logging.Level
	}
	if strings.TrimSpace(c.Logging.Format) == "" {
		c.Logging.Format = defaults.Logging.Format
	}

	c.Session.Backend = strings.ToLower(strings.TrimSpace(c.Session.Backend))
	if c.Session.Backend == "" {
		c.Session.Backend = defaults.Session.Backend
	}
	if c.Session.Width <= 0 {
		c.Session.Width = defaults.Session.Width
	}
	if c.Session.Height <= 0 {
		c.Session.Height = defaults.Session.Height
	}
	if c.Session.FrameRate <= 0 {
		c.Session.FrameRate = defaults.Session.FrameRate
	}

	c.Recording.Format = strings.ToLower(strings.TrimSpace(c.Recording.Format))
	if c.Recording.Format == "" {
		c.Recording.Format = defaults.Recording.Format
	}
	c.Recording.Codec = strings.ToLower(strings.TrimSpace(c.Recording.Codec))
	if c.Recording.Codec == "" {
		c.Recording.Codec = defaults.Recording.Codec
	}
	if c.Recording.FrameRate <= 0 {
		c.Recording.FrameRate = defaults.Recording.FrameRate
	}
	if c.Recording.BitrateKbps <= 0 {
		c.Recording.BitrateKbps = defaults.Recording.BitrateKbps
	}
	if c.Recording.KeyframeInterval <= 0 {
		c.Recording.KeyframeInterval = defaults.Recording.KeyframeInterval
	}
	if c.Recording.MaxLongEdge <= 0 {
		c.Recording.MaxLongEdge = defaults.Recording.MaxLongEdge
	}
}

// NormalizeLogLevel validates and lowercases known logging levels.
func NormalizeLogLevel(level string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return "info", nil
	case "debug":
		return "debug", nil
	case "warn", "warning":
		return "warn", nil
	case "error":
		return "error", nil
	default:
		return "", fmt.Errorf("unsupported log level %q", level)
	}
}

// NormalizeFormat validates and canonicalizes logging format identifiers.
func NormalizeFormat(format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		return "json", nil
	case "console", "text":
		return "console", nil
	default:
		return "", fmt.Errorf("unsupported log format %q", format)
	}
}
