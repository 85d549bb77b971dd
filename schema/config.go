package schema

import (
	"errors"
	"os"
	"path/filepath"
	"time"
)

// ServiceConfig defines defaults and limits for the recorder service.
type ServiceConfig struct {
	StateDir string
	// StorePath is the reel store file. Defaults to reels.db under StateDir.
	StorePath string
	// Defaults is the settings snapshot copied into new reels.
	Defaults ReelSettings
	// SaveChunkSize bounds the per-transaction frame count for bulk writes.
	SaveChunkSize int
	// KeepReels caps stored reels; older reels are evicted FIFO after each
	// save. Zero disables automatic eviction.
	KeepReels int
	// SurfaceID labels the originating surface in derived reel metadata.
	SurfaceID SurfaceID
	// Obfuscation is the masking policy applied when a reel's settings
	// enable obfuscation.
	Obfuscation ObfuscationPolicy
}

// ObfuscationPolicy selects which surface nodes are masked before a render.
// Explicit per-node markers always win; Deny beats Allow so broad Allow
// entries can carve out exceptions.
type ObfuscationPolicy struct {
	MaskByDefault bool     `json:"mask_by_default"`
	Allow         []string `json:"allow,omitempty"`
	Deny          []string `json:"deny,omitempty"`
}

// Default capture timing and marker settings.
const (
	DefaultPostClickDelay = 300 * time.Millisecond
	DefaultSettleInterval = 150 * time.Millisecond
	DefaultMaxCaptureTime = 5 * time.Second
	DefaultMarkerSize     = 24
	DefaultMarkerColor    = "#ff4081"
	DefaultSaveChunkSize  = 10
)

// NormalizeServiceConfig applies defaults and validates the config.
func NormalizeServiceConfig(cfg ServiceConfig) (ServiceConfig, error) {
	if cfg.StateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ServiceConfig{}, err
		}
		cfg.StateDir = filepath.Join(home, ".framereel", "state")
	}
	if cfg.StorePath == "" {
		cfg.StorePath = filepath.Join(cfg.StateDir, "reels.db")
	}
	cfg.Defaults = NormalizeReelSettings(cfg.Defaults)
	if cfg.SaveChunkSize <= 0 {
		cfg.SaveChunkSize = DefaultSaveChunkSize
	}
	if cfg.KeepReels < 0 {
		return ServiceConfig{}, errors.New("keep reels must not be negative")
	}
	return cfg, nil
}

// NormalizeReelSettings fills zero-valued settings with defaults.
func NormalizeReelSettings(s ReelSettings) ReelSettings {
	if s.MarkerSize <= 0 {
		s.MarkerSize = DefaultMarkerSize
	}
	if s.MarkerColor == "" {
		s.MarkerColor = DefaultMarkerColor
	}
	if s.ExportFormat == "" {
		s.ExportFormat = FormatGIF
	}
	if s.PostClickDelay <= 0 {
		s.PostClickDelay = DefaultPostClickDelay
	}
	if s.SettleInterval <= 0 {
		s.SettleInterval = DefaultSettleInterval
	}
	if s.MaxCaptureTime <= 0 {
		s.MaxCaptureTime = DefaultMaxCaptureTime
	}
	if s.Scale <= 0 {
		s.Scale = 1.0
	}
	return s
}
