package appconfig

import (
	"os"
	"path/filepath"
	"time"

	"pkt.systems/framereel/schema"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int               `mapstructure:"config_version" yaml:"config_version"`
	StateDir      string            `mapstructure:"state_dir" yaml:"state_dir"`
	Store         StoreConfig       `mapstructure:"store" yaml:"store"`
	Capture       CaptureConfig     `mapstructure:"capture" yaml:"capture"`
	Export        ExportConfig      `mapstructure:"export" yaml:"export"`
	Obfuscation   ObfuscationConfig `mapstructure:"obfuscation" yaml:"obfuscation"`
	Surface       SurfaceConfig     `mapstructure:"surface" yaml:"surface"`
	HTTP          HTTPConfig        `mapstructure:"http" yaml:"http"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// StoreConfig controls the reel database.
type StoreConfig struct {
	Path          string `mapstructure:"path" yaml:"path"`
	SaveChunkSize int    `mapstructure:"save_chunk_size" yaml:"save_chunk_size"`
	// KeepReels caps stored reels; zero disables automatic eviction.
	KeepReels int `mapstructure:"keep_reels" yaml:"keep_reels"`
}

// CaptureConfig holds the default reel settings snapshot.
type CaptureConfig struct {
	MarkerSize        int     `mapstructure:"marker_size" yaml:"marker_size"`
	MarkerColor       string  `mapstructure:"marker_color" yaml:"marker_color"`
	PostClickDelayMS  int     `mapstructure:"post_click_delay_ms" yaml:"post_click_delay_ms"`
	SettleIntervalMS  int     `mapstructure:"settle_interval_ms" yaml:"settle_interval_ms"`
	MaxCaptureTimeMS  int     `mapstructure:"max_capture_time_ms" yaml:"max_capture_time_ms"`
	Scale             float64 `mapstructure:"scale" yaml:"scale"`
	MaxWidth          int     `mapstructure:"max_width" yaml:"max_width"`
	MaxHeight         int     `mapstructure:"max_height" yaml:"max_height"`
	Obfuscate         bool    `mapstructure:"obfuscate" yaml:"obfuscate"`
	PromoteLastFrame  bool    `mapstructure:"promote_last_frame" yaml:"promote_last_frame"`
}

// ExportConfig tunes the encoders and default artifact format.
type ExportConfig struct {
	Format           string `mapstructure:"format" yaml:"format"`
	MaxColors        int    `mapstructure:"max_colors" yaml:"max_colors"`
	Dither           bool   `mapstructure:"dither" yaml:"dither"`
	CompressionLevel int    `mapstructure:"compression_level" yaml:"compression_level"`
}

// ObfuscationConfig is the masking policy applied when capture obfuscation
// is enabled.
type ObfuscationConfig struct {
	MaskByDefault bool     `mapstructure:"mask_by_default" yaml:"mask_by_default"`
	Allow         []string `mapstructure:"allow" yaml:"allow"`
	Deny          []string `mapstructure:"deny" yaml:"deny"`
}

// SurfaceConfig configures the rendered surface backend.
type SurfaceConfig struct {
	ID             string `mapstructure:"id" yaml:"id"`
	URL            string `mapstructure:"url" yaml:"url"`
	ViewportWidth  int    `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight int    `mapstructure:"viewport_height" yaml:"viewport_height"`
	Headless       bool   `mapstructure:"headless" yaml:"headless"`
}

// HTTPConfig configures the HTTP command server.
type HTTPConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	BasePath string `mapstructure:"base_path" yaml:"base_path"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	return Config{
		ConfigVersion: CurrentConfigVersion,
		StateDir:      filepath.Join(home, ".framereel", "state"),
		Store: StoreConfig{
			Path:          filepath.Join(home, ".framereel", "state", "reels.db"),
			SaveChunkSize: schema.DefaultSaveChunkSize,
			KeepReels:     0,
		},
		Capture: CaptureConfig{
			MarkerSize:       schema.DefaultMarkerSize,
			MarkerColor:      schema.DefaultMarkerColor,
			PostClickDelayMS: int(schema.DefaultPostClickDelay / time.Millisecond),
			SettleIntervalMS: int(schema.DefaultSettleInterval / time.Millisecond),
			MaxCaptureTimeMS: int(schema.DefaultMaxCaptureTime / time.Millisecond),
			Scale:            1.0,
		},
		Export: ExportConfig{
			Format:           string(schema.FormatGIF),
			MaxColors:        256,
			Dither:           false,
			CompressionLevel: 6,
		},
		Obfuscation: ObfuscationConfig{
			MaskByDefault: true,
		},
		Surface: SurfaceConfig{
			ID:             "primary",
			URL:            "",
			ViewportWidth:  1280,
			ViewportHeight: 800,
			Headless:       true,
		},
		HTTP: HTTPConfig{
			Addr:     ":27490",
			BasePath: "",
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".framereel", "config.yaml"), nil
}

// ServiceConfig converts the application config into the recorder service
// configuration.
func (c Config) ServiceConfig() schema.ServiceConfig {
	return schema.ServiceConfig{
		StateDir:      c.StateDir,
		StorePath:     c.Store.Path,
		SaveChunkSize: c.Store.SaveChunkSize,
		KeepReels:     c.Store.KeepReels,
		SurfaceID:     schema.SurfaceID(c.Surface.ID),
		Defaults: schema.ReelSettings{
			MarkerSize:       c.Capture.MarkerSize,
			MarkerColor:      c.Capture.MarkerColor,
			ExportFormat:     schema.ExportFormat(c.Export.Format),
			PostClickDelay:   time.Duration(c.Capture.PostClickDelayMS) * time.Millisecond,
			SettleInterval:   time.Duration(c.Capture.SettleIntervalMS) * time.Millisecond,
			MaxCaptureTime:   time.Duration(c.Capture.MaxCaptureTimeMS) * time.Millisecond,
			Scale:            c.Capture.Scale,
			MaxWidth:         c.Capture.MaxWidth,
			MaxHeight:        c.Capture.MaxHeight,
			Obfuscate:        c.Capture.Obfuscate,
			PromoteLastFrame: c.Capture.PromoteLastFrame,
		},
		Obfuscation: schema.ObfuscationPolicy{
			MaskByDefault: c.Obfuscation.MaskByDefault,
			Allow:         append([]string(nil), c.Obfuscation.Allow...),
			Deny:          append([]string(nil), c.Obfuscation.Deny...),
		},
	}
}
