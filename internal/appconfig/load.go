package appconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"pkt.systems/framereel/schema"
)

// Load reads configuration from the provided path. If path is empty, uses DefaultConfigPath.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("state_dir", cfg.StateDir)
	v.SetDefault("store.path", cfg.Store.Path)
	v.SetDefault("store.save_chunk_size", cfg.Store.SaveChunkSize)
	v.SetDefault("store.keep_reels", cfg.Store.KeepReels)
	v.SetDefault("capture.marker_size", cfg.Capture.MarkerSize)
	v.SetDefault("capture.marker_color", cfg.Capture.MarkerColor)
	v.SetDefault("capture.post_click_delay_ms", cfg.Capture.PostClickDelayMS)
	v.SetDefault("capture.settle_interval_ms", cfg.Capture.SettleIntervalMS)
	v.SetDefault("capture.max_capture_time_ms", cfg.Capture.MaxCaptureTimeMS)
	v.SetDefault("capture.scale", cfg.Capture.Scale)
	v.SetDefault("capture.max_width", cfg.Capture.MaxWidth)
	v.SetDefault("capture.max_height", cfg.Capture.MaxHeight)
	v.SetDefault("capture.obfuscate", cfg.Capture.Obfuscate)
	v.SetDefault("capture.promote_last_frame", cfg.Capture.PromoteLastFrame)
	v.SetDefault("export.format", cfg.Export.Format)
	v.SetDefault("export.max_colors", cfg.Export.MaxColors)
	v.SetDefault("export.dither", cfg.Export.Dither)
	v.SetDefault("export.compression_level", cfg.Export.CompressionLevel)
	v.SetDefault("obfuscation.mask_by_default", cfg.Obfuscation.MaskByDefault)
	v.SetDefault("obfuscation.allow", cfg.Obfuscation.Allow)
	v.SetDefault("obfuscation.deny", cfg.Obfuscation.Deny)
	v.SetDefault("surface.id", cfg.Surface.ID)
	v.SetDefault("surface.url", cfg.Surface.URL)
	v.SetDefault("surface.viewport_width", cfg.Surface.ViewportWidth)
	v.SetDefault("surface.viewport_height", cfg.Surface.ViewportHeight)
	v.SetDefault("surface.headless", cfg.Surface.Headless)
	v.SetDefault("http.addr", cfg.HTTP.Addr)
	v.SetDefault("http.base_path", cfg.HTTP.BasePath)

	// A missing config file means defaults; any other read error is fatal.
	configLoaded := false
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return Config{}, err
		}
	} else {
		configLoaded = true
	}

	if configLoaded {
		if !v.IsSet("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	expandConfigEnv(&cfg)
	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	switch schema.ExportFormat(cfg.Export.Format) {
	case schema.FormatGIF, schema.FormatAPNG, schema.FormatBundle:
	default:
		return fmt.Errorf("unsupported export.format %q", cfg.Export.Format)
	}
	if cfg.Export.MaxColors < 2 || cfg.Export.MaxColors > 256 {
		return fmt.Errorf("export.max_colors must be in [2, 256]")
	}
	if cfg.Export.CompressionLevel < 0 || cfg.Export.CompressionLevel > 9 {
		return fmt.Errorf("export.compression_level must be in [0, 9]")
	}
	if cfg.Store.KeepReels < 0 {
		return fmt.Errorf("store.keep_reels must not be negative")
	}
	basePath := strings.TrimSpace(cfg.HTTP.BasePath)
	if basePath != "" {
		if strings.Contains(basePath, "://") {
			return fmt.Errorf("http.base_path must be a path prefix, not a URL")
		}
		if strings.ContainsAny(basePath, "?#") {
			return fmt.Errorf("http.base_path must not include query or fragment")
		}
	}
	return nil
}

func expandConfigEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.StateDir = expandEnv(cfg.StateDir)
	cfg.Store.Path = expandEnv(cfg.Store.Path)
	cfg.Surface.URL = expandEnv(cfg.Surface.URL)
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if key == "" {
			return ""
		}
		if val, ok := lookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

func lookupEnv(key string) (string, bool) {
	if val, ok := os.LookupEnv(key); ok {
		return val, true
	}
	switch key {
	case "UID":
		return fmt.Sprintf("%d", os.Getuid()), true
	case "GID":
		return fmt.Sprintf("%d", os.Getgid()), true
	}
	return "", false
}

// WriteDefault writes the default config to the target path.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
