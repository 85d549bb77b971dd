package appconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pkt.systems/framereel/schema"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("load missing config: %v", err)
	}
	if cfg.ConfigVersion != CurrentConfigVersion {
		t.Fatalf("config version %d", cfg.ConfigVersion)
	}
	if cfg.HTTP.Addr != ":27490" {
		t.Fatalf("default addr %q", cfg.HTTP.Addr)
	}
	if cfg.Export.Format != string(schema.FormatGIF) {
		t.Fatalf("default export format %q", cfg.Export.Format)
	}
	if cfg.Capture.PostClickDelayMS != 300 {
		t.Fatalf("default post click delay %d", cfg.Capture.PostClickDelayMS)
	}
}

func TestLoadOverridesAndDefaults(t *testing.T) {
	path := writeConfig(t, `
config_version: 1
store:
  keep_reels: 7
capture:
  marker_color: "#00ff00"
export:
  format: bundle
http:
  addr: ":9999"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Store.KeepReels != 7 {
		t.Fatalf("keep_reels %d", cfg.Store.KeepReels)
	}
	if cfg.Capture.MarkerColor != "#00ff00" {
		t.Fatalf("marker color %q", cfg.Capture.MarkerColor)
	}
	if cfg.Export.Format != string(schema.FormatBundle) {
		t.Fatalf("export format %q", cfg.Export.Format)
	}
	if cfg.HTTP.Addr != ":9999" {
		t.Fatalf("addr %q", cfg.HTTP.Addr)
	}
	// Untouched keys keep their defaults.
	if cfg.Capture.MarkerSize != schema.DefaultMarkerSize {
		t.Fatalf("marker size %d", cfg.Capture.MarkerSize)
	}
	if cfg.Export.MaxColors != 256 {
		t.Fatalf("max colors %d", cfg.Export.MaxColors)
	}
}

func TestLoadRejectsWrongConfigVersion(t *testing.T) {
	path := writeConfig(t, "config_version: 99\n")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "config_version") {
		t.Fatalf("expected a config_version error, got %v", err)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name    string
		content string
		errPart string
	}{
		{
			name:    "bad export format",
			content: "config_version: 1\nexport:\n  format: webm\n",
			errPart: "export.format",
		},
		{
			name:    "max colors out of range",
			content: "config_version: 1\nexport:\n  max_colors: 999\n",
			errPart: "export.max_colors",
		},
		{
			name:    "compression out of range",
			content: "config_version: 1\nexport:\n  compression_level: 12\n",
			errPart: "export.compression_level",
		},
		{
			name:    "negative keep reels",
			content: "config_version: 1\nstore:\n  keep_reels: -1\n",
			errPart: "store.keep_reels",
		},
		{
			name:    "base path is a url",
			content: "config_version: 1\nhttp:\n  base_path: https://example.com/reel\n",
			errPart: "http.base_path",
		},
		{
			name:    "base path with query",
			content: "config_version: 1\nhttp:\n  base_path: /reel?x=1\n",
			errPart: "http.base_path",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.content)
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tc.errPart) {
				t.Fatalf("expected error mentioning %q, got %v", tc.errPart, err)
			}
		})
	}
}

func TestLoadExpandsEnvInPaths(t *testing.T) {
	t.Setenv("FRAMEREEL_TEST_DIR", "/tmp/framereel-test")
	path := writeConfig(t, `
config_version: 1
state_dir: ${FRAMEREEL_TEST_DIR}/state
store:
  path: ${FRAMEREEL_TEST_DIR}/reels.db
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.StateDir != "/tmp/framereel-test/state" {
		t.Fatalf("state dir %q", cfg.StateDir)
	}
	if cfg.Store.Path != "/tmp/framereel-test/reels.db" {
		t.Fatalf("store path %q", cfg.Store.Path)
	}
}

func TestWriteDefaultRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	written, err := WriteDefault(path, false)
	if err != nil {
		t.Fatalf("write default: %v", err)
	}
	if written != path {
		t.Fatalf("written path %q", written)
	}

	if _, err := WriteDefault(path, false); err == nil {
		t.Fatalf("expected overwrite refusal")
	}
	if _, err := WriteDefault(path, true); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load written config: %v", err)
	}
	if cfg.ConfigVersion != CurrentConfigVersion {
		t.Fatalf("config version %d", cfg.ConfigVersion)
	}
}

func TestServiceConfigConversion(t *testing.T) {
	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	cfg.Capture.PostClickDelayMS = 450
	cfg.Capture.Obfuscate = true
	cfg.Obfuscation.Allow = []string{"body/main"}
	cfg.Surface.ID = "left-pane"

	svcCfg := cfg.ServiceConfig()
	if svcCfg.Defaults.PostClickDelay != 450*time.Millisecond {
		t.Fatalf("post click delay %v", svcCfg.Defaults.PostClickDelay)
	}
	if !svcCfg.Defaults.Obfuscate {
		t.Fatalf("obfuscate flag lost")
	}
	if len(svcCfg.Obfuscation.Allow) != 1 || svcCfg.Obfuscation.Allow[0] != "body/main" {
		t.Fatalf("allow list %v", svcCfg.Obfuscation.Allow)
	}
	if svcCfg.SurfaceID != "left-pane" {
		t.Fatalf("surface id %q", svcCfg.SurfaceID)
	}
}
