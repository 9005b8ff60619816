package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"bvgboard/pkg/bvg"
	"bvgboard/pkg/parser"
	"bvgboard/pkg/station"
)

func writeSettings(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bvgboard.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write settings: %v", err)
	}
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.BaseURL != bvg.DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", cfg.API.BaseURL, bvg.DefaultBaseURL)
	}
	if cfg.API.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", cfg.API.Timeout)
	}
	if cfg.Board.Interval != 15*time.Second {
		t.Errorf("Interval = %v, want 15s", cfg.Board.Interval)
	}
	if cfg.Board.StationFile != station.DefaultPath {
		t.Errorf("StationFile = %q, want %q", cfg.Board.StationFile, station.DefaultPath)
	}
	if cfg.Board.ParsedTimeMode() != parser.TimeModeOffset {
		t.Errorf("time mode = %v, want offset", cfg.Board.ParsedTimeMode())
	}
	if cfg.LokiEnabled() {
		t.Error("Loki should be disabled by default")
	}
}

func TestLoad_File(t *testing.T) {
	path := writeSettings(t, `
api:
  base_url: http://localhost:3000
  timeout: 5s
board:
  interval: 30s
  time_mode: wallclock
  timezone: UTC
  station_file: /tmp/station.txt
  device: kindle
  width: 80
  full_refresh_every: 20
loki:
  url: http://loki:3100
  user: board
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.BaseURL != "http://localhost:3000" || cfg.API.Timeout != 5*time.Second {
		t.Errorf("API = %+v", cfg.API)
	}
	if cfg.Board.Interval != 30*time.Second {
		t.Errorf("Interval = %v, want 30s", cfg.Board.Interval)
	}
	if cfg.Board.ParsedTimeMode() != parser.TimeModeWallClock {
		t.Errorf("time mode = %v, want wallclock", cfg.Board.ParsedTimeMode())
	}
	if cfg.Board.Location() != time.UTC {
		t.Errorf("Location() = %v, want UTC", cfg.Board.Location())
	}
	if cfg.Board.Device != DeviceKindle || cfg.Board.Width != 80 || cfg.Board.FullRefreshEvery != 20 {
		t.Errorf("Board = %+v", cfg.Board)
	}
	if !cfg.LokiEnabled() || cfg.Loki.User != "board" {
		t.Errorf("Loki = %+v", cfg.Loki)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeSettings(t, "board:\n  interval: 30s\n  width: 80\n")

	t.Setenv("BVG_INTERVAL", "45s")
	t.Setenv("BVG_DISPLAY_WIDTH", "100")
	t.Setenv("BVG_TIMEOUT", "2500")
	t.Setenv("BVG_STATION_FILE", "/data/station.txt")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Board.Interval != 45*time.Second {
		t.Errorf("Interval = %v, want 45s", cfg.Board.Interval)
	}
	if cfg.Board.Width != 100 {
		t.Errorf("Width = %d, want 100", cfg.Board.Width)
	}
	if cfg.API.Timeout != 2500*time.Millisecond {
		t.Errorf("Timeout = %v, want 2.5s", cfg.API.Timeout)
	}
	if cfg.Board.StationFile != "/data/station.txt" {
		t.Errorf("StationFile = %q", cfg.Board.StationFile)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     map[string]string
	}{
		{name: "bad yaml", content: "api: [unclosed"},
		{name: "bad url", content: "api:\n  base_url: not a url\n"},
		{name: "interval too short", content: "board:\n  interval: 100ms\n"},
		{name: "unknown device", content: "board:\n  device: toaster\n"},
		{name: "unknown time mode", content: "board:\n  time_mode: utc\n"},
		{name: "bad timezone", content: "board:\n  timezone: Mars/Olympus_Mons\n"},
		{name: "narrow", content: "", env: map[string]string{"BVG_DISPLAY_WIDTH": "5"}},
		{name: "negative full refresh", content: "board:\n  full_refresh_every: -1\n"},
		{name: "bad loki url", content: "", env: map[string]string{"BVG_LOKI_URL": "loki"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(writeSettings(t, tt.content)); err == nil {
				t.Error("Load() expected error")
			}
		})
	}
}

func TestSettingsPath(t *testing.T) {
	if got := SettingsPath(); got != DefaultSettingsFile {
		t.Errorf("SettingsPath() = %q, want %q", got, DefaultSettingsFile)
	}
	t.Setenv("BVG_SETTINGS_FILE", "/etc/bvgboard.yml")
	if got := SettingsPath(); got != "/etc/bvgboard.yml" {
		t.Errorf("SettingsPath() = %q", got)
	}
}

func TestLocation_FallsBackToLocal(t *testing.T) {
	if got := (BoardConfig{}).Location(); got != time.Local {
		t.Errorf("Location() = %v, want Local", got)
	}
}
