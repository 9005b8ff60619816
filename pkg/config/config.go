// Package config loads application settings from an optional YAML file,
// applies environment overrides and validates the result.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"bvgboard/pkg/bvg"
	"bvgboard/pkg/display"
	"bvgboard/pkg/env"
	"bvgboard/pkg/parser"
	"bvgboard/pkg/station"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	DefaultSettingsFile = "bvgboard.yml"
	DefaultInterval     = 15 * time.Second

	DeviceKindle = "kindle"
	DeviceNone   = "none"
)

// AppConfig is everything the board needs besides the station itself
type AppConfig struct {
	API   APIConfig   `yaml:"api"`
	Board BoardConfig `yaml:"board"`
	Loki  LokiConfig  `yaml:"loki"`
}

type APIConfig struct {
	BaseURL string        `yaml:"base_url" validate:"required,url"`
	Timeout time.Duration `yaml:"timeout" validate:"min=1s,max=2m"`
}

type BoardConfig struct {
	Interval    time.Duration `yaml:"interval" validate:"min=1s"`
	TimeMode    string        `yaml:"time_mode" validate:"omitempty,oneof=offset wallclock wall-clock local"`
	Timezone    string        `yaml:"timezone" validate:"omitempty,timezone"`
	StationFile string        `yaml:"station_file" validate:"required"`
	Device      string        `yaml:"device" validate:"oneof=kindle none"`
	Width       int           `yaml:"width" validate:"min=20,max=300"`

	// Flash the e-ink panel every N refreshes; 0 flashes only once at start
	FullRefreshEvery int `yaml:"full_refresh_every" validate:"min=0"`
}

// LokiConfig enables pushing each board to Loki when URL is set
type LokiConfig struct {
	URL      string `yaml:"url" validate:"omitempty,url"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// Default returns the settings used when neither file nor environment say otherwise
func Default() AppConfig {
	return AppConfig{
		API: APIConfig{
			BaseURL: bvg.DefaultBaseURL,
			Timeout: bvg.DefaultTimeout,
		},
		Board: BoardConfig{
			Interval:    DefaultInterval,
			StationFile: station.DefaultPath,
			Device:      DeviceNone,
			Width:       display.DefaultWidth,
		},
	}
}

// SettingsPath returns the YAML file to read, from BVG_SETTINGS_FILE
func SettingsPath() string {
	return env.Get("BVG_SETTINGS_FILE", DefaultSettingsFile)
}

// Load reads path on top of the defaults, then applies BVG_* environment
// variables and validates. A missing file is not an error.
func Load(path string) (AppConfig, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return AppConfig{}, fmt.Errorf("failed to parse settings file %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return AppConfig{}, fmt.Errorf("failed to read settings file %s: %w", path, err)
	}

	applyEnv(&cfg)

	if err := validator.New().Struct(cfg); err != nil {
		return AppConfig{}, fmt.Errorf("invalid settings: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *AppConfig) {
	cfg.API.BaseURL = env.Get("BVG_API_URL", cfg.API.BaseURL)
	cfg.API.Timeout = env.Duration(os.Getenv("BVG_TIMEOUT"), cfg.API.Timeout)

	cfg.Board.Interval = env.Duration(os.Getenv("BVG_INTERVAL"), cfg.Board.Interval)
	cfg.Board.TimeMode = env.Get("BVG_TIME_MODE", cfg.Board.TimeMode)
	cfg.Board.Timezone = env.Get("BVG_TIMEZONE", cfg.Board.Timezone)
	cfg.Board.StationFile = env.Get("BVG_STATION_FILE", cfg.Board.StationFile)
	cfg.Board.Device = env.Get("BVG_DEVICE", cfg.Board.Device)
	cfg.Board.Width = env.Int(os.Getenv("BVG_DISPLAY_WIDTH"), cfg.Board.Width)
	cfg.Board.FullRefreshEvery = env.Int(os.Getenv("BVG_FULL_REFRESH_EVERY"), cfg.Board.FullRefreshEvery)

	cfg.Loki.URL = env.Get("BVG_LOKI_URL", cfg.Loki.URL)
	cfg.Loki.User = env.Get("BVG_LOKI_USER", cfg.Loki.User)
	cfg.Loki.Password = env.Get("BVG_LOKI_PASSWORD", cfg.Loki.Password)
}

// ParsedTimeMode converts the validated time mode string
func (b BoardConfig) ParsedTimeMode() parser.TimeMode {
	mode, _ := parser.ParseTimeMode(b.TimeMode)
	return mode
}

// Location resolves Timezone, falling back to the system zone
func (b BoardConfig) Location() *time.Location {
	if b.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// LokiEnabled reports whether boards should also be pushed to Loki
func (c AppConfig) LokiEnabled() bool {
	return c.Loki.URL != ""
}
