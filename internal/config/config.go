package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sdpower/ccledger/internal/types"
)

const (
	DefaultWorkers           = 10
	DefaultActiveHoursPerDay = 9
	DefaultTrendThreshold    = 0.05
)

// Settings holds user configuration. Zero values mean "use the default".
type Settings struct {
	DataPath          string  `yaml:"data_path"`
	Timezone          string  `yaml:"timezone"`
	Workers           int     `yaml:"workers"`
	ActiveHoursPerDay float64 `yaml:"active_hours_per_day"`
	TokenLimit        int64   `yaml:"token_limit"`
	CostLimit         float64 `yaml:"cost_limit"`
	TrendThreshold    float64 `yaml:"trend_threshold"`
	PricingOverrides  string  `yaml:"pricing_overrides"`
	CachePath         string  `yaml:"cache_path"`
	CacheTTL          string  `yaml:"cache_ttl"` // Go duration, e.g. "72h"
}

func Default() *Settings {
	return &Settings{
		Workers:           DefaultWorkers,
		ActiveHoursPerDay: DefaultActiveHoursPerDay,
		TrendThreshold:    DefaultTrendThreshold,
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/ccledger/config.yaml, falling back
// to ~/.config/ccledger/config.yaml.
func DefaultPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "ccledger", "config.yaml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "ccledger", "config.yaml"), nil
}

// Load reads settings from path. A missing file yields the defaults.
func Load(path string) (*Settings, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("%w: read %s: %v", types.ErrFatalConfig, path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", types.ErrInvalidConfig, path, err)
	}
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes settings as YAML, creating the parent directory.
func Save(path string, cfg *Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func (s *Settings) fillDefaults() {
	if s.Workers == 0 {
		s.Workers = DefaultWorkers
	}
	if s.ActiveHoursPerDay == 0 {
		s.ActiveHoursPerDay = DefaultActiveHoursPerDay
	}
	if s.TrendThreshold == 0 {
		s.TrendThreshold = DefaultTrendThreshold
	}
}

func (s *Settings) Validate() error {
	if s.Workers < 0 {
		return types.ValidationError{Field: "workers", Message: "must not be negative"}
	}
	if s.ActiveHoursPerDay < 0 || s.ActiveHoursPerDay > 24 {
		return types.ValidationError{Field: "active_hours_per_day", Message: "must be between 0 and 24"}
	}
	if s.TokenLimit < 0 {
		return types.ValidationError{Field: "token_limit", Message: "must not be negative"}
	}
	if s.CostLimit < 0 {
		return types.ValidationError{Field: "cost_limit", Message: "must not be negative"}
	}
	if s.TrendThreshold < 0 || s.TrendThreshold >= 1 {
		return types.ValidationError{Field: "trend_threshold", Message: "must be in [0, 1)"}
	}
	if _, err := s.CacheTTLDuration(); err != nil {
		return err
	}
	if _, err := s.Location(); err != nil {
		return err
	}
	return nil
}

// CacheTTLDuration parses CacheTTL. Empty means the pricing cache default.
func (s *Settings) CacheTTLDuration() (time.Duration, error) {
	if s.CacheTTL == "" {
		return 0, nil
	}
	ttl, err := time.ParseDuration(s.CacheTTL)
	if err != nil || ttl <= 0 {
		return 0, types.ValidationError{Field: "cache_ttl", Message: fmt.Sprintf("want a positive duration, got %q", s.CacheTTL)}
	}
	return ttl, nil
}

// Location resolves Timezone. Empty means the local zone.
func (s *Settings) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, types.ValidationError{Field: "timezone", Message: err.Error()}
	}
	return loc, nil
}

// ResolveDataPath returns DataPath or, when unset, the default Claude data
// directory.
func (s *Settings) ResolveDataPath() string {
	if s.DataPath != "" {
		return s.DataPath
	}
	return DefaultDataPath()
}

// DefaultDataPath checks CLAUDE_CONFIG_DIR, then ~/.claude/projects, then
// ~/.config/claude/projects.
func DefaultDataPath() string {
	if dir := os.Getenv("CLAUDE_CONFIG_DIR"); dir != "" {
		return dir
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	claudePath := filepath.Join(home, ".claude", "projects")
	if _, err := os.Stat(claudePath); err == nil {
		return claudePath
	}

	configPath := filepath.Join(home, ".config", "claude", "projects")
	if _, err := os.Stat(configPath); err == nil {
		return configPath
	}

	return claudePath
}
