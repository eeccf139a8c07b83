package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"kalender/internal/holiday"
	"kalender/internal/model"
)

const (
	defaultListen   = "127.0.0.1:8080"
	defaultTimezone = "Asia/Jakarta"
	defaultDatabase = "./var/kalender.db"
	defaultRefresh  = "*/30 * * * *"
	defaultCacheDir = "./var/ics-cache"
	defaultWorkers  = 4
)

// SubscriptionConfig describes a single ICS subscription imported into the store.
type SubscriptionConfig struct {
	// ID prefixes imported UIDs; it must be stable once events were imported.
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url" json:"url"`
	// Division, if set, tags every imported event with this division name.
	Division string `yaml:"division,omitempty" json:"division,omitempty"`
}

// SnapshotConfig controls the headless Chromium PNG capture of the month view.
type SnapshotConfig struct {
	// URL is the page to capture; empty means the local /calendar view.
	URL        string `yaml:"url,omitempty" json:"url,omitempty"`
	Width      int    `yaml:"width" json:"width"`
	Height     int    `yaml:"height" json:"height"`
	TimeoutSec int    `yaml:"timeout_sec" json:"timeout_sec"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone query dates are read in (e.g. "Asia/Jakarta").
	Timezone string `yaml:"timezone" json:"timezone"`

	// Database is the SQLite file path.
	Database string `yaml:"database" json:"database"`

	// RefreshCron is the cron schedule (5 fields) for subscription sync.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// ExpandWorkers bounds concurrent recurrence expansion per query.
	ExpandWorkers int `yaml:"expand_workers" json:"expand_workers"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	// CacheDir holds the ICS HTTP cache.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	Subscriptions []SubscriptionConfig `yaml:"subscriptions" json:"subscriptions"`

	// Holidays are upserted into the store on startup.
	Holidays []model.Holiday `yaml:"holidays" json:"holidays"`

	Snapshot SnapshotConfig `yaml:"snapshot" json:"snapshot"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	c := &Config{
		Holidays: []model.Holiday{
			{
				Name:           "Tahun Baru Masehi",
				CalendarType:   model.CalendarGregorian,
				GregorianMonth: model.IntPtr(1),
				GregorianDay:   model.IntPtr(1),
			},
			{
				Name:         "Tahun Baru Islam",
				CalendarType: model.CalendarHijri,
				HijriMonth:   model.IntPtr(1),
				HijriDay:     model.IntPtr(1),
			},
		},
	}
	c.Normalize()
	return c
}

// Normalize fills in missing/zero values so partially-filled configs still work.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.Database == "" {
		c.Database = defaultDatabase
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefresh
	}
	if c.ExpandWorkers <= 0 {
		c.ExpandWorkers = defaultWorkers
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	if c.Subscriptions == nil {
		c.Subscriptions = []SubscriptionConfig{}
	}
	for i := range c.Subscriptions {
		s := &c.Subscriptions[i]
		if s.ID == "" {
			s.ID = s.Name
		}
		if s.ID == "" {
			s.ID = s.URL
		}
	}
	if c.Holidays == nil {
		c.Holidays = []model.Holiday{}
	}
	if c.Snapshot.Width <= 0 {
		c.Snapshot.Width = 1280
	}
	if c.Snapshot.Height <= 0 {
		c.Snapshot.Height = 960
	}
	if c.Snapshot.TimeoutSec <= 0 {
		c.Snapshot.TimeoutSec = 30
	}
}

// Validate reports configuration errors that defaults cannot repair.
func (c *Config) Validate() error {
	var errs []error
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone %q: %w", c.Timezone, err))
	}
	seen := make(map[string]bool, len(c.Subscriptions))
	for i, s := range c.Subscriptions {
		if s.URL == "" {
			errs = append(errs, fmt.Errorf("subscriptions[%d]: url is required", i))
		}
		if seen[s.ID] {
			errs = append(errs, fmt.Errorf("subscriptions[%d]: duplicate id %q", i, s.ID))
		}
		seen[s.ID] = true
	}
	for i, h := range c.Holidays {
		if strings.TrimSpace(h.Name) == "" {
			errs = append(errs, fmt.Errorf("holidays[%d]: name is required", i))
		}
		if err := holiday.Validate(h); err != nil {
			errs = append(errs, fmt.Errorf("holidays[%d] %q: %w", i, h.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms (creating the parent directory) and returned.
//   - Otherwise the YAML is read and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600 perms.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".kalender-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func (c *Config) Save(path string) error {
	return Save(path, c)
}
