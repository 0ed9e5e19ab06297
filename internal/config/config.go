package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"
	_ "time/tzdata" // event zones must load on hosts without zoneinfo

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Defaults applied by Normalize.
const (
	DefaultListen    = "127.0.0.1:8080"
	DefaultTimezone  = "Asia/Singapore"
	DefaultStartHour = 9
	DefaultWatchCron = "*/5 * * * *"
	DefaultCalendar  = "primary"
	DefaultInboxDir  = "./var/inbox"
	DefaultOutputDir = "./var/out"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen" validate:"required,hostname_port"`

	// Timezone is the fixed IANA zone events are placed in.
	Timezone string `yaml:"timezone" json:"timezone" validate:"required,timezone"`

	// ReferenceYear is the year week expressions start in. 0 means the
	// current year, resolved once at startup by the caller.
	ReferenceYear int `yaml:"reference_year" json:"reference_year" validate:"gte=0,lte=9999"`

	// StartHour is the local hour events start at.
	StartHour int `yaml:"start_hour" json:"start_hour" validate:"gte=0,lte=23"`

	// Recurrence repeats exported events across their week range:
	// "none" (default), "daily" or "weekly".
	Recurrence string `yaml:"recurrence" json:"recurrence" validate:"oneof=none daily weekly"`

	// InboxDir holds converted syllabus text files (*.txt) for watch mode.
	InboxDir string `yaml:"inbox_dir" json:"inbox_dir"`

	// OutputDir receives <name>.json and <name>.ics per processed document.
	OutputDir string `yaml:"output_dir" json:"output_dir"`

	// WatchCron is the cron schedule on which the inbox is scanned.
	WatchCron string `yaml:"watch_cron" json:"watch_cron" validate:"required,cron"`

	// Workers bounds how many documents are processed at once.
	Workers int `yaml:"workers" json:"workers" validate:"gte=1,lte=64"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level" validate:"oneof=debug info warn error"`

	// CalendarID and CredentialsFile configure publishing to Google
	// Calendar. Publishing is disabled without credentials.
	CalendarID      string `yaml:"calendar_id" json:"calendar_id"`
	CredentialsFile string `yaml:"credentials_file,omitempty" json:"credentials_file,omitempty"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:     DefaultListen,
		Timezone:   DefaultTimezone,
		StartHour:  DefaultStartHour,
		Recurrence: "none",
		InboxDir:   DefaultInboxDir,
		OutputDir:  DefaultOutputDir,
		WatchCron:  DefaultWatchCron,
		Workers:    4,
		LogLevel:   "info",
		CalendarID: DefaultCalendar,
	}
}

// Normalize fills in missing/zero values so that partially-filled configs
// still behave correctly. StartHour 0 is a valid hour and is kept.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}
	if c.Recurrence == "" {
		c.Recurrence = "none"
	}
	if c.InboxDir == "" {
		c.InboxDir = DefaultInboxDir
	}
	if c.OutputDir == "" {
		c.OutputDir = DefaultOutputDir
	}
	if c.WatchCron == "" {
		c.WatchCron = DefaultWatchCron
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.CalendarID == "" {
		c.CalendarID = DefaultCalendar
	}
}

// ApplyEnv overrides file values with SYLCAL_* environment variables.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("SYLCAL_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("SYLCAL_TIMEZONE"); v != "" {
		c.Timezone = v
	}
	if v := os.Getenv("SYLCAL_REFERENCE_YEAR"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SYLCAL_REFERENCE_YEAR: %w", err)
		}
		c.ReferenceYear = y
	}
	if v := os.Getenv("SYLCAL_CREDENTIALS_FILE"); v != "" {
		c.CredentialsFile = v
	}
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("cron", func(fl validator.FieldLevel) bool {
		_, err := cron.ParseStandard(fl.Field().String())
		return err == nil
	})
	return v
}

// Validate checks field ranges and formats.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Location loads the configured event zone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// Year returns ReferenceYear, or the year of now in the event zone when
// it is unset.
func (c *Config) Year(now time.Time) int {
	if c.ReferenceYear > 0 {
		return c.ReferenceYear
	}
	if loc, err := c.Location(); err == nil {
		now = now.In(loc)
	}
	return now.Year()
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
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

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions, creating the parent directory (0700) if needed.
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

	tmp, err := os.CreateTemp(dir, ".sylcal-config-*.tmp")
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
