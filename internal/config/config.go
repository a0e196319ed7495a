package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// CalendarConfig describes a single ICS subscription merged into the day's
// timetable alongside the routine.
type CalendarConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for caching and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label; also used as the tag name for
	// events from this source.
	Name string `yaml:"name" json:"name"`
}

// UploadConfig controls the timeline PNG upload.
type UploadConfig struct {
	// URL is the remote endpoint accepting the multipart POST. Empty
	// disables uploading.
	URL string `yaml:"url" json:"url"`
	// Secret is the shared HMAC secret. May also be supplied via the
	// TIMETABLE_UPLOAD_SECRET environment variable, which wins.
	Secret string `yaml:"secret" json:"secret"`
	// Cron is the independent upload cadence (five-field cron spec).
	Cron string `yaml:"cron" json:"cron"`
	// MaxAttempts bounds retries for transient failures per upload.
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`
}

// AbbrevConfig controls the title abbreviation provider.
type AbbrevConfig struct {
	// Endpoint is an OpenAI-compatible chat completions URL. Empty
	// disables the provider; long titles are truncated instead.
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	APIKey   string `yaml:"api_key" json:"api_key"`
	Model    string `yaml:"model" json:"model"`
}

// Config is the top-level daemon configuration.
type Config struct {
	// Timezone is the IANA timezone all scheduling happens in.
	Timezone string `yaml:"timezone" json:"timezone"`

	// LogLevel is one of debug/info/warn/error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// RoutinePath points at the user-authored routine YAML.
	RoutinePath string `yaml:"routine_path" json:"routine_path"`

	// CacheDir holds the ICS cache, abbreviation cache and preview PNG.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// Driver selects the output device: "inky" (SPI panel) or "png"
	// (preview file only).
	Driver string `yaml:"driver" json:"driver"`

	// PeriodicMinutes is the gap-fill refresh cadence between task
	// boundary updates.
	PeriodicMinutes int `yaml:"periodic_minutes" json:"periodic_minutes"`

	// MinUpdateGapMinutes coalesces triggers that would land closer
	// together than this.
	MinUpdateGapMinutes int `yaml:"min_update_gap_minutes" json:"min_update_gap_minutes"`

	// MinRefreshSeconds is the hardware refresh floor enforced by the
	// display adapter for panel health.
	MinRefreshSeconds int `yaml:"min_refresh_seconds" json:"min_refresh_seconds"`

	// SilentStartHour..SilentEndHour is the window during which the
	// panel is left alone and alarms are muted.
	SilentStartHour int `yaml:"silent_start_hour" json:"silent_start_hour"`
	SilentEndHour   int `yaml:"silent_end_hour" json:"silent_end_hour"`

	// Calendars are optional ICS sources merged into the timetable.
	Calendars []CalendarConfig `yaml:"calendars" json:"calendars"`

	Upload UploadConfig `yaml:"upload" json:"upload"`
	Abbrev AbbrevConfig `yaml:"abbrev" json:"abbrev"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Timezone:            "America/New_York",
		LogLevel:            "info",
		RoutinePath:         "/etc/timetable/routines.yaml",
		CacheDir:            "/var/lib/timetable",
		Driver:              "png",
		PeriodicMinutes:     30,
		MinUpdateGapMinutes: 3,
		MinRefreshSeconds:   60,
		SilentStartHour:     1,
		SilentEndHour:       6,
		Calendars:           []CalendarConfig{},
		Upload: UploadConfig{
			Cron:        "*/15 * * * *",
			MaxAttempts: 3,
		},
	}
}

// Normalize fills in missing/zero values so partially-filled configs still
// behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.RoutinePath == "" {
		c.RoutinePath = def.RoutinePath
	}
	if c.CacheDir == "" {
		c.CacheDir = def.CacheDir
	}
	switch c.Driver {
	case "inky", "png":
	default:
		c.Driver = def.Driver
	}
	if c.PeriodicMinutes <= 0 {
		c.PeriodicMinutes = def.PeriodicMinutes
	}
	if c.MinUpdateGapMinutes <= 0 {
		c.MinUpdateGapMinutes = def.MinUpdateGapMinutes
	}
	if c.MinRefreshSeconds <= 0 {
		c.MinRefreshSeconds = def.MinRefreshSeconds
	}
	if c.SilentStartHour == 0 && c.SilentEndHour == 0 {
		c.SilentStartHour = def.SilentStartHour
		c.SilentEndHour = def.SilentEndHour
	}
	if c.Calendars == nil {
		c.Calendars = []CalendarConfig{}
	}
	if c.Upload.Cron == "" {
		c.Upload.Cron = def.Upload.Cron
	}
	if c.Upload.MaxAttempts <= 0 {
		c.Upload.MaxAttempts = def.Upload.MaxAttempts
	}
	if s := os.Getenv("TIMETABLE_UPLOAD_SECRET"); s != "" {
		c.Upload.Secret = s
	}
}

// Validate reports structural problems that Normalize cannot paper over.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Timezone, validation.Required),
		validation.Field(&c.SilentStartHour, validation.Min(0), validation.Max(23)),
		validation.Field(&c.SilentEndHour, validation.Min(0), validation.Max(23)),
		validation.Field(&c.Calendars, validation.By(func(any) error {
			for _, cal := range c.Calendars {
				if cal.URL == "" {
					return errors.New("calendar source with empty url")
				}
			}
			return nil
		})),
	)
}

// Load loads configuration from the given YAML path.
//
// If the file does not exist, a default config is written there (0600,
// parent dirs created) and returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			cfg.Normalize()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration atomically (temp file + rename) with 0600
// permissions, creating the parent directory if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".timetable-config-*.tmp")
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
