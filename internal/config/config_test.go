package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "etc", "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Timezone == "" || cfg.Driver != "png" {
		t.Fatalf("defaults = %+v", cfg)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal("config file not created:", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("perm = %o, want 0600", perm)
	}
}

func TestLoadSaveRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.Timezone = "Asia/Seoul"
	cfg.Driver = "inky"
	cfg.Calendars = []CalendarConfig{{URL: "https://example.com/cal.ics", ID: "work", Name: "Work"}}
	cfg.Upload.URL = "https://example.com/upload"
	cfg.Upload.Secret = "s3cret"
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Timezone != "Asia/Seoul" || got.Driver != "inky" {
		t.Fatalf("roundtrip = %+v", got)
	}
	if len(got.Calendars) != 1 || got.Calendars[0].ID != "work" {
		t.Fatalf("calendars = %+v", got.Calendars)
	}
	if got.Upload.Secret != "s3cret" {
		t.Fatalf("secret = %q", got.Upload.Secret)
	}
}

func TestNormalizeFillsZeroValues(t *testing.T) {
	cfg := &Config{Timezone: "UTC"}
	cfg.Normalize()

	if cfg.PeriodicMinutes != 30 || cfg.MinUpdateGapMinutes != 3 || cfg.MinRefreshSeconds != 60 {
		t.Fatalf("cadence defaults = %+v", cfg)
	}
	if cfg.SilentStartHour != 1 || cfg.SilentEndHour != 6 {
		t.Fatalf("silent window = %d..%d", cfg.SilentStartHour, cfg.SilentEndHour)
	}
	if cfg.Driver != "png" {
		t.Fatalf("driver = %q", cfg.Driver)
	}
	if cfg.Upload.Cron == "" || cfg.Upload.MaxAttempts != 3 {
		t.Fatalf("upload = %+v", cfg.Upload)
	}
}

func TestNormalizeRejectsUnknownDriver(t *testing.T) {
	cfg := &Config{Driver: "hdmi"}
	cfg.Normalize()
	if cfg.Driver != "png" {
		t.Fatalf("driver = %q, unknown value must fall back", cfg.Driver)
	}
}

func TestNormalizeEnvSecretWins(t *testing.T) {
	t.Setenv("TIMETABLE_UPLOAD_SECRET", "from-env")

	cfg := DefaultConfig()
	cfg.Upload.Secret = "from-file"
	cfg.Normalize()
	if cfg.Upload.Secret != "from-env" {
		t.Fatalf("secret = %q", cfg.Upload.Secret)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timezone = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("empty timezone accepted")
	}

	cfg = DefaultConfig()
	cfg.SilentStartHour = 25
	if err := cfg.Validate(); err == nil {
		t.Fatal("silent hour 25 accepted")
	}

	cfg = DefaultConfig()
	cfg.Calendars = []CalendarConfig{{ID: "nourl"}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("calendar without url accepted")
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("timezone: [oops"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("malformed yaml accepted")
	}
}
