package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"academy/internal/policy"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "configs/config.yaml"

type Config struct {
	Server struct {
		Port   int    `yaml:"port"`
		APIKey string `yaml:"api_key"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		Schedule      string `yaml:"schedule"` // cron spec, e.g. "0 3 * * *"
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Redis struct {
		Address            string `yaml:"address"`
		Password           string `yaml:"password"`
		DB                 int    `yaml:"db"`
		ProgressTTLSeconds int    `yaml:"progress_ttl_seconds"`
	} `yaml:"redis"`

	Telegram struct {
		BotToken string `yaml:"bot_token"`
		Debug    bool   `yaml:"debug"`
	} `yaml:"telegram"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Policy PolicyConfig `yaml:"policy"`

	Reminders struct {
		Enabled     bool    `yaml:"enabled"`
		Schedule    string  `yaml:"schedule"` // cron spec
		HoursBefore int     `yaml:"hours_before"`
		RatePerSec  float64 `yaml:"rate_per_second"`
		Burst       int     `yaml:"burst"`
		MaxInFlight int     `yaml:"max_in_flight"`
		// Sent and failed reminder rows older than this are purged.
		CleanupRetentionDays int `yaml:"cleanup_retention_days"`
	} `yaml:"reminders"`

	// path is remembered for hot reload.
	path string
}

// PolicyConfig holds the booking and cancellation rule values.
type PolicyConfig struct {
	CancellationNoticeHours int    `yaml:"cancellation_notice_hours"`
	MinBookingAdvanceHours  int    `yaml:"min_booking_advance_hours"`
	Timezone                string `yaml:"timezone"`
}

// LoadEnv reads a .env file into the process environment when one exists.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.path = path

	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/academy.db"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	if _, err = time.LoadLocation(cfg.Policy.timezoneName()); err != nil {
		return nil, fmt.Errorf("policy.timezone: %w", err)
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Path is the file the config was loaded from.
func (c *Config) Path() string {
	return c.path
}

func (p PolicyConfig) timezoneName() string {
	if p.Timezone == "" {
		return "Local"
	}
	return p.Timezone
}

func (p PolicyConfig) CancellationNotice() time.Duration {
	if p.CancellationNoticeHours <= 0 {
		return 48 * time.Hour
	}
	return time.Duration(p.CancellationNoticeHours) * time.Hour
}

func (p PolicyConfig) MinBookingAdvance() time.Duration {
	if p.MinBookingAdvanceHours <= 0 {
		return 48 * time.Hour
	}
	return time.Duration(p.MinBookingAdvanceHours) * time.Hour
}

// Location falls back to time.Local for an unknown zone; Load has already rejected those.
func (p PolicyConfig) Location() *time.Location {
	loc, err := time.LoadLocation(p.timezoneName())
	if err != nil {
		return time.Local
	}
	return loc
}

// Rules converts the section into policy settings.
func (p PolicyConfig) Rules() policy.Config {
	return policy.Config{
		CancellationNotice: p.CancellationNotice(),
		MinBookingAdvance:  p.MinBookingAdvance(),
		Location:           p.Location(),
	}
}

func (c *Config) ProgressCacheTTL() time.Duration {
	if c.Redis.ProgressTTLSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.Redis.ProgressTTLSeconds) * time.Second
}

func (c *Config) BackupSchedule() string {
	if c.Backup.Schedule == "" {
		return "0 3 * * *"
	}
	return c.Backup.Schedule
}

func (c *Config) BackupRetention() time.Duration {
	if c.Backup.RetentionDays <= 0 {
		return 14 * 24 * time.Hour
	}
	return time.Duration(c.Backup.RetentionDays) * 24 * time.Hour
}

func (c *Config) BackupPath() string {
	if c.Backup.Path == "" {
		return "backups"
	}
	return c.Backup.Path
}

func (c *Config) ReminderSchedule() string {
	if c.Reminders.Schedule == "" {
		return "@every 15m"
	}
	return c.Reminders.Schedule
}

func (c *Config) ReminderHoursBefore() int {
	if c.Reminders.HoursBefore <= 0 {
		return 24
	}
	return c.Reminders.HoursBefore
}

func (c *Config) ReminderCleanupRetention() time.Duration {
	if c.Reminders.CleanupRetentionDays <= 0 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(c.Reminders.CleanupRetentionDays) * 24 * time.Hour
}

// Setting keys that override the policy section at startup.
const (
	SettingMinBookingAdvanceHours  = "BOOKING_MIN_ADVANCE_HOURS"
	SettingCancellationNoticeHours = "CANCELLATION_NOTICE_HOURS"
)

// WithOverrides applies positive integer values from the settings table.
// Unknown keys and malformed values are ignored.
func (p PolicyConfig) WithOverrides(settings map[string]string) PolicyConfig {
	if v, ok := positiveInt(settings[SettingMinBookingAdvanceHours]); ok {
		p.MinBookingAdvanceHours = v
	}
	if v, ok := positiveInt(settings[SettingCancellationNoticeHours]); ok {
		p.CancellationNoticeHours = v
	}
	return p
}

func positiveInt(s string) (int, bool) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}
