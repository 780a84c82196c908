package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	API struct {
		Enabled bool `yaml:"enabled"`
		Port    int  `yaml:"port"`
	} `yaml:"api"`

	Booking struct {
		MinAdvanceMinutes int `yaml:"min_advance_minutes"`
		MaxAdvanceDays    int `yaml:"max_advance_days"`
	} `yaml:"booking"`

	Scheduling struct {
		Timezone string `yaml:"timezone"`
		// Cron is a cron-style schedule for the horizon-extension job
		// (e.g. "0 3 * * *").
		Cron            string  `yaml:"cron"`
		HorizonDays     int     `yaml:"horizon_days"`
		SeriesPerSecond float64 `yaml:"series_per_second"`
		LockTTLSeconds  int     `yaml:"lock_ttl_seconds"`
	} `yaml:"scheduling"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
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

	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/bandroom.db"
	}
	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	if cfg.Scheduling.Timezone == "" {
		cfg.Scheduling.Timezone = "UTC"
	}
	if cfg.Scheduling.Cron == "" {
		cfg.Scheduling.Cron = "0 3 * * *"
	}
	if cfg.Scheduling.HorizonDays <= 0 {
		cfg.Scheduling.HorizonDays = 90
	}
	if cfg.Scheduling.SeriesPerSecond <= 0 {
		cfg.Scheduling.SeriesPerSecond = 5
	}
	if cfg.Scheduling.LockTTLSeconds <= 0 {
		cfg.Scheduling.LockTTLSeconds = 120
	}
	if cfg.Booking.MaxAdvanceDays <= 0 {
		cfg.Booking.MaxAdvanceDays = 60
	}

	return &cfg, nil
}

// BookingMinAdvance returns the minimum lead time for a reservation.
func (c *Config) BookingMinAdvance() time.Duration {
	return time.Duration(c.Booking.MinAdvanceMinutes) * time.Minute
}

// BookingMaxAdvance returns how far ahead reservations may be placed.
func (c *Config) BookingMaxAdvance() time.Duration {
	return time.Duration(c.Booking.MaxAdvanceDays) * 24 * time.Hour
}

// Location resolves the configured scheduling timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Scheduling.Timezone)
}
