package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"tablebook/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Restaurant RestaurantConfig `yaml:"restaurant"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	Port      int                `yaml:"port"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// RestaurantConfig drives the slot grid and the booking rules. Durations
// are yaml strings parsed with time.ParseDuration.
type RestaurantConfig struct {
	HorizonDays    int                            `yaml:"horizon_days"`
	MinAdvance     string                         `yaml:"min_advance"`
	MaxAdvanceDays int                            `yaml:"max_advance_days"`
	SweepInterval  string                         `yaml:"sweep_interval"`
	Hours          map[string]models.OpeningHours `yaml:"hours"`
}

func (r RestaurantConfig) MinAdvanceDuration() time.Duration {
	if d, err := time.ParseDuration(r.MinAdvance); err == nil && d > 0 {
		return d
	}
	return models.DefaultMinAdvance
}

func (r RestaurantConfig) SweepIntervalDuration() time.Duration {
	if d, err := time.ParseDuration(r.SweepInterval); err == nil && d > 0 {
		return d
	}
	return models.DefaultSweepInterval
}

// HoursFor returns the opening hours for the weekday of date.
func (r RestaurantConfig) HoursFor(date time.Time) models.OpeningHours {
	return r.Hours[strings.ToLower(date.Weekday().String())]
}

func Load(configPath string) (*Config, error) {
	// .env переопределяет плейсхолдеры в YAML
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	for day, h := range c.Restaurant.Hours {
		if h.Closed() {
			continue
		}
		open, err := time.Parse("15:04", h.Open)
		if err != nil {
			return fmt.Errorf("invalid open time for %s: %q", day, h.Open)
		}
		cls, err := time.Parse("15:04", h.Close)
		if err != nil {
			return fmt.Errorf("invalid close time for %s: %q", day, h.Close)
		}
		if !open.Before(cls) {
			return fmt.Errorf("open time must precede close time for %s", day)
		}
	}

	return nil
}

// ValidateTables rejects duplicate or zero table numbers and non-positive
// seat counts before the grid is seeded from them.
func ValidateTables(tables []models.Table) error {
	numbers := make(map[int64]bool)
	for _, table := range tables {
		if table.Number == 0 {
			return errors.New("table with number 0 is not allowed")
		}
		if numbers[table.Number] {
			return fmt.Errorf("duplicate table number found: %d", table.Number)
		}
		if table.Seats <= 0 {
			return fmt.Errorf("table %d has non-positive seat count", table.Number)
		}
		numbers[table.Number] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if !c.API.Auth.Enabled && c.API.Enabled {
		c.API.Auth.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}

	if c.Restaurant.HorizonDays == 0 {
		c.Restaurant.HorizonDays = models.DefaultHorizonDays
	}
	if c.Restaurant.MaxAdvanceDays == 0 {
		c.Restaurant.MaxAdvanceDays = models.DefaultMaxAdvanceDays
	}
	if c.Restaurant.Hours == nil {
		c.Restaurant.Hours = defaultHours()
	}
}

func defaultHours() map[string]models.OpeningHours {
	hours := make(map[string]models.OpeningHours, 7)
	for _, day := range []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"} {
		hours[day] = models.OpeningHours{Open: "10:00", Close: "22:00"}
	}
	return hours
}
