package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wellness-kit/order-intake/internal/geo"
)

// Storage backends.
const (
	StoragePostgres = "postgres"
	StorageRemote   = "remote"
)

// Config holds all service configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	JWT      JWTConfig      `yaml:"jwt"`
	Upload   UploadConfig   `yaml:"upload"`
	Geofence GeofenceConfig `yaml:"geofence"`
	Geocoder GeocoderConfig `yaml:"geocoder"`
	Storage  StorageConfig  `yaml:"storage"`
	Session  SessionConfig  `yaml:"session"`
}

type ServerConfig struct {
	Port         string        `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int    `yaml:"max_conns"`
}

type JWTConfig struct {
	Secret      string `yaml:"secret"`
	Issuer      string `yaml:"issuer"`
	ExpiryHours int    `yaml:"expiry_hours"`
}

type UploadConfig struct {
	MaxFileSize  int64    `yaml:"max_file_size"` // bytes
	AllowedTypes []string `yaml:"allowed_types"`
	PageSize     int      `yaml:"page_size"`
}

// GeofenceConfig is the bulk-path acceptance box plus the jurisdiction name
// the single-order path must confirm through the geocoder.
type GeofenceConfig struct {
	Bounds      geo.Bounds `yaml:"bounds"`
	TargetState string     `yaml:"target_state"`
}

type GeocoderConfig struct {
	BaseURL   string        `yaml:"base_url"`
	UserAgent string        `yaml:"user_agent"`
	Timeout   time.Duration `yaml:"timeout"`
}

type StorageConfig struct {
	Backend   string        `yaml:"backend"` // postgres | remote
	RemoteURL string        `yaml:"remote_url"`
	Token     string        `yaml:"token"`
	Timeout   time.Duration `yaml:"timeout"`
}

type SessionConfig struct {
	IdleTTL       time.Duration `yaml:"idle_ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	cfg := defaults()
	applyEnv(cfg)
	return cfg
}

// LoadFile layers configuration: built-in defaults, then the YAML file at
// path, then environment variables. A missing file is not an error.
func LoadFile(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     "5432",
			User:     "orders",
			Password: "orders_dev_password",
			DBName:   "orders",
			SSLMode:  "disable",
			MaxConns: 10,
		},
		JWT: JWTConfig{
			Secret:      "dev-secret-change-in-production",
			Issuer:      "order-intake",
			ExpiryHours: 24,
		},
		Upload: UploadConfig{
			MaxFileSize:  20 * 1024 * 1024,
			AllowedTypes: []string{"text/csv", "application/csv"},
			PageSize:     50,
		},
		Geofence: GeofenceConfig{
			Bounds:      geo.NewYorkState,
			TargetState: "New York",
		},
		Geocoder: GeocoderConfig{
			BaseURL:   "https://nominatim.openstreetmap.org",
			UserAgent: "order-intake/1.0",
			Timeout:   15 * time.Second,
		},
		Storage: StorageConfig{
			Backend: StoragePostgres,
			Timeout: 60 * time.Second,
		},
		Session: SessionConfig{
			IdleTTL:       30 * time.Minute,
			SweepInterval: time.Minute,
		},
	}
}

// applyEnv overrides cfg with any environment variable that is set.
func applyEnv(cfg *Config) {
	cfg.Server.Port = getEnv("SERVER_PORT", cfg.Server.Port)
	cfg.Server.ReadTimeout = getDurationEnv("SERVER_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = getDurationEnv("SERVER_WRITE_TIMEOUT", cfg.Server.WriteTimeout)

	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnv("DB_PORT", cfg.Database.Port)
	cfg.Database.User = getEnv("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.DBName = getEnv("DB_NAME", cfg.Database.DBName)
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", cfg.Database.SSLMode)
	cfg.Database.MaxConns = getIntEnv("DB_MAX_CONNS", cfg.Database.MaxConns)

	cfg.JWT.Secret = getEnv("JWT_SECRET", cfg.JWT.Secret)
	cfg.JWT.Issuer = getEnv("JWT_ISSUER", cfg.JWT.Issuer)
	cfg.JWT.ExpiryHours = getIntEnv("JWT_EXPIRY_HOURS", cfg.JWT.ExpiryHours)

	if mb := getIntEnv("UPLOAD_MAX_SIZE_MB", 0); mb > 0 {
		cfg.Upload.MaxFileSize = int64(mb) * 1024 * 1024
	}
	cfg.Upload.PageSize = getIntEnv("UPLOAD_PAGE_SIZE", cfg.Upload.PageSize)

	b := &cfg.Geofence.Bounds
	b.MinLat = getFloatEnv("GEOFENCE_MIN_LAT", b.MinLat)
	b.MaxLat = getFloatEnv("GEOFENCE_MAX_LAT", b.MaxLat)
	b.MinLon = getFloatEnv("GEOFENCE_MIN_LON", b.MinLon)
	b.MaxLon = getFloatEnv("GEOFENCE_MAX_LON", b.MaxLon)
	cfg.Geofence.TargetState = getEnv("GEOFENCE_TARGET_STATE", cfg.Geofence.TargetState)

	cfg.Geocoder.BaseURL = getEnv("GEOCODER_BASE_URL", cfg.Geocoder.BaseURL)
	cfg.Geocoder.UserAgent = getEnv("GEOCODER_USER_AGENT", cfg.Geocoder.UserAgent)
	cfg.Geocoder.Timeout = getDurationEnv("GEOCODER_TIMEOUT", cfg.Geocoder.Timeout)

	cfg.Storage.Backend = getEnv("STORAGE_BACKEND", cfg.Storage.Backend)
	cfg.Storage.RemoteURL = getEnv("STORAGE_REMOTE_URL", cfg.Storage.RemoteURL)
	cfg.Storage.Token = getEnv("STORAGE_TOKEN", cfg.Storage.Token)
	cfg.Storage.Timeout = getDurationEnv("STORAGE_TIMEOUT", cfg.Storage.Timeout)

	cfg.Session.IdleTTL = getDurationEnv("SESSION_IDLE_TTL", cfg.Session.IdleTTL)
	cfg.Session.SweepInterval = getDurationEnv("SESSION_SWEEP_INTERVAL", cfg.Session.SweepInterval)
}

// Validate checks values that would otherwise fail later at startup.
func (c *Config) Validate() error {
	if _, err := geo.NewFence(c.Geofence.Bounds); err != nil {
		return fmt.Errorf("geofence: %w", err)
	}
	switch c.Storage.Backend {
	case StoragePostgres:
	case StorageRemote:
		if c.Storage.RemoteURL == "" {
			return fmt.Errorf("storage: remote backend requires remote_url")
		}
	default:
		return fmt.Errorf("storage: unknown backend %q", c.Storage.Backend)
	}
	return nil
}

// DSN returns the Postgres connection string.
func (d *DatabaseConfig) DSN() string {
	return "postgres://" + d.User + ":" + d.Password +
		"@" + d.Host + ":" + d.Port +
		"/" + d.DBName + "?sslmode=" + d.SSLMode
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getFloatEnv(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
