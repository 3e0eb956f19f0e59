package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	ServerPort       int           `yaml:"port"`
	BackendURL       string        `yaml:"backend_url"` // Origin of the CMS, also the base for media URLs
	APIPrefix        string        `yaml:"api_prefix"`
	DatabasePath     string        `yaml:"database_path"` // Local store holding the session token
	PlaceholderImage string        `yaml:"placeholder_image"`
	PresenceInterval time.Duration `yaml:"presence_interval"`
	ActiveWindow     time.Duration `yaml:"active_window"`
	ActiveLimit      int           `yaml:"active_limit"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	AllowedOrigins   []string      `yaml:"allowed_origins"`
	LogLevel         string        `yaml:"log_level"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		ServerPort:       8080,
		BackendURL:       "http://localhost:1337",
		APIPrefix:        "/api",
		DatabasePath:     "./sphere.db",
		PlaceholderImage: "/placeholder.png",
		PresenceInterval: 30 * time.Second,
		ActiveWindow:     15 * time.Minute,
		ActiveLimit:      10,
		RequestTimeout:   15 * time.Second,
		AllowedOrigins:   []string{"http://localhost:3000"},
		LogLevel:         "info",
	}
}

// Load builds the configuration from defaults, the optional YAML file named
// by SPHERE_CONFIG, and finally environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := getEnv("SPHERE_CONFIG", ""); path != "" {
		if err := loadFile(filepath.Clean(path), cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	cfg.BackendURL = strings.TrimRight(cfg.BackendURL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values that would otherwise fail at first use.
func (c *Config) Validate() error {
	if c.BackendURL == "" {
		return fmt.Errorf("backend url must not be empty")
	}
	if c.PresenceInterval <= 0 {
		return fmt.Errorf("presence interval must be positive, got %s", c.PresenceInterval)
	}
	if c.ActiveLimit <= 0 {
		return fmt.Errorf("active limit must be positive, got %d", c.ActiveLimit)
	}
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("invalid port %d", c.ServerPort)
	}
	return nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path) // #nosec G304 - path comes from the operator
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	var err error

	if v := getEnv("PORT", ""); v != "" {
		if cfg.ServerPort, err = strconv.Atoi(v); err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
	}
	cfg.BackendURL = getEnv("STRAPI_URL", cfg.BackendURL)
	cfg.APIPrefix = getEnv("API_PREFIX", cfg.APIPrefix)
	cfg.DatabasePath = getEnv("DATABASE_PATH", cfg.DatabasePath)
	cfg.PlaceholderImage = getEnv("PLACEHOLDER_IMAGE", cfg.PlaceholderImage)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	if v := getEnv("PRESENCE_INTERVAL", ""); v != "" {
		if cfg.PresenceInterval, err = time.ParseDuration(v); err != nil {
			return fmt.Errorf("PRESENCE_INTERVAL: %w", err)
		}
	}
	if v := getEnv("ACTIVE_WINDOW", ""); v != "" {
		if cfg.ActiveWindow, err = time.ParseDuration(v); err != nil {
			return fmt.Errorf("ACTIVE_WINDOW: %w", err)
		}
	}
	if v := getEnv("ACTIVE_LIMIT", ""); v != "" {
		if cfg.ActiveLimit, err = strconv.Atoi(v); err != nil {
			return fmt.Errorf("ACTIVE_LIMIT: %w", err)
		}
	}
	if v := getEnv("REQUEST_TIMEOUT", ""); v != "" {
		if cfg.RequestTimeout, err = time.ParseDuration(v); err != nil {
			return fmt.Errorf("REQUEST_TIMEOUT: %w", err)
		}
	}
	if v := getEnv("ALLOWED_ORIGINS", ""); v != "" {
		cfg.AllowedOrigins = splitList(v)
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Helper to get an environment variable with a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
