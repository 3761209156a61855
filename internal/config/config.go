package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ShutdownGrace is added to the upload timeout when deriving the default shutdown bound.
const ShutdownGrace = 30 * time.Second

type Config struct {
	Server  ServerConfig
	API     APIConfig
	Session SessionConfig
	Redis   RedisConfig
	Log     LogConfig
}

type ServerConfig struct {
	Host            string
	Port            string
	ShutdownTimeout time.Duration
	MaxUploadSize   int64
}

// APIConfig describes the remote claims API the console talks to.
type APIConfig struct {
	BaseURL       string
	HealthTimeout time.Duration
	UploadTimeout time.Duration
}

type SessionConfig struct {
	Secret string
	TTL    time.Duration
}

// RedisConfig is optional; an empty Addr keeps session settings in memory.
type RedisConfig struct {
	Addr string
}

type LogConfig struct {
	Level string
}

// Addr is the listen address of the console.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	v := viper.New()
	v.SetDefault("API_URL", "http://localhost:8000")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", "8501")
	v.SetDefault("HEALTH_TIMEOUT", 10*time.Second)
	v.SetDefault("UPLOAD_TIMEOUT", 5*time.Minute)
	v.SetDefault("MAX_UPLOAD_SIZE", 10*1024*1024) // 10MB
	v.SetDefault("SESSION_SECRET", "dev-secret")
	v.SetDefault("SESSION_TTL", 12*time.Hour)
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("LOG_LEVEL", "info")

	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Host:            v.GetString("SERVER_HOST"),
			Port:            v.GetString("SERVER_PORT"),
			ShutdownTimeout: v.GetDuration("SHUTDOWN_TIMEOUT"),
			MaxUploadSize:   v.GetInt64("MAX_UPLOAD_SIZE"),
		},
		API: APIConfig{
			BaseURL:       strings.TrimSpace(v.GetString("API_URL")),
			HealthTimeout: v.GetDuration("HEALTH_TIMEOUT"),
			UploadTimeout: v.GetDuration("UPLOAD_TIMEOUT"),
		},
		Session: SessionConfig{
			Secret: v.GetString("SESSION_SECRET"),
			TTL:    v.GetDuration("SESSION_TTL"),
		},
		Redis: RedisConfig{
			Addr: strings.TrimSpace(v.GetString("REDIS_ADDR")),
		},
		Log: LogConfig{
			Level: v.GetString("LOG_LEVEL"),
		},
	}

	// Unset, the shutdown bound covers one full upload so a SIGTERM does not cut a claim short.
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = cfg.API.UploadTimeout + ShutdownGrace
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if err := ValidateBaseURL(c.API.BaseURL); err != nil {
		return fmt.Errorf("API_URL: %w", err)
	}
	if c.API.HealthTimeout <= 0 {
		return errors.New("HEALTH_TIMEOUT must be positive")
	}
	if c.API.UploadTimeout <= 0 {
		return errors.New("UPLOAD_TIMEOUT must be positive")
	}
	if c.Session.TTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}
	if c.Session.Secret == "" {
		return errors.New("SESSION_SECRET must not be empty")
	}
	if c.Server.MaxUploadSize <= 0 {
		return errors.New("MAX_UPLOAD_SIZE must be positive")
	}
	return nil
}

// ValidateBaseURL accepts absolute http and https URLs with a host.
func ValidateBaseURL(raw string) error {
	if raw == "" {
		return errors.New("URL is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q, expected http or https", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("URL has no host")
	}
	return nil
}
