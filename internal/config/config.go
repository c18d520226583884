package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is assembled once at startup and passed by value into the
// components that need it. Nothing below cmd/ reads the environment.
type Config struct {
	Env  string     `yaml:"env" env:"NOTABENE_ENV" env-default:"local"`
	HTTP HTTPServer `yaml:"http_server"`
	GRPC GRPCServer `yaml:"grpc_server"`
	DB   DB         `yaml:"db"`
	Auth Auth       `yaml:"auth"`
}

type HTTPServer struct {
	Address       string        `yaml:"address" env:"NOTABENE_HTTP_ADDR" env-default:":8080"`
	ReadTimeout   time.Duration `yaml:"read_timeout" env-default:"15s"`
	WriteTimeout  time.Duration `yaml:"write_timeout" env-default:"15s"`
	IdleTimeout   time.Duration `yaml:"idle_timeout" env-default:"60s"`
	RateBurst     int           `yaml:"rate_burst" env-default:"20"`
	RatePerSecond int           `yaml:"rate_per_second" env-default:"10"`
}

// GRPCServer configures the optional gRPC health endpoint. An empty
// address disables it.
type GRPCServer struct {
	Address string `yaml:"address" env:"NOTABENE_GRPC_ADDR"`
}

type DB struct {
	DSN             string        `yaml:"dsn" env:"NOTABENE_PG_DSN"`
	MaxOpenConns    int           `yaml:"max_open_conns" env-default:"25"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env-default:"10"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env-default:"30m"`
}

type Auth struct {
	Secret         string `yaml:"secret" env:"NOTABENE_AUTH_SECRET"`
	Issuer         string `yaml:"issuer" env:"NOTABENE_AUTH_ISSUER" env-default:"notabene"`
	Audience       string `yaml:"audience" env:"NOTABENE_AUTH_AUDIENCE" env-default:"notabene-clients"`
	AccessMinutes  int    `yaml:"access_minutes" env-default:"15"`
	RefreshMinutes int    `yaml:"refresh_minutes" env-default:"20160"`
}

// AccessTTL returns the access token lifetime as a duration.
func (a Auth) AccessTTL() time.Duration { return time.Duration(a.AccessMinutes) * time.Minute }

// RefreshTTL returns the refresh token lifetime as a duration.
func (a Auth) RefreshTTL() time.Duration { return time.Duration(a.RefreshMinutes) * time.Minute }

// Load reads configuration from the YAML file at path, falling back to
// environment variables when path is empty.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("read env: %w", err)
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Auth.Secret == "" {
		return errors.New("auth secret is not configured")
	}
	if c.Auth.AccessMinutes <= 0 || c.Auth.RefreshMinutes <= 0 {
		return errors.New("token lifetimes must be positive")
	}
	return nil
}
