// Package config defines the server configuration and how it is loaded.
//
// Values are layered with koanf, later sources overriding earlier ones:
// built-in defaults, a YAML file, MINIHTTP_ environment variables and finally
// command-line overrides.
package config

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap/zapcore"
)

// Default configuration values.
const (
	DefaultAddr            = "127.0.0.1:7878"
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 10 * time.Second
	DefaultIdleTimeout     = 30 * time.Second
	DefaultShutdownTimeout = 5 * time.Second
	DefaultMaxHeaderBytes  = 8 << 10
	DefaultMaxBodyBytes    = 10 << 20
	DefaultSessionShards   = 16
	DefaultTemplateDir     = "templates"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
	DefaultLogColor  = "auto"
)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Session   SessionConfig   `koanf:"session"`
	Log       LogConfig       `koanf:"log"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
	Templates TemplateConfig  `koanf:"templates"`
	Static    []StaticConfig  `koanf:"static"`
}

type ServerConfig struct {
	Addr string `koanf:"addr"`

	// ReadTimeout bounds reading one request, from the first byte to the end
	// of the body.
	ReadTimeout time.Duration `koanf:"read_timeout"`
	// WriteTimeout bounds writing the response.
	WriteTimeout time.Duration `koanf:"write_timeout"`
	// IdleTimeout bounds the wait for the first byte of a request.
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	MaxHeaderBytes int   `koanf:"max_header_bytes"`
	MaxBodyBytes   int64 `koanf:"max_body_bytes"`
}

type SessionConfig struct {
	// Shards must be a power of two.
	Shards int `koanf:"shards"`
}

type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // text or json
	Color  string `koanf:"color"`  // auto, yes or no; text format only
}

// RateLimitConfig configures per-client request limiting. A zero RPS
// disables it.
type RateLimitConfig struct {
	RPS   float64 `koanf:"rps"`
	Burst int     `koanf:"burst"`
}

type TemplateConfig struct {
	Dir string `koanf:"dir"`
}

// StaticConfig maps a URL prefix to a directory on disk
type StaticConfig struct {
	Prefix string `koanf:"prefix"`
	Dir    string `koanf:"dir"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            DefaultAddr,
			ReadTimeout:     DefaultReadTimeout,
			WriteTimeout:    DefaultWriteTimeout,
			IdleTimeout:     DefaultIdleTimeout,
			ShutdownTimeout: DefaultShutdownTimeout,
			MaxHeaderBytes:  DefaultMaxHeaderBytes,
			MaxBodyBytes:    DefaultMaxBodyBytes,
		},
		Session: SessionConfig{
			Shards: DefaultSessionShards,
		},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
			Color:  DefaultLogColor,
		},
		Templates: TemplateConfig{
			Dir: DefaultTemplateDir,
		},
	}
}

// Validate reports every problem found in c
func (c *Config) Validate() error {
	var errs []error

	s := c.Server
	if s.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	for name, d := range map[string]time.Duration{
		"server.read_timeout":     s.ReadTimeout,
		"server.write_timeout":    s.WriteTimeout,
		"server.idle_timeout":     s.IdleTimeout,
		"server.shutdown_timeout": s.ShutdownTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	if s.MaxHeaderBytes <= 0 {
		errs = append(errs, fmt.Errorf("server.max_header_bytes must be positive, got %d", s.MaxHeaderBytes))
	}
	if s.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("server.max_body_bytes must be positive, got %d", s.MaxBodyBytes))
	}

	if n := c.Session.Shards; n <= 0 || n&(n-1) != 0 {
		errs = append(errs, fmt.Errorf("session.shards must be a power of two, got %d", n))
	}

	if err := c.Log.Validate(); err != nil {
		errs = append(errs, err)
	}

	if c.RateLimit.RPS < 0 {
		errs = append(errs, fmt.Errorf("ratelimit.rps must not be negative, got %g", c.RateLimit.RPS))
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst < 1 {
		errs = append(errs, fmt.Errorf("ratelimit.burst must be at least 1 when ratelimit.rps is set, got %d", c.RateLimit.Burst))
	}

	for i, st := range c.Static {
		if st.Prefix == "" || st.Dir == "" {
			errs = append(errs, fmt.Errorf("static[%d]: prefix and dir are required", i))
		}
	}

	return errors.Join(errs...)
}

// Validate checks the logging section on its own, so that a reloaded file can
// be vetted before its level is applied.
func (l LogConfig) Validate() error {
	var errs []error
	if _, err := zapcore.ParseLevel(l.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch l.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", l.Format))
	}
	switch l.Color {
	case "auto", "yes", "no":
	default:
		errs = append(errs, fmt.Errorf("log.color must be auto, yes or no, got %q", l.Color))
	}
	return errors.Join(errs...)
}
