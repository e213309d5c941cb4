package api

import (
	"errors"
	"fmt"
	"time"

	"github.com/0xmhha/algoland-api/internal/config"
	"github.com/0xmhha/algoland-api/internal/constants"
)

// Config holds API server configuration
type Config struct {
	// Host is the server host (default: 0.0.0.0)
	Host string

	// Port is the server port (default: 3000)
	Port int

	// ReadTimeout is the maximum duration for reading the entire request
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes
	WriteTimeout time.Duration

	// IdleTimeout is the maximum duration to wait for the next request
	IdleTimeout time.Duration

	// MaxHeaderBytes is the maximum size of request headers
	MaxHeaderBytes int

	// AllowedOrigins is the CORS allowlist. Empty admits every origin.
	AllowedOrigins []string

	// RateLimitPerMinute is the number of requests allowed per minute per IP
	RateLimitPerMinute int

	// BulkWorkers bounds concurrent lookups in /api/completions/bulk
	BulkWorkers int

	// ShutdownTimeout is the graceful shutdown timeout
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a default API server configuration
func DefaultConfig() *Config {
	return &Config{
		Host:               constants.DefaultAPIHost,
		Port:               constants.DefaultAPIPort,
		ReadTimeout:        constants.DefaultReadTimeout,
		WriteTimeout:       constants.DefaultWriteTimeout,
		IdleTimeout:        constants.DefaultIdleTimeout,
		MaxHeaderBytes:     constants.DefaultMaxHeaderBytes,
		AllowedOrigins:     append([]string(nil), constants.DefaultAllowedOrigins...),
		RateLimitPerMinute: constants.DefaultRateLimitPerMinute,
		BulkWorkers:        constants.DefaultBulkWorkers,
		ShutdownTimeout:    constants.DefaultShutdownTimeout,
	}
}

// FromConfig builds a server configuration from the loaded application config
func FromConfig(cfg config.APIConfig) *Config {
	c := DefaultConfig()
	if cfg.Host != "" {
		c.Host = cfg.Host
	}
	if cfg.Port != 0 {
		c.Port = cfg.Port
	}
	if cfg.ReadTimeout > 0 {
		c.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		c.WriteTimeout = cfg.WriteTimeout
	}
	if cfg.ShutdownTimeout > 0 {
		c.ShutdownTimeout = cfg.ShutdownTimeout
	}
	if cfg.RateLimitPerMinute > 0 {
		c.RateLimitPerMinute = cfg.RateLimitPerMinute
	}
	if cfg.BulkWorkers > 0 {
		c.BulkWorkers = cfg.BulkWorkers
	}
	c.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return c
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.New("host cannot be empty")
	}
	if c.Port < constants.MinPort || c.Port > constants.MaxPort {
		return fmt.Errorf("port must be between %d and %d", constants.MinPort, constants.MaxPort)
	}
	if c.ReadTimeout <= 0 {
		return errors.New("read timeout must be positive")
	}
	if c.WriteTimeout <= 0 {
		return errors.New("write timeout must be positive")
	}
	if c.IdleTimeout <= 0 {
		return errors.New("idle timeout must be positive")
	}
	if c.MaxHeaderBytes <= 0 {
		return errors.New("max header bytes must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.RateLimitPerMinute <= 0 {
		return errors.New("rate limit must be positive")
	}
	if c.BulkWorkers <= 0 {
		return errors.New("bulk workers must be positive")
	}
	return nil
}

// Address returns the server address in host:port format
func (c *Config) Address() string {
	return c.Host + ":" + fmt.Sprintf("%d", c.Port)
}
