package ftpsession

import (
	"net"
	"strconv"
	"strings"
	"time"

	"ferry/internal/config"
	"ferry/internal/failure"
)

// Config is the immutable connection and transfer configuration for a run.
type Config struct {
	Host          string
	Port          int
	Username      string
	Password      string
	RemoteDir     string
	ChunkSize     int
	Timeout       time.Duration
	MaxAttempts   int
	RetryDelay    time.Duration
	RetryDelayMax time.Duration
}

// NewConfig derives a session configuration from the application config.
func NewConfig(cfg *config.Config) Config {
	if cfg == nil {
		def := config.Default()
		cfg = &def
	}
	delay, delayMax := cfg.RetryDelay()
	return Config{
		Host:          cfg.FTP.Host,
		Port:          cfg.FTP.Port,
		Username:      cfg.FTP.User,
		Password:      cfg.FTP.Password,
		RemoteDir:     cfg.FTP.RemoteDir,
		ChunkSize:     cfg.Transfer.ChunkSize,
		Timeout:       cfg.Timeout(),
		MaxAttempts:   cfg.Transfer.MaxAttempts,
		RetryDelay:    delay,
		RetryDelayMax: delayMax,
	}
}

// Address returns host:port for dialing.
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate reports configuration errors that make any upload impossible.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return failure.Configuration("ftp host must be set")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return failure.Configuration("ftp port must be between 1 and 65535 (got %d)", c.Port)
	}
	if c.ChunkSize <= 0 {
		return failure.Configuration("chunk size must be positive (got %d)", c.ChunkSize)
	}
	if c.MaxAttempts < 1 {
		return failure.Configuration("max attempts must be at least 1 (got %d)", c.MaxAttempts)
	}
	if c.Timeout <= 0 {
		return failure.Configuration("timeout must be positive (got %s)", c.Timeout)
	}
	if c.RetryDelay < 0 || c.RetryDelayMax < 0 {
		return failure.Configuration("retry delays must not be negative")
	}
	return nil
}
