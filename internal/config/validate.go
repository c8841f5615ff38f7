package config

import (
	"ferry/internal/failure"
)

// Validate ensures the configuration is usable. Every returned error matches
// failure.ErrConfiguration.
func (c *Config) Validate() error {
	if err := c.validateFTP(); err != nil {
		return err
	}
	if err := c.validateTransfer(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateFTP() error {
	if c.FTP.Host == "" {
		return failure.Configuration("ftp.host must be set (or export FTP_HOST)")
	}
	if c.FTP.Port <= 0 || c.FTP.Port > 65535 {
		return failure.Configuration("ftp.port must be between 1 and 65535, got %d", c.FTP.Port)
	}
	if c.FTP.TimeoutSeconds <= 0 {
		return failure.Configuration("ftp.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateTransfer() error {
	if c.Transfer.ChunkSize <= 0 {
		return failure.Configuration("transfer.chunk_size must be positive, got %d", c.Transfer.ChunkSize)
	}
	if c.Transfer.MaxAttempts < 1 {
		return failure.Configuration("transfer.max_attempts must be at least 1, got %d", c.Transfer.MaxAttempts)
	}
	if c.Transfer.RetryDelayMS < 0 {
		return failure.Configuration("transfer.retry_delay_ms must be >= 0")
	}
	if c.Transfer.RetryDelayMaxMS < c.Transfer.RetryDelayMS {
		return failure.Configuration("transfer.retry_delay_max_ms must be >= transfer.retry_delay_ms")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return failure.Configuration("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return failure.Configuration("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return failure.Configuration("logging.retention_days must be >= 0")
	}
	return nil
}
