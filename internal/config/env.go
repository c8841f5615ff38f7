package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// applyEnv layers the FTP_* variables over the defaults. A value that does
// not parse is ignored and recorded as a warning so startup never fails on
// a stray export.
func (c *Config) applyEnv() {
	if value, ok := lookupTrimmed("FTP_HOST"); ok {
		c.FTP.Host = value
	}
	if value, ok := os.LookupEnv("FTP_USER"); ok {
		c.FTP.User = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv("FTP_PASS"); ok {
		c.FTP.Password = value
	}
	if value, ok := os.LookupEnv("FTP_REMOTE_DIR"); ok {
		c.FTP.RemoteDir = strings.TrimSpace(value)
	}
	c.envInt("FTP_PORT", &c.FTP.Port)
	c.envInt("FTP_TIMEOUT", &c.FTP.TimeoutSeconds)
	c.envInt("FTP_BLOCK_SIZE", &c.Transfer.ChunkSize)
	c.envInt("FTP_RETRIES", &c.Transfer.MaxAttempts)
}

func (c *Config) envInt(key string, target *int) {
	value, ok := lookupTrimmed(key)
	if !ok {
		return
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		c.Warnings = append(c.Warnings, fmt.Sprintf("ignoring %s=%q: not an integer", key, value))
		return
	}
	*target = parsed
}

func lookupTrimmed(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}
