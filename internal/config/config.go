package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// FTP contains the remote endpoint and credentials.
type FTP struct {
	Host           string `toml:"host"`
	Port           int    `toml:"port"`
	User           string `toml:"user"`
	Password       string `toml:"password"`
	RemoteDir      string `toml:"remote_dir"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Transfer contains chunking and retry settings.
type Transfer struct {
	ChunkSize       int `toml:"chunk_size"`
	MaxAttempts     int `toml:"max_attempts"`
	RetryDelayMS    int `toml:"retry_delay_ms"`
	RetryDelayMaxMS int `toml:"retry_delay_max_ms"`
}

// Paths contains local directories.
type Paths struct {
	BufferDir string `toml:"buffer_dir"`
	StateDir  string `toml:"state_dir"`
	LogDir    string `toml:"log_dir"`
}

// Upload contains behaviour toggles for upload runs.
type Upload struct {
	// CleanBuffer empties the buffer directory after a buffer run in which
	// every task succeeded.
	CleanBuffer bool `toml:"clean_buffer"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	FileLogging   bool   `toml:"file_logging"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for ferry.
//
// Configuration sections by subsystem:
//   - FTP: endpoint, credentials, remote directory, timeout
//   - Transfer: chunk size and retry budget
//   - Paths: buffer, state (journal + lock), and log directories
//   - Upload: buffer cleanup behaviour
//   - Logging: log format, level, and retention
type Config struct {
	FTP      FTP      `toml:"ftp"`
	Transfer Transfer `toml:"transfer"`
	Paths    Paths    `toml:"paths"`
	Upload   Upload   `toml:"upload"`
	Logging  Logging  `toml:"logging"`

	// Warnings collects non-fatal problems found while loading, such as
	// unparsable environment overrides that were ignored.
	Warnings []string `toml:"-"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/ferry/config.toml")
}

// Load locates, parses, and validates a configuration file. Values resolve
// in the order file, then FTP_* environment, then defaults. The returned
// config has all path fields expanded.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()
	cfg.applyEnv()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("ferry.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state and log directories. The buffer
// directory is created on a best-effort basis because plain file uploads
// never touch it.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.BufferDir) != "" {
		_ = os.MkdirAll(c.Paths.BufferDir, 0o755)
	}
	return nil
}

// Address returns the host:port pair for the control connection.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.FTP.Host, c.FTP.Port)
}

// Timeout returns the connect/read timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.FTP.TimeoutSeconds) * time.Second
}

// RetryDelay returns the initial and maximum delay between attempts.
func (c *Config) RetryDelay() (time.Duration, time.Duration) {
	return time.Duration(c.Transfer.RetryDelayMS) * time.Millisecond,
		time.Duration(c.Transfer.RetryDelayMaxMS) * time.Millisecond
}

// JournalPath returns the SQLite journal location.
func (c *Config) JournalPath() string {
	return filepath.Join(c.Paths.StateDir, "journal.db")
}

// LockPath returns the run lock location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "ferry.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Redacted returns a copy safe to print, with the password masked.
func (c *Config) Redacted() Config {
	clone := *c
	if clone.FTP.Password != "" {
		clone.FTP.Password = "********"
	}
	clone.Warnings = nil
	return clone
}

// Encode renders the configuration as TOML.
func (c Config) Encode() (string, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return string(data), nil
}
