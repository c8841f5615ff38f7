package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"ferry/internal/config"
	"ferry/internal/failure"
)

func isolateEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, key := range []string{"FTP_HOST", "FTP_PORT", "FTP_USER", "FTP_PASS", "FTP_REMOTE_DIR", "FTP_BLOCK_SIZE", "FTP_RETRIES", "FTP_TIMEOUT"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	t.Chdir(home)
	return home
}

func TestLoadDefaultsExpandPaths(t *testing.T) {
	home := isolateEnv(t)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantBuffer := filepath.Join(home, ".local", "share", "ferry", "buffer")
	if cfg.Paths.BufferDir != wantBuffer {
		t.Fatalf("unexpected buffer dir: got %q want %q", cfg.Paths.BufferDir, wantBuffer)
	}
	if cfg.FTP.Port != 2121 {
		t.Fatalf("unexpected default port %d", cfg.FTP.Port)
	}
	if cfg.Transfer.ChunkSize != 8192 || cfg.Transfer.MaxAttempts != 3 {
		t.Fatalf("unexpected transfer defaults: %+v", cfg.Transfer)
	}
	if cfg.Address() != "127.0.0.1:2121" {
		t.Fatalf("unexpected address %q", cfg.Address())
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StateDir, cfg.Paths.LogDir, cfg.Paths.BufferDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadUsesEnvironmentFallbacks(t *testing.T) {
	isolateEnv(t)
	t.Setenv("FTP_HOST", "ftp.example.test")
	t.Setenv("FTP_PORT", "21")
	t.Setenv("FTP_USER", "alice")
	t.Setenv("FTP_PASS", "s3cret")
	t.Setenv("FTP_REMOTE_DIR", "uploads/photos")
	t.Setenv("FTP_BLOCK_SIZE", "4096")
	t.Setenv("FTP_RETRIES", "5")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.FTP.Host != "ftp.example.test" || cfg.FTP.Port != 21 {
		t.Fatalf("unexpected endpoint %s", cfg.Address())
	}
	if cfg.FTP.User != "alice" || cfg.FTP.Password != "s3cret" {
		t.Fatalf("unexpected credentials %q/%q", cfg.FTP.User, cfg.FTP.Password)
	}
	if cfg.FTP.RemoteDir != "uploads/photos" {
		t.Fatalf("unexpected remote dir %q", cfg.FTP.RemoteDir)
	}
	if cfg.Transfer.ChunkSize != 4096 || cfg.Transfer.MaxAttempts != 5 {
		t.Fatalf("unexpected transfer settings %+v", cfg.Transfer)
	}
}

func TestLoadIgnoresUnparsableEnvironment(t *testing.T) {
	isolateEnv(t)
	t.Setenv("FTP_PORT", "not-a-port")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.FTP.Port != config.Default().FTP.Port {
		t.Fatalf("expected default port, got %d", cfg.FTP.Port)
	}
	if len(cfg.Warnings) != 1 || !strings.Contains(cfg.Warnings[0], "FTP_PORT") {
		t.Fatalf("expected FTP_PORT warning, got %v", cfg.Warnings)
	}
}

func TestLoadCustomPathOverridesEnvironment(t *testing.T) {
	isolateEnv(t)
	t.Setenv("FTP_HOST", "env-host")
	configPath := filepath.Join(t.TempDir(), "ferry.toml")

	type payload struct {
		FTP struct {
			Host      string `toml:"host"`
			RemoteDir string `toml:"remote_dir"`
		} `toml:"ftp"`
		Transfer struct {
			ChunkSize int `toml:"chunk_size"`
		} `toml:"transfer"`
	}
	custom := payload{}
	custom.FTP.Host = "file-host"
	custom.FTP.RemoteDir = "inbox"
	custom.Transfer.ChunkSize = 1024
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected config at %s, got %s (exists=%v)", configPath, resolved, exists)
	}
	if cfg.FTP.Host != "file-host" {
		t.Fatalf("expected file host to win, got %q", cfg.FTP.Host)
	}
	if cfg.FTP.RemoteDir != "inbox" || cfg.Transfer.ChunkSize != 1024 {
		t.Fatalf("unexpected values %+v %+v", cfg.FTP, cfg.Transfer)
	}
	if cfg.Transfer.MaxAttempts != config.Default().Transfer.MaxAttempts {
		t.Fatalf("expected default max attempts, got %d", cfg.Transfer.MaxAttempts)
	}
}

func TestValidateRejectsInvalidTransfer(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"zero chunk size", func(c *config.Config) { c.Transfer.ChunkSize = 0 }, "transfer.chunk_size"},
		{"zero attempts", func(c *config.Config) { c.Transfer.MaxAttempts = 0 }, "transfer.max_attempts"},
		{"empty host", func(c *config.Config) { c.FTP.Host = "" }, "ftp.host"},
		{"bad port", func(c *config.Config) { c.FTP.Port = 70000 }, "ftp.port"},
		{"bad log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"delay cap below delay", func(c *config.Config) { c.Transfer.RetryDelayMaxMS = 1 }, "retry_delay_max_ms"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, failure.ErrConfiguration) {
				t.Fatalf("expected configuration error, got %v", err)
			}
			if !failure.IsFatal(err) {
				t.Fatalf("expected configuration error to be fatal")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestCreateSampleRoundTripsThroughLoad(t *testing.T) {
	isolateEnv(t)
	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(target); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(target)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Transfer.ChunkSize != 8192 {
		t.Fatalf("unexpected sample chunk size %d", cfg.Transfer.ChunkSize)
	}
}

func TestRedactedMasksPassword(t *testing.T) {
	cfg := config.Default()
	cfg.FTP.Password = "hunter2"
	redacted := cfg.Redacted()
	if redacted.FTP.Password == "hunter2" {
		t.Fatal("expected password to be masked")
	}
	if cfg.FTP.Password != "hunter2" {
		t.Fatal("Redacted must not mutate the receiver")
	}
	out, err := redacted.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if strings.Contains(out, "hunter2") {
		t.Fatalf("encoded config leaks password: %s", out)
	}
}
