package testsupport

import (
	"path/filepath"
	"testing"

	"ferry/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Retry delays are zeroed so retry loops run instantly.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.FTP.Host = "ftp.test"
	cfgVal.FTP.Port = 21
	cfgVal.FTP.User = "tester"
	cfgVal.FTP.Password = "secret"
	cfgVal.Paths.BufferDir = filepath.Join(base, "buffer")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Logging.FileLogging = false
	cfgVal.Transfer.RetryDelayMS = 0
	cfgVal.Transfer.RetryDelayMaxMS = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithRemoteDir sets the directory selected after login.
func WithRemoteDir(dir string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.FTP.RemoteDir = dir
	}
}

// WithChunkSize overrides the transfer chunk size.
func WithChunkSize(size int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Transfer.ChunkSize = size
	}
}

// WithMaxAttempts overrides the per-task attempt budget.
func WithMaxAttempts(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Transfer.MaxAttempts = n
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.BufferDir)
}
