package config

const (
	defaultFTPHost           = "127.0.0.1"
	defaultFTPPort           = 2121
	defaultFTPUser           = "anonymous"
	defaultFTPTimeoutSeconds = 10
	defaultChunkSize         = 8192
	defaultMaxAttempts       = 3
	defaultRetryDelayMS      = 1000
	defaultRetryDelayMaxMS   = 30000
	defaultBufferDir         = "~/.local/share/ferry/buffer"
	defaultStateDir          = "~/.local/share/ferry"
	defaultLogDir            = "~/.local/share/ferry/logs"
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultLogRetentionDays  = 30
	defaultCleanBuffer       = true
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		FTP: FTP{
			Host:           defaultFTPHost,
			Port:           defaultFTPPort,
			User:           defaultFTPUser,
			TimeoutSeconds: defaultFTPTimeoutSeconds,
		},
		Transfer: Transfer{
			ChunkSize:       defaultChunkSize,
			MaxAttempts:     defaultMaxAttempts,
			RetryDelayMS:    defaultRetryDelayMS,
			RetryDelayMaxMS: defaultRetryDelayMaxMS,
		},
		Paths: Paths{
			BufferDir: defaultBufferDir,
			StateDir:  defaultStateDir,
			LogDir:    defaultLogDir,
		},
		Upload: Upload{
			CleanBuffer: defaultCleanBuffer,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			FileLogging:   true,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
