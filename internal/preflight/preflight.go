package preflight

import (
	"context"
	"log/slog"
	"strings"

	"ferry/internal/config"
	"ferry/internal/ftpsession"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
	// Hint suggests a fix when the check failed.
	Hint string
}

// RunAll executes the directory checks followed by the FTP walk-through.
// A nil dialer selects the production FTP client.
func RunAll(ctx context.Context, cfg *config.Config, dialer ftpsession.Dialer, logger *slog.Logger) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))
	if strings.TrimSpace(cfg.Paths.BufferDir) != "" {
		results = append(results, CheckDirectoryAccess("Buffer directory", cfg.Paths.BufferDir))
	}
	results = append(results, CheckFTP(ctx, ftpsession.NewConfig(cfg), dialer, logger)...)
	return results
}

// Passed reports whether every result passed.
func Passed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}
