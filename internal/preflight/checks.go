package preflight

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sys/unix"

	"ferry/internal/failure"
	"ferry/internal/ftpsession"
)

// CheckFTP opens a session step by step, sends NOOP and disconnects. It
// stops at the first failing step; later steps are not reported.
func CheckFTP(ctx context.Context, cfg ftpsession.Config, dialer ftpsession.Dialer, logger *slog.Logger) []Result {
	if err := cfg.Validate(); err != nil {
		return []Result{failed("Configuration", err)}
	}

	checkCtx := ctx
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		// Four round trips at most.
		checkCtx, cancel = context.WithTimeout(ctx, 4*cfg.Timeout)
		defer cancel()
	}

	session := ftpsession.New(cfg, dialer, logger)
	defer session.Disconnect()

	steps := []struct {
		name string
		ok   string
		run  func(context.Context) error
	}{
		{"Connect", fmt.Sprintf("%s reachable", cfg.Address()), session.Connect},
		{"Login", fmt.Sprintf("authenticated as %s", cfg.Username), session.Authenticate},
		{"Remote directory", directoryDetail(cfg.RemoteDir), session.SelectDirectory},
		{"NOOP", "server responding", session.Ping},
	}

	results := make([]Result, 0, len(steps))
	for _, step := range steps {
		if err := step.run(checkCtx); err != nil {
			return append(results, failed(step.name, err))
		}
		results = append(results, Result{Name: step.name, Passed: true, Detail: step.ok})
	}
	return results
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

func failed(name string, err error) Result {
	kind := failure.KindOf(err)
	detail := err.Error()
	if errors.Is(err, context.DeadlineExceeded) {
		detail = "timed out (server unresponsive)"
	}
	if kind != "" {
		detail = fmt.Sprintf("%s (%s)", detail, kind)
	}
	return Result{Name: name, Detail: detail, Hint: failure.Hint(kind)}
}

func directoryDetail(dir string) string {
	if dir == "" {
		return "login directory"
	}
	return dir
}
