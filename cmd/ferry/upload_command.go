package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"ferry/internal/buffer"
	"ferry/internal/config"
	"ferry/internal/ftpsession"
	"ferry/internal/journal"
	"ferry/internal/logging"
	"ferry/internal/runlock"
	"ferry/internal/upload"
)

type uploadOptions struct {
	fromBuffer bool
	stdinName  string
	jsonOutput bool
	noProgress bool
}

func newUploadCommand(ctx *commandContext) *cobra.Command {
	var opts uploadOptions

	cmd := &cobra.Command{
		Use:   "upload [file...]",
		Short: "Upload files to the configured FTP server",
		Long: `Upload files in order over a single FTP session.

Exactly one source is used per run: file arguments, the buffer directory
(--buffer), or standard input (--stdin NAME). Standard input is spooled into
the buffer directory first so failed attempts can restart from the beginning;
pass "-" as NAME to generate one from the content.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload(cmd, ctx, args, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.fromBuffer, "buffer", false, "Upload every file in the buffer directory")
	cmd.Flags().StringVar(&opts.stdinName, "stdin", "", "Upload standard input under NAME (\"-\" generates a name)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Print outcomes as JSON")
	cmd.Flags().BoolVar(&opts.noProgress, "no-progress", false, "Disable progress bars")
	return cmd
}

func runUpload(cmd *cobra.Command, ctx *commandContext, args []string, opts uploadOptions) error {
	if err := checkUploadSources(args, opts); err != nil {
		return err
	}
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}

	runCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	lock, err := acquireRunLock(cfg)
	if err != nil {
		return err
	}
	defer lock.Release()

	runID := uuid.NewString()
	logger, err := ctx.newLogger(runID)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	tasks, spooled, err := collectTasks(runCtx, cmd, cfg, args, opts, logger)
	if err != nil {
		return err
	}

	observers := upload.Observers{upload.NewLogObserver(logger)}
	if !opts.noProgress && !opts.jsonOutput && isTerminal(cmd.ErrOrStderr()) {
		observers = append(observers, newProgressObserver(cmd.ErrOrStderr(), len(tasks)))
	}

	var recorder *journal.Recorder
	if len(tasks) > 0 {
		recorder = openRecorder(runCtx, cfg, runID, len(tasks), logger)
		if recorder != nil {
			defer recorder.Close()
			observers = append(observers, recorder)
		}
	}

	coordinator, err := upload.NewCoordinator(ftpsession.NewConfig(cfg), ctx.dialer, logger, upload.WithObserver(observers))
	if err != nil {
		upload.Release(tasks)
		return err
	}

	outcomes, runErr := coordinator.Run(runCtx, tasks)

	if opts.jsonOutput {
		if err := writeJSON(cmd, newRunJSON(runID, outcomes)); err != nil {
			return err
		}
	} else if len(outcomes) > 0 {
		fmt.Fprintln(cmd.OutOrStdout(), renderOutcomes(outcomes))
	} else if runErr == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "Nothing to upload")
	}
	if runErr != nil {
		return runErr
	}

	summary := upload.Summarize(outcomes)
	afterRun(cfg, opts, spooled, outcomes, logger)

	switch {
	case summary.AllSucceeded():
		return nil
	case summary.Counts[upload.StatusCanceled] > 0:
		return fmt.Errorf("upload interrupted: %w", context.Canceled)
	default:
		return fmt.Errorf("%d of %d uploads failed", summary.Total-summary.Counts[upload.StatusSucceeded], summary.Total)
	}
}

// acquireRunLock serialises commands that touch the buffer directory.
func acquireRunLock(cfg *config.Config) (*runlock.Lock, error) {
	lock, err := runlock.Acquire(cfg.LockPath())
	if errors.Is(err, runlock.ErrHeld) {
		return nil, fmt.Errorf("another ferry command is using the buffer (lock %s)", cfg.LockPath())
	}
	return lock, err
}

func checkUploadSources(args []string, opts uploadOptions) error {
	sources := 0
	if len(args) > 0 {
		sources++
	}
	if opts.fromBuffer {
		sources++
	}
	if opts.stdinName != "" {
		sources++
	}
	switch sources {
	case 0:
		return errors.New("nothing to upload: pass files, --buffer, or --stdin NAME")
	case 1:
		return nil
	default:
		return errors.New("use only one of file arguments, --buffer, or --stdin")
	}
}

// collectTasks builds the ordered task list. The returned path is the
// spooled stdin file, if any.
func collectTasks(ctx context.Context, cmd *cobra.Command, cfg *config.Config, args []string, opts uploadOptions, logger *slog.Logger) ([]upload.Task, string, error) {
	switch {
	case opts.fromBuffer:
		if err := os.MkdirAll(cfg.Paths.BufferDir, 0o755); err != nil {
			return nil, "", fmt.Errorf("create buffer dir: %w", err)
		}
		catalog, err := upload.ScanDir(cfg.Paths.BufferDir, logger)
		if err != nil {
			return nil, "", err
		}
		return catalog.Tasks(), "", nil

	case opts.stdinName != "":
		path, size, err := buffer.Spool(ctx, cfg.Paths.BufferDir, opts.stdinName, cmd.InOrStdin(), cfg.Transfer.ChunkSize, time.Now())
		if err != nil {
			return nil, "", fmt.Errorf("spool stdin: %w", err)
		}
		logger.Info("stdin spooled",
			logging.String("local_path", path),
			logging.Int64("total_bytes", size),
			logging.String(logging.FieldEventType, "stdin_spooled"),
		)
		return []upload.Task{upload.FileTask(path, filepath.Base(path))}, path, nil

	default:
		tasks := make([]upload.Task, 0, len(args))
		for _, arg := range args {
			path, err := config.ExpandPath(strings.TrimSpace(arg))
			if err != nil {
				return nil, "", err
			}
			tasks = append(tasks, upload.FileTask(path, ""))
		}
		if _, err := upload.NewCatalog(tasks...); err != nil {
			return nil, "", err
		}
		return tasks, "", nil
	}
}

// afterRun tidies the buffer. A fully successful buffer run removes the
// files it uploaded when clean_buffer is set; a successful stdin upload
// removes its spool file. Failed runs leave files in place for
// `ferry upload --buffer`.
func afterRun(cfg *config.Config, opts uploadOptions, spooled string, outcomes []upload.Outcome, logger *slog.Logger) {
	summary := upload.Summarize(outcomes)
	if !summary.AllSucceeded() || summary.Total == 0 {
		return
	}
	switch {
	case opts.fromBuffer && cfg.Upload.CleanBuffer:
		uploaded := make([]string, 0, len(outcomes))
		for _, o := range outcomes {
			uploaded = append(uploaded, o.Task.Origin)
		}
		if err := buffer.Remove(cfg.Paths.BufferDir, uploaded); err != nil {
			logging.WarnWithContext(logger, "buffer cleanup failed", "buffer_clean_failed",
				logging.String("buffer_dir", cfg.Paths.BufferDir),
				logging.Error(err),
				logging.String(logging.FieldImpact, "uploaded files remain in the buffer"),
			)
			return
		}
		logger.Info("buffer cleaned",
			logging.String("buffer_dir", cfg.Paths.BufferDir),
			logging.Int("removed", len(uploaded)),
			logging.String(logging.FieldEventType, "buffer_cleaned"),
		)
	case spooled != "":
		if err := os.Remove(spooled); err != nil && !errors.Is(err, os.ErrNotExist) {
			logging.WarnWithContext(logger, "spool cleanup failed", "spool_clean_failed",
				logging.String("local_path", spooled),
				logging.Error(err),
			)
		}
	}
}

func openRecorder(ctx context.Context, cfg *config.Config, runID string, taskCount int, logger *slog.Logger) *journal.Recorder {
	store, err := journal.Open(cfg)
	if err != nil {
		logging.WarnWithContext(logger, "journal unavailable", "journal_open_failed",
			logging.String("journal", cfg.JournalPath()),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check state_dir permissions or delete the journal"),
			logging.String(logging.FieldImpact, "this run is not recorded in history"),
		)
		return nil
	}
	return store.NewRecorder(ctx, journal.Run{
		ID:        runID,
		StartedAt: time.Now(),
		Address:   cfg.Address(),
		RemoteDir: cfg.FTP.RemoteDir,
		TaskCount: taskCount,
	}, logger)
}
