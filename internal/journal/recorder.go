package journal

import (
	"context"
	"log/slog"
	"time"

	"ferry/internal/logging"
	"ferry/internal/upload"
)

// Recorder is an upload.Observer that journals each outcome as it lands.
// Journal failures are logged and never affect the upload.
type Recorder struct {
	upload.NopObserver
	ctx    context.Context
	store  *Store
	run    Run
	logger *slog.Logger
}

// NewRecorder starts a run in the journal and returns its observer.
func (s *Store) NewRecorder(ctx context.Context, run Run, logger *slog.Logger) *Recorder {
	r := &Recorder{
		ctx:    ctx,
		store:  s,
		run:    run,
		logger: logging.NewComponentLogger(logger, "journal"),
	}
	if err := s.StartRun(ctx, run); err != nil {
		r.warn("journal run start failed", err)
	}
	return r
}

func (r *Recorder) TaskFinished(o upload.Outcome) {
	entry := Entry{
		RunID:      r.run.ID,
		Position:   o.Index + 1,
		Name:       o.Task.Name,
		Origin:     o.Task.Origin,
		Status:     string(o.Status),
		Attempts:   o.Attempts,
		Bytes:      o.Bytes,
		ErrorKind:  string(o.Kind),
		StartedAt:  o.Started,
		FinishedAt: o.Finished,
	}
	if o.Err != nil {
		entry.ErrorMessage = o.Err.Error()
	}
	if err := r.store.RecordOutcome(context.WithoutCancel(r.ctx), entry); err != nil {
		r.warn("journal outcome write failed", err)
	}
}

func (r *Recorder) RunFinished(outcomes []upload.Outcome) {
	summary := upload.Summarize(outcomes)
	run := r.run
	run.FinishedAt = time.Now()
	run.Succeeded = summary.Counts[upload.StatusSucceeded]
	run.Failed = summary.Total - run.Succeeded
	run.Bytes = summary.Bytes
	if err := r.store.FinishRun(context.WithoutCancel(r.ctx), run); err != nil {
		r.warn("journal run finish failed", err)
	}
}

func (r *Recorder) warn(msg string, err error) {
	logging.WarnWithContext(r.logger, msg, "journal_write_failed",
		logging.Error(err),
		logging.String("journal", r.store.Path()),
		logging.String(logging.FieldErrorHint, "check state_dir permissions or delete the journal"),
		logging.String(logging.FieldImpact, "upload history is incomplete"),
	)
}

// Close closes the journal the recorder writes to.
func (r *Recorder) Close() error {
	return r.store.Close()
}
