package upload

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ferry/internal/failure"
	"ferry/internal/ftpsession"
	"ferry/internal/logging"
	"ferry/internal/retry"
	"ferry/internal/streamer"
)

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithObserver registers an observer for run events.
func WithObserver(observer Observer) Option {
	return func(c *Coordinator) {
		if observer != nil {
			c.observer = observer
		}
	}
}

// WithRetryOptions passes options through to the retry controller.
func WithRetryOptions(opts ...retry.Option) Option {
	return func(c *Coordinator) {
		c.retryOpts = append(c.retryOpts, opts...)
	}
}

// WithClock overrides the time source for outcome timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// Coordinator runs tasks in order over a single session.
type Coordinator struct {
	cfg        ftpsession.Config
	session    *ftpsession.Session
	controller *retry.Controller
	observer   Observer
	retryOpts  []retry.Option
	now        func() time.Time
	logger     *slog.Logger
}

// NewCoordinator validates cfg and wires a session, streamer, and retry
// controller. A nil dialer selects the real FTP client.
func NewCoordinator(cfg ftpsession.Config, dialer ftpsession.Dialer, logger *slog.Logger, opts ...Option) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Coordinator{
		cfg:      cfg,
		observer: NopObserver{},
		now:      time.Now,
		logger:   logging.NewComponentLogger(logger, "upload"),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.session = ftpsession.New(cfg, dialer, logger)
	c.controller = retry.New(c.session, streamer.New(cfg.ChunkSize, logger), cfg, logger, c.retryOpts...)
	return c, nil
}

// Session exposes the coordinator's session, mainly for connectivity checks.
func (c *Coordinator) Session() *ftpsession.Session { return c.session }

// Run uploads tasks in order and returns one outcome per task in the same
// order. The returned error is non-nil only when the startup connection
// failed. The outcomes are still complete in that case: the first task
// carries the startup attempts, later tasks were never tried, and every
// task handle is closed once.
func (c *Coordinator) Run(ctx context.Context, tasks []Task) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, len(tasks))
	if len(tasks) == 0 {
		c.logger.Info("no tasks to upload", logging.String(logging.FieldEventType, "run_empty"))
		c.observer.RunFinished(outcomes)
		return outcomes, nil
	}
	defer c.session.Disconnect()

	if attempts, err := c.controller.Establish(ctx); err != nil {
		kind := failure.KindOf(err)
		for i, task := range tasks {
			task.release()
			var outcome Outcome
			if kind == failure.KindCanceled {
				outcome = c.canceledOutcome(i, task, failure.Wrap(failure.KindCanceled, "upload", "run canceled before connecting", err))
			} else {
				outcome = c.startupOutcome(i, task, err, attempts)
			}
			outcomes = append(outcomes, outcome)
			c.observer.TaskFinished(outcome)
		}
		c.observer.RunFinished(outcomes)
		if kind == failure.KindCanceled {
			return outcomes, nil
		}
		logging.ErrorWithContext(c.logger, "could not connect to ftp server", "startup_connect_failed",
			logging.String("address", c.cfg.Address()),
			logging.Int("attempts", attempts),
			logging.Error(err),
			logging.String(logging.FieldErrorKind, string(kind)),
			logging.String(logging.FieldErrorHint, failure.Hint(kind)),
		)
		return outcomes, fmt.Errorf("startup connection: %w", err)
	}

	for i, task := range tasks {
		if err := ctx.Err(); err != nil {
			task.release()
			outcome := c.canceledOutcome(i, task, failure.Wrap(failure.KindCanceled, "upload", "run canceled before task started", err))
			outcomes = append(outcomes, outcome)
			c.observer.TaskFinished(outcome)
			continue
		}
		outcome := c.runTask(ctx, i, task)
		outcomes = append(outcomes, outcome)
		c.observer.TaskFinished(outcome)
	}

	c.observer.RunFinished(outcomes)
	return outcomes, nil
}

func (c *Coordinator) runTask(ctx context.Context, index int, task Task) Outcome {
	ctx = logging.WithTask(ctx, index+1, task.Name)
	logger := logging.WithContext(ctx, c.logger)
	outcome := Outcome{Index: index, Task: task, Started: c.now()}
	c.observer.TaskStarted(index, task)

	h, err := task.acquire()
	if err != nil {
		outcome.Status = StatusPermanentFailure
		outcome.Err = err
		outcome.Kind = failure.KindOf(err)
		outcome.Finished = c.now()
		return outcome
	}
	defer func() {
		if cerr := h.Close(); cerr != nil {
			logging.WarnWithContext(logger, "closing source failed", "source_close_failed",
				logging.Error(cerr),
				logging.String(logging.FieldImpact, "upload result is unaffected"),
			)
		}
	}()

	result := c.controller.Upload(ctx, task.Name, h.reader, func(attempt int, sent int64) {
		c.observer.Progress(ProgressEvent{
			Index:   index,
			Task:    task.Name,
			Sent:    sent,
			Total:   task.Size,
			Attempt: attempt,
		})
	})

	outcome.Status = result.Status
	outcome.Attempts = result.Attempts
	outcome.Bytes = result.Bytes
	outcome.Err = result.Err
	outcome.Kind = result.Kind
	outcome.Finished = c.now()
	return outcome
}

func (c *Coordinator) canceledOutcome(index int, task Task, err error) Outcome {
	now := c.now()
	return Outcome{
		Index:    index,
		Task:     task,
		Status:   StatusCanceled,
		Err:      err,
		Kind:     failure.KindCanceled,
		Started:  now,
		Finished: now,
	}
}

// startupOutcome marks a task that could not run because the session never
// became ready. Only the first task is charged the startup attempts.
func (c *Coordinator) startupOutcome(index int, task Task, err error, attempts int) Outcome {
	status := StatusTransientFailureExhausted
	if failure.ClassOf(err) != failure.ClassTransient {
		status = StatusPermanentFailure
	}
	if index > 0 {
		attempts = 0
	}
	now := c.now()
	return Outcome{
		Index:    index,
		Task:     task,
		Status:   status,
		Attempts: attempts,
		Err:      err,
		Kind:     failure.KindOf(err),
		Started:  now,
		Finished: now,
	}
}
