package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"ferry/internal/failure"
	"ferry/internal/ftpsession"
	"ferry/internal/logging"
	"ferry/internal/streamer"
)

// Progress receives the attempt number and the cumulative bytes accepted
// during that attempt.
type Progress func(attempt int, sent int64)

// Result records how an upload ended. Attempts counts every attempt started,
// including ones spent on a failed reconnect.
type Result struct {
	Status   Status
	Attempts int
	Bytes    int64
	Err      error
	Kind     failure.Kind
}

// Option customizes the controller.
type Option func(*Controller)

// WithBackoff overrides the delay before the second attempt and its cap.
// Each further retry doubles the delay. A zero base disables waiting.
func WithBackoff(base, maxDelay time.Duration) Option {
	return func(c *Controller) {
		c.baseDelay = base
		c.maxDelay = maxDelay
	}
}

// WithSleeper replaces how the controller waits between attempts.
func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(c *Controller) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// Controller applies the retry policy around a session and a streamer.
type Controller struct {
	session     *ftpsession.Session
	streamer    *streamer.Streamer
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	sleep       func(context.Context, time.Duration) error
	logger      *slog.Logger
}

// New constructs a controller using the attempt budget and delays in cfg.
func New(session *ftpsession.Session, stream *streamer.Streamer, cfg ftpsession.Config, logger *slog.Logger, opts ...Option) *Controller {
	c := &Controller{
		session:     session,
		streamer:    stream,
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   cfg.RetryDelay,
		maxDelay:    cfg.RetryDelayMax,
		sleep:       sleepWithContext,
		logger:      logging.NewComponentLogger(logger, "retry"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.maxAttempts < 1 {
		c.maxAttempts = 1
	}
	return c
}

// MaxAttempts returns the attempt budget per upload.
func (c *Controller) MaxAttempts() int { return c.maxAttempts }

// Establish brings the session to Ready using the same attempt budget as an
// upload. It returns the attempts used and the last error if none succeeded.
func (c *Controller) Establish(ctx context.Context) (int, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			if err := c.wait(ctx, attempt); err != nil {
				return attempt - 1, err
			}
		}
		attemptCtx := logging.WithAttempt(ctx, attempt)
		err := c.ensureReady(attemptCtx, lastErr != nil)
		if err == nil {
			return attempt, nil
		}
		lastErr = err
		if failure.ClassOf(err) != failure.ClassTransient {
			return attempt, err
		}
		c.logTransient(attemptCtx, "connection attempt failed", err, attempt)
	}
	return c.maxAttempts, lastErr
}

// Upload streams src to name, retrying transient failures. src is rewound
// between attempts when it implements io.Seeker; a non-seekable source that
// already had bytes consumed ends the upload with a source failure.
func (c *Controller) Upload(ctx context.Context, name string, src io.Reader, progress Progress) Result {
	counted := &countingReader{r: src}
	result := Result{}
	needReconnect := false

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			if err := c.wait(ctx, attempt); err != nil {
				result.Status = Canceled
				return c.finish(result, canceledError(err))
			}
		}
		if err := ctx.Err(); err != nil {
			result.Status = Canceled
			return c.finish(result, canceledError(err))
		}
		result.Attempts = attempt
		attemptCtx := logging.WithAttempt(ctx, attempt)
		logger := logging.WithContext(attemptCtx, c.logger)

		if err := c.ensureReady(attemptCtx, needReconnect); err != nil {
			result.Bytes = 0
			if status, done := c.decide(attemptCtx, err, attempt); done {
				result.Status = status
				return c.finish(result, err)
			}
			result.Err = err
			needReconnect = true
			continue
		}
		needReconnect = false

		if err := counted.rewind(); err != nil {
			result.Status = PermanentFailure
			if result.Err != nil {
				err = fmt.Errorf("%w (retrying after: %w)", err, result.Err)
			}
			return c.finish(result, err)
		}

		logger.Debug("upload attempt starting", logging.String(logging.FieldEventType, "attempt_start"))
		sent, err := c.streamer.Send(attemptCtx, c.session, name, counted, func(n int64) {
			if progress != nil {
				progress(attempt, n)
			}
		})
		result.Bytes = sent
		if err == nil {
			result.Status = Succeeded
			return c.finish(result, nil)
		}
		if status, done := c.decide(attemptCtx, err, attempt); done {
			result.Status = status
			return c.finish(result, err)
		}
		result.Err = err
		needReconnect = true
	}

	result.Status = TransientFailureExhausted
	return c.finish(result, result.Err)
}

// decide maps a failed attempt onto a terminal status. done is false when
// the failure is transient and attempts remain.
func (c *Controller) decide(ctx context.Context, err error, attempt int) (Status, bool) {
	switch failure.ClassOf(err) {
	case failure.ClassPermanent:
		return PermanentFailure, true
	case failure.ClassFatal:
		if failure.KindOf(err) == failure.KindCanceled {
			return Canceled, true
		}
		return PermanentFailure, true
	}
	if attempt >= c.maxAttempts {
		return TransientFailureExhausted, true
	}
	c.logTransient(ctx, "upload attempt failed; will reconnect and retry", err, attempt)
	return "", false
}

func (c *Controller) ensureReady(ctx context.Context, reconnect bool) error {
	state := c.session.State()
	switch {
	case state == ftpsession.Ready && !reconnect:
		return nil
	case state.Idle():
		return c.session.Open(ctx)
	default:
		return c.session.Reconnect(ctx)
	}
}

func (c *Controller) finish(result Result, err error) Result {
	result.Err = err
	result.Kind = failure.KindOf(err)
	if result.Bytes == 0 && err != nil {
		result.Bytes = failure.BytesOf(err)
	}
	return result
}

func (c *Controller) logTransient(ctx context.Context, msg string, err error, attempt int) {
	kind := failure.KindOf(err)
	logging.WarnWithContext(logging.WithContext(ctx, c.logger), msg, "attempt_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorKind, string(kind)),
		logging.String(logging.FieldErrorHint, failure.Hint(kind)),
		logging.String(logging.FieldImpact, fmt.Sprintf("attempt %d of %d lost", attempt, c.maxAttempts)),
	)
}

// wait sleeps before attempt (2-based) with exponential backoff.
func (c *Controller) wait(ctx context.Context, attempt int) error {
	delay := c.backoffDelay(attempt - 1)
	if delay <= 0 {
		return ctx.Err()
	}
	c.logger.Debug("waiting before retry", logging.Duration("backoff", delay), logging.Int(logging.FieldAttempt, attempt))
	return c.sleep(ctx, delay)
}

// backoffDelay returns the delay before retry number retry (1-based):
// base, base*2, base*4, ... capped at maxDelay when set.
func (c *Controller) backoffDelay(retry int) time.Duration {
	if c.baseDelay <= 0 || retry <= 0 {
		return 0
	}
	delay := c.baseDelay
	for i := 1; i < retry; i++ {
		delay *= 2
		if c.maxDelay > 0 && delay >= c.maxDelay {
			return c.maxDelay
		}
	}
	if c.maxDelay > 0 && delay > c.maxDelay {
		return c.maxDelay
	}
	return delay
}

func canceledError(err error) error {
	if err == nil {
		err = context.Canceled
	}
	var fe *failure.Error
	if errors.As(err, &fe) {
		return err
	}
	return failure.Wrap(failure.KindCanceled, "upload", "canceled", err)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// countingReader tracks how much of the source has been consumed so the
// controller knows whether a retry needs to rewind it.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func (c *countingReader) rewind() error {
	if c.n == 0 {
		return nil
	}
	seeker, ok := c.r.(io.Seeker)
	if !ok {
		return failure.New(failure.KindSource, "rewind source",
			fmt.Sprintf("stream is not seekable and %d bytes were already consumed", c.n))
	}
	if _, err := seeker.Seek(0, io.SeekStart); err != nil {
		return failure.Wrap(failure.KindSource, "rewind source", "", err)
	}
	c.n = 0
	return nil
}
