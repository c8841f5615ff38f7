package upload

import (
	"log/slog"

	"ferry/internal/failure"
	"ferry/internal/logging"
)

// Observer receives run events in order. Calls come from the coordinator's
// goroutine and must not block for long.
type Observer interface {
	TaskStarted(index int, task Task)
	Progress(event ProgressEvent)
	TaskFinished(outcome Outcome)
	RunFinished(outcomes []Outcome)
}

// NopObserver ignores every event. Embed it to implement a subset.
type NopObserver struct{}

func (NopObserver) TaskStarted(int, Task)  {}
func (NopObserver) Progress(ProgressEvent) {}
func (NopObserver) TaskFinished(Outcome)   {}
func (NopObserver) RunFinished([]Outcome)  {}

// Observers fans events out to several observers in order.
type Observers []Observer

func (o Observers) TaskStarted(index int, task Task) {
	for _, obs := range o {
		if obs != nil {
			obs.TaskStarted(index, task)
		}
	}
}

func (o Observers) Progress(event ProgressEvent) {
	for _, obs := range o {
		if obs != nil {
			obs.Progress(event)
		}
	}
}

func (o Observers) TaskFinished(outcome Outcome) {
	for _, obs := range o {
		if obs != nil {
			obs.TaskFinished(outcome)
		}
	}
}

func (o Observers) RunFinished(outcomes []Outcome) {
	for _, obs := range o {
		if obs != nil {
			obs.RunFinished(outcomes)
		}
	}
}

// LogObserver writes progress and outcomes to a structured logger, sampling
// progress into 10% buckets per attempt.
type LogObserver struct {
	logger  *slog.Logger
	sampler *logging.ProgressSampler
}

// NewLogObserver constructs a LogObserver.
func NewLogObserver(logger *slog.Logger) *LogObserver {
	return &LogObserver{
		logger:  logging.NewComponentLogger(logger, "upload"),
		sampler: logging.NewProgressSampler(10),
	}
}

func (l *LogObserver) TaskStarted(index int, task Task) {
	l.sampler.Reset()
	l.logger.Info("upload starting",
		logging.Int(logging.FieldTaskIndex, index+1),
		logging.String(logging.FieldTask, task.Name),
		logging.String("source_path", task.Origin),
		logging.Int64("total_bytes", task.Size),
		logging.String(logging.FieldEventType, "task_start"),
	)
}

func (l *LogObserver) Progress(event ProgressEvent) {
	pct := event.Percent()
	if !l.sampler.ShouldLog(pct, event.Attempt) {
		return
	}
	attrs := []logging.Attr{
		logging.Int(logging.FieldTaskIndex, event.Index+1),
		logging.String(logging.FieldTask, event.Task),
		logging.Int(logging.FieldAttempt, event.Attempt),
		logging.Int64("bytes_sent", event.Sent),
		logging.String(logging.FieldEventType, "progress"),
	}
	if pct >= 0 {
		attrs = append(attrs, logging.Float64("percent", pct))
	}
	l.logger.Debug("upload progress", logging.Args(attrs...)...)
}

func (l *LogObserver) TaskFinished(o Outcome) {
	attrs := []logging.Attr{
		logging.Int(logging.FieldTaskIndex, o.Index+1),
		logging.String(logging.FieldTask, o.Task.Name),
		logging.String("status", string(o.Status)),
		logging.Int("attempts", o.Attempts),
		logging.Int64("total_bytes", o.Bytes),
		logging.Duration("duration", o.Duration()),
		logging.String(logging.FieldEventType, "task_finished"),
	}
	if o.Status == StatusSucceeded {
		l.logger.Info("upload succeeded", logging.Args(attrs...)...)
		return
	}
	attrs = append(attrs,
		logging.Error(o.Err),
		logging.String(logging.FieldErrorKind, string(o.Kind)),
		logging.String(logging.FieldErrorHint, failure.Hint(o.Kind)),
	)
	if o.Status == StatusCanceled {
		l.logger.Warn("upload canceled", logging.Args(attrs...)...)
		return
	}
	logging.ErrorWithContext(l.logger, "upload failed", "task_failed", attrs...)
}

func (l *LogObserver) RunFinished(outcomes []Outcome) {
	summary := Summarize(outcomes)
	l.logger.Info("upload run finished",
		logging.Int("tasks", summary.Total),
		logging.Int("succeeded", summary.Counts[StatusSucceeded]),
		logging.Int("permanent_failures", summary.Counts[StatusPermanentFailure]),
		logging.Int("exhausted", summary.Counts[StatusTransientFailureExhausted]),
		logging.Int("canceled", summary.Counts[StatusCanceled]),
		logging.Int64("total_bytes", summary.Bytes),
		logging.String(logging.FieldEventType, "run_finished"),
	)
}
