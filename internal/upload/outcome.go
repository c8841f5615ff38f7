package upload

import (
	"time"

	"ferry/internal/failure"
	"ferry/internal/retry"
)

// Status is the terminal state of a task.
type Status = retry.Status

const (
	StatusSucceeded                 = retry.Succeeded
	StatusPermanentFailure          = retry.PermanentFailure
	StatusTransientFailureExhausted = retry.TransientFailureExhausted
	StatusCanceled                  = retry.Canceled
)

// Outcome is the result of one task. Exactly one is produced per task.
type Outcome struct {
	Index    int
	Task     Task
	Status   Status
	Attempts int
	Bytes    int64
	Err      error
	Kind     failure.Kind
	Started  time.Time
	Finished time.Time
}

// Detail returns the last error message, or an empty string on success.
func (o Outcome) Detail() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// Duration returns how long the task took.
func (o Outcome) Duration() time.Duration {
	if o.Started.IsZero() || o.Finished.Before(o.Started) {
		return 0
	}
	return o.Finished.Sub(o.Started)
}

// ProgressEvent reports cumulative bytes accepted during the current attempt.
type ProgressEvent struct {
	Index   int
	Task    string
	Sent    int64
	Total   int64
	Attempt int
}

// Percent returns completion in [0, 100], or -1 when the total is unknown.
func (e ProgressEvent) Percent() float64 {
	if e.Total <= 0 {
		if e.Total == 0 {
			return 100
		}
		return -1
	}
	pct := float64(e.Sent) / float64(e.Total) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}

// Summary counts outcomes by status.
type Summary struct {
	Total  int
	Bytes  int64
	Counts map[Status]int
}

// Summarize tallies outcomes.
func Summarize(outcomes []Outcome) Summary {
	s := Summary{Total: len(outcomes), Counts: make(map[Status]int, 4)}
	for _, o := range outcomes {
		s.Counts[o.Status]++
		if o.Status == StatusSucceeded {
			s.Bytes += o.Bytes
		}
	}
	return s
}

// AllSucceeded reports whether every outcome succeeded.
func (s Summary) AllSucceeded() bool {
	return s.Counts[StatusSucceeded] == s.Total
}
