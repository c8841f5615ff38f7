package retry

// Status is the terminal state of one upload.
type Status string

const (
	Succeeded                 Status = "succeeded"
	PermanentFailure          Status = "permanent_failure"
	TransientFailureExhausted Status = "transient_failure_exhausted"
	Canceled                  Status = "canceled"
)

// Statuses lists every terminal status in display order.
func Statuses() []Status {
	return []Status{Succeeded, PermanentFailure, TransientFailureExhausted, Canceled}
}

// Failed reports whether s is anything other than Succeeded.
func (s Status) Failed() bool { return s != Succeeded }
