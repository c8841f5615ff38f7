package main

import (
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"

	"ferry/internal/upload"
)

// progressObserver draws one progress bar per task on an interactive
// terminal. Bars restart from zero when a retry begins.
type progressObserver struct {
	upload.NopObserver
	out     io.Writer
	total   int
	bar     *progressbar.ProgressBar
	index   int
	name    string
	attempt int
}

func newProgressObserver(out io.Writer, total int) *progressObserver {
	return &progressObserver{out: out, total: total}
}

func (p *progressObserver) TaskStarted(index int, task upload.Task) {
	p.index = index
	p.name = task.Name
	p.attempt = 1
	p.bar = progressbar.NewOptions64(task.Size,
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionSetDescription(p.describe()),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(p.out) }),
	)
}

func (p *progressObserver) Progress(event upload.ProgressEvent) {
	if p.bar == nil {
		return
	}
	if event.Attempt != p.attempt {
		p.attempt = event.Attempt
		p.bar.Describe(p.describe())
	}
	_ = p.bar.Set64(event.Sent)
}

func (p *progressObserver) TaskFinished(outcome upload.Outcome) {
	if p.bar == nil {
		return
	}
	if outcome.Status == upload.StatusSucceeded {
		_ = p.bar.Finish()
	} else {
		_ = p.bar.Exit()
		fmt.Fprintln(p.out)
	}
	p.bar = nil
}

func (p *progressObserver) describe() string {
	desc := fmt.Sprintf("[%d/%d] %s", p.index+1, p.total, p.name)
	if p.attempt > 1 {
		desc += fmt.Sprintf(" (attempt %d)", p.attempt)
	}
	return desc
}
