package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"ferry/internal/upload"
)

func renderOutcomes(outcomes []upload.Outcome) string {
	headers := []string{"#", "File", "Status", "Attempts", "Sent", "Duration", "Detail"}
	aligns := []columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft}
	rows := make([][]string, 0, len(outcomes))
	for _, o := range outcomes {
		rows = append(rows, []string{
			strconv.Itoa(o.Index + 1),
			o.Task.Name,
			humanLabel(string(o.Status)),
			strconv.Itoa(o.Attempts),
			humanize.IBytes(uint64(max(o.Bytes, 0))),
			formatDuration(o.Duration()),
			truncate(o.Detail(), 80),
		})
	}
	summary := upload.Summarize(outcomes)
	footer := []string{"", "Total", summaryLine(summary), "", humanize.IBytes(uint64(summary.Bytes)), "", ""}
	return renderTable(headers, rows, aligns, footer)
}

func summaryLine(summary upload.Summary) string {
	succeeded := summary.Counts[upload.StatusSucceeded]
	if summary.AllSucceeded() {
		return fmt.Sprintf("%d succeeded", succeeded)
	}
	return fmt.Sprintf("%d of %d succeeded", succeeded, summary.Total)
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	if len(value) <= limit {
		return value
	}
	return value[:limit-3] + "..."
}

// outcomeJSON is the --json shape of one outcome.
type outcomeJSON struct {
	Position  int    `json:"position"`
	Name      string `json:"name"`
	Origin    string `json:"origin,omitempty"`
	Status    string `json:"status"`
	Attempts  int    `json:"attempts"`
	Bytes     int64  `json:"bytes"`
	ErrorKind string `json:"error_kind,omitempty"`
	Error     string `json:"error,omitempty"`
	Duration  string `json:"duration"`
}

type runJSON struct {
	RunID     string        `json:"run_id"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Bytes     int64         `json:"bytes"`
	Outcomes  []outcomeJSON `json:"outcomes"`
}

func newRunJSON(runID string, outcomes []upload.Outcome) runJSON {
	summary := upload.Summarize(outcomes)
	out := runJSON{
		RunID:     runID,
		Succeeded: summary.Counts[upload.StatusSucceeded],
		Failed:    summary.Total - summary.Counts[upload.StatusSucceeded],
		Bytes:     summary.Bytes,
		Outcomes:  make([]outcomeJSON, 0, len(outcomes)),
	}
	for _, o := range outcomes {
		out.Outcomes = append(out.Outcomes, outcomeJSON{
			Position:  o.Index + 1,
			Name:      o.Task.Name,
			Origin:    o.Task.Origin,
			Status:    string(o.Status),
			Attempts:  o.Attempts,
			Bytes:     o.Bytes,
			ErrorKind: string(o.Kind),
			Error:     o.Detail(),
			Duration:  o.Duration().String(),
		})
	}
	return out
}
