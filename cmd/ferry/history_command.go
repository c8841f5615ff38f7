package main

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"ferry/internal/journal"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent upload outcomes from the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := journal.Open(cfg)
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			defer store.Close()

			entries, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				if entries == nil {
					entries = []journal.Entry{}
				}
				return writeJSON(cmd, entries)
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No uploads recorded")
				return nil
			}
			fmt.Fprintln(out, renderHistory(entries))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of outcomes to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print outcomes as JSON")
	return cmd
}

func renderHistory(entries []journal.Entry) string {
	headers := []string{"Finished", "File", "Status", "Attempts", "Sent", "Error"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		detail := e.ErrorKind
		if e.ErrorMessage != "" {
			detail = fmt.Sprintf("%s: %s", e.ErrorKind, truncate(e.ErrorMessage, 60))
		}
		finished := "-"
		if !e.FinishedAt.IsZero() {
			finished = humanize.Time(e.FinishedAt)
		}
		rows = append(rows, []string{
			finished,
			e.Name,
			humanLabel(e.Status),
			strconv.Itoa(e.Attempts),
			humanize.IBytes(uint64(max(e.Bytes, 0))),
			detail,
		})
	}
	return renderTable(headers, rows, aligns, nil)
}
