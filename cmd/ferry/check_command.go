package main

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"ferry/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify local directories and FTP connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.newLogger(uuid.NewString())
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			out := cmd.OutOrStdout()
			colorize := isTerminal(out)
			fmt.Fprintf(out, "Checking %s\n", cfg.Address())
			results := preflight.RunAll(cmd.Context(), cfg, ctx.dialer, logger)
			for _, r := range results {
				kind := statusOK
				if !r.Passed {
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
				if !r.Passed && r.Hint != "" {
					fmt.Fprintf(out, "%s%-*s %s\n", statusIndent, statusLabelWidth, "", "hint: "+r.Hint)
				}
			}
			if !preflight.Passed(results) {
				return errors.New("check failed")
			}
			fmt.Fprintln(out, "All checks passed")
			return nil
		},
	}
}
