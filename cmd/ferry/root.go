package main

import (
	"github.com/spf13/cobra"

	"ferry/internal/ftpsession"
)

func newRootCommand() *cobra.Command {
	return newRootCommandWithDialer(nil)
}

// newRootCommandWithDialer builds the command tree. A nil dialer uses the
// real FTP client.
func newRootCommandWithDialer(dialer ftpsession.Dialer) *cobra.Command {
	var configFlag string
	var logLevelFlag string

	ctx := newCommandContext(&configFlag, &logLevelFlag, dialer)

	rootCmd := &cobra.Command{
		Use:           "ferry",
		Short:         "Resilient chunked FTP uploader",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Override logging.level (debug, info, warn, error)")

	rootCmd.AddCommand(newUploadCommand(ctx))
	rootCmd.AddCommand(newCheckCommand(ctx))
	rootCmd.AddCommand(newHistoryCommand(ctx))
	rootCmd.AddCommand(newBufferCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
