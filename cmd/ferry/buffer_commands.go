package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"ferry/internal/buffer"
)

func newBufferCommand(ctx *commandContext) *cobra.Command {
	bufferCmd := &cobra.Command{
		Use:   "buffer",
		Short: "Manage the local buffer directory",
	}
	bufferCmd.AddCommand(newBufferAddCommand(ctx))
	bufferCmd.AddCommand(newBufferListCommand(ctx))
	bufferCmd.AddCommand(newBufferCleanCommand(ctx))
	return bufferCmd
}

func newBufferAddCommand(ctx *commandContext) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "add <file>...",
		Short: "Copy files into the buffer for a later `ferry upload --buffer`",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if name != "" && len(args) > 1 {
				return fmt.Errorf("--name applies to a single file")
			}
			lock, err := acquireRunLock(cfg)
			if err != nil {
				return err
			}
			defer lock.Release()
			out := cmd.OutOrStdout()
			for _, arg := range args {
				dst, err := buffer.Add(cfg.Paths.BufferDir, strings.TrimSpace(arg), name)
				if err != nil {
					return fmt.Errorf("buffer %s: %w", arg, err)
				}
				fmt.Fprintf(out, "Buffered %s\n", dst)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Destination name inside the buffer")
	return cmd
}

func newBufferListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List buffered files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			entries, err := buffer.List(cfg.Paths.BufferDir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintf(out, "Buffer %s is empty\n", cfg.Paths.BufferDir)
				return nil
			}
			rows := make([][]string, 0, len(entries))
			var total uint64
			for _, e := range entries {
				total += uint64(e.Size)
				rows = append(rows, []string{e.Name, humanize.IBytes(uint64(e.Size)), humanize.Time(e.ModTime)})
			}
			footer := []string{fmt.Sprintf("%d files", len(entries)), humanize.IBytes(total), ""}
			fmt.Fprintln(out, renderTable(
				[]string{"File", "Size", "Modified"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignLeft},
				footer,
			))
			return nil
		},
	}
}

func newBufferCleanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Delete everything in the buffer directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			lock, err := acquireRunLock(cfg)
			if err != nil {
				return err
			}
			defer lock.Release()
			if err := buffer.Clean(cfg.Paths.BufferDir); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Buffer %s cleaned\n", cfg.Paths.BufferDir)
			return nil
		},
	}
}
