package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"vaultlauncher/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		lines  int
		follow bool
		daemon bool
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the launcher log or the newest vault daemon log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			path := cfg.LogFilePath()
			if daemon {
				newest, err := logs.Newest(cfg.DaemonLogDir(), "*.log")
				if err != nil {
					return fmt.Errorf("find daemon log: %w", err)
				}
				if newest == "" {
					fmt.Fprintln(cmd.OutOrStdout(), "No daemon logs yet")
					return nil
				}
				path = newest
			}

			out := cmd.OutOrStdout()
			tail, offset, err := logs.Last(path, lines)
			if err != nil {
				return err
			}
			for _, line := range tail {
				fmt.Fprintln(out, line)
			}
			if !follow {
				return nil
			}
			return logs.Follow(cmd.Context(), path, offset, func(line string) {
				fmt.Fprintln(out, line)
			})
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines")
	cmd.Flags().BoolVar(&daemon, "daemon", false, "Show the newest vault daemon log instead")
	return cmd
}
