package main

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"vaultlauncher/internal/config"
	"vaultlauncher/internal/daemonctl"
	"vaultlauncher/internal/ipc"
	"vaultlauncher/internal/worker"
)

func newBackupCommand(ctx *commandContext) *cobra.Command {
	backupCmd := &cobra.Command{
		Use:   "backup",
		Short: "Back up the open vault",
	}

	var wait bool
	runCmd := &cobra.Command{
		Use:   "run [destination]",
		Short: "Copy new and changed vault files to the destination (default backup.path)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var dest string
			if len(args) == 1 {
				expanded, err := config.ExpandPath(args[0])
				if err != nil {
					return err
				}
				dest = expanded
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Backup(ipc.BackupRequest{Path: dest, Wait: wait})
				if err != nil {
					return err
				}
				return reportBackup(cmd, resp.Backup)
			})
		},
	}
	runCmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait for the backup to finish")

	cancelCmd := &cobra.Command{
		Use:   "cancel",
		Short: "Cancel the running backup",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.CancelBackup()
				if err != nil {
					return err
				}
				if resp.Cancelled {
					fmt.Fprintln(cmd.OutOrStdout(), "Backup cancellation requested")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "No backup is running")
				}
				return nil
			})
		},
	}

	var limit int
	var asJSON bool
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List recent backup runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := daemonctl.ListHistory(cmd.Context(), ctx.socketPath(), ctx.configValue(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No backups recorded")
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Started", "Trigger", "Status", "Files", "Size", "Destination"},
				historyRows(runs),
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
			))
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
	historyCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")
	historyCmd.Flags().BoolVar(&asJSON, "json", false, "Print the runs as JSON")

	backupCmd.AddCommand(runCmd, cancelCmd, historyCmd)
	return backupCmd
}

func historyRows(runs []ipc.HistoryRun) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		status := run.Status
		if run.ErrorKind != "" {
			status += " (" + run.ErrorKind + ")"
		}
		rows = append(rows, []string{
			strconv.FormatInt(run.ID, 10),
			formatWhen(run.StartedAt),
			run.Trigger,
			status,
			strconv.FormatInt(run.Files, 10),
			humanize.IBytes(uint64(run.Bytes)),
			run.BackupPath,
		})
	}
	return rows
}

func reportBackup(cmd *cobra.Command, b ipc.BackupState) error {
	stdout := cmd.OutOrStdout()
	switch worker.TaskStatus(b.Status) {
	case worker.TaskRunning:
		fmt.Fprintf(stdout, "Backup running: %s\n", progressText(b.Progress))
	case worker.TaskSuccess:
		fmt.Fprintf(stdout, "Backup finished: %d files copied (%s) to %s\n", b.Files, humanize.IBytes(uint64(b.Bytes)), b.Path)
	case worker.TaskError:
		return fmt.Errorf("backup failed: %s", problemText(&ipc.Problem{Kind: b.ErrorKind, Detail: b.Detail}))
	default:
		fmt.Fprintf(stdout, "Backup %s\n", b.Status)
	}
	return nil
}
