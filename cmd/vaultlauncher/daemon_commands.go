package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"vaultlauncher/internal/ipc"
	"vaultlauncher/internal/worker"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Control the vault daemon of the open vault",
	}

	var openBrowser bool
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start or restart the vault daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Start(openBrowser)
				if err != nil {
					return err
				}
				return reportDaemon(cmd, resp.Daemon)
			})
		},
	}
	startCmd.Flags().BoolVar(&openBrowser, "browser", false, "Open the vault in a browser once it is running")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the vault daemon and keep the vault open",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Stop()
				if err != nil {
					return err
				}
				return reportDaemon(cmd, resp.Daemon)
			})
		},
	}

	daemonCmd.AddCommand(startCmd, stopCmd)
	return daemonCmd
}

func reportDaemon(cmd *cobra.Command, d ipc.DaemonState) error {
	stdout := cmd.OutOrStdout()
	switch worker.DaemonStatus(d.Status) {
	case worker.DaemonStatusRunning:
		fmt.Fprintf(stdout, "Vault daemon running at %s\n", d.URL)
	case worker.DaemonStatusStopped:
		fmt.Fprintln(stdout, "Vault daemon stopped")
	case worker.DaemonStatusError:
		if d.LogFile != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "See %s\n", d.LogFile)
		}
		return fmt.Errorf("vault daemon failed: %s", problemText(&ipc.Problem{Kind: d.ErrorKind, Detail: d.Detail}))
	default:
		fmt.Fprintf(stdout, "Vault daemon %s\n", d.Status)
	}
	return nil
}
