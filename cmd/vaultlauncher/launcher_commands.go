package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"vaultlauncher/internal/config"
	"vaultlauncher/internal/daemonctl"
	"vaultlauncher/internal/ipc"
)

func newLauncherCommands(ctx *commandContext) []*cobra.Command {
	var logLevel string
	startCmd := &cobra.Command{
		Use:   "start [vault-path]",
		Short: "Start the launcher in the background",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve executable: %w", err)
			}
			var vault string
			if len(args) == 1 {
				if vault, err = config.ExpandPath(args[0]); err != nil {
					return err
				}
			}

			result, err := daemonctl.EnsureRunning(ctx.socketPath(), exe, daemonctl.LaunchOptions{
				SocketPath: flagValue(ctx.socketFlag),
				ConfigPath: flagValue(ctx.configFlag),
				VaultPath:  vault,
				LogLevel:   logLevel,
			}, 10*time.Second)
			if err != nil {
				return err
			}

			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintln(stdout, "Launcher started")
				if vault != "" {
					fmt.Fprintf(stdout, "Opening %s (see `vaultlauncher status`)\n", vault)
				}
				return nil
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Launcher already running")
			}
			if vault == "" {
				return nil
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Open(ipc.OpenRequest{Path: vault})
				if err != nil {
					return err
				}
				return reportOpen(stdout, resp)
			})
		},
	}
	startCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level of the launched process")

	stopCmd := &cobra.Command{
		Use:     "stop",
		Aliases: []string{"quit"},
		Short:   "Stop the vault daemon and terminate the launcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(ctx.socketPath(), ctx.configValue(), 10*time.Second)
			if errors.Is(err, daemonctl.ErrNotRunning) {
				fmt.Fprintln(stdout, "Launcher is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if !result.Acknowledged {
				fmt.Fprintln(stdout, "Stop request sent")
			}
			if result.ForcedKill && result.PID > 0 {
				fmt.Fprintf(stdout, "Killed launcher process (pid %d); the vault lock may need --force on next open\n", result.PID)
			}
			fmt.Fprintln(stdout, "Launcher stopped")
			return nil
		},
	}

	var asJSON bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show launcher, vault and backup status",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.socketPath(), ctx.configValue())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, snap)
			}
			stdout := cmd.OutOrStdout()
			renderStatus(stdout, snap, shouldColorize(stdout))
			return nil
		},
	}
	statusCmd.Flags().BoolVar(&asJSON, "json", false, "Print the status as JSON")

	return []*cobra.Command{startCmd, stopCmd, statusCmd}
}
