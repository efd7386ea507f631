package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"vaultlauncher/internal/config"
	"vaultlauncher/internal/ipc"
	"vaultlauncher/internal/worker"
)

func newVaultCommands(ctx *commandContext) []*cobra.Command {
	var (
		create   bool
		force    bool
		hostname string
		port     int
		local    bool
		username string
	)
	openCmd := &cobra.Command{
		Use:   "open <vault-path>",
		Short: "Open a vault in the running launcher",
		Long: "Open a vault in the running launcher.\n\n" +
			"The launcher may need answers before it can open the vault: --create for a\n" +
			"missing folder, --force for a locked vault, --port for a vault without a\n" +
			"launcher configuration and --user for a folder without an account.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			req := ipc.OpenRequest{
				Path:     path,
				Create:   create,
				Force:    force,
				Hostname: hostname,
				Port:     port,
				Local:    local,
			}
			if username != "" {
				req.Username, req.Password, err = credentials(ctx, cmd, username)
				if err != nil {
					return err
				}
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Open(req)
				if err != nil {
					return err
				}
				return reportOpen(cmd.OutOrStdout(), resp)
			})
		},
	}
	openCmd.Flags().BoolVar(&create, "create", false, "Create the folder when it does not exist")
	openCmd.Flags().BoolVar(&force, "force", false, "Open even if another launcher holds the vault lock")
	openCmd.Flags().StringVar(&hostname, "host", "localhost", "Hostname of a new launcher configuration")
	openCmd.Flags().IntVar(&port, "port", 0, "Port of a new launcher configuration")
	openCmd.Flags().BoolVar(&local, "local", true, "Bind a new configuration to localhost only")
	openCmd.Flags().StringVar(&username, "user", "", "Account to create in an empty vault folder")

	closeCmd := &cobra.Command{
		Use:   "close",
		Short: "Stop the vault daemon and close the vault",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.CloseVault(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Vault closed")
				return nil
			})
		},
	}

	return []*cobra.Command{openCmd, closeCmd}
}

func reportOpen(out io.Writer, resp *ipc.OpenResponse) error {
	switch worker.LauncherStatus(resp.Status) {
	case worker.StatusOpen:
		fmt.Fprintf(out, "Vault open: %s\n", resp.VaultPath)
		return nil
	case worker.StatusCreateAsk, worker.StatusLockAsk, worker.StatusInitialConfig, worker.StatusCreateVaultAsk:
		fmt.Fprintln(out, describeLauncherStatus(resp.Status))
		return nil
	}
	if resp.Error != nil {
		return fmt.Errorf("open vault: %s", problemText(resp.Error))
	}
	fmt.Fprintf(out, "Vault %s\n", describeLauncherStatus(resp.Status))
	return nil
}
