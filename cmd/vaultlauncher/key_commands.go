package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"vaultlauncher/internal/ipc"
)

func newKeyCommand(ctx *commandContext) *cobra.Command {
	keyCmd := &cobra.Command{
		Use:   "key",
		Short: "Export or use the vault encryption key",
	}

	var exportUser string
	var copyKey bool
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Print the vault key after checking the account password",
		RunE: func(cmd *cobra.Command, args []string) error {
			username, password, err := credentials(ctx, cmd, exportUser)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ExportKey(ipc.ExportKeyRequest{Username: username, Password: password, Copy: copyKey})
				if err != nil {
					return err
				}
				if resp.Error != nil {
					return fmt.Errorf("export key: %s", problemText(resp.Error))
				}
				fmt.Fprintln(cmd.OutOrStdout(), resp.Key)
				if copyKey {
					fmt.Fprintln(cmd.ErrOrStderr(), "Key copied to the clipboard")
				}
				return nil
			})
		},
	}
	exportCmd.Flags().StringVarP(&exportUser, "user", "u", "", "Account name")
	exportCmd.Flags().BoolVar(&copyKey, "copy", false, "Also copy the key to the clipboard")

	var recoverUser string
	var keyValue string
	recoverCmd := &cobra.Command{
		Use:   "recover",
		Short: "Replace the vault account using the vault key",
		RunE: func(cmd *cobra.Command, args []string) error {
			key := strings.TrimSpace(keyValue)
			if key == "" {
				line, err := readLine(ctx, cmd, "Vault key")
				if err != nil {
					return err
				}
				key = strings.TrimSpace(line)
			}
			if key == "" {
				return errors.New("vault key is required")
			}
			username, password, err := credentials(ctx, cmd, recoverUser)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.RecoverKey(ipc.RecoverKeyRequest{Key: key, Username: username, Password: password})
				if err != nil {
					return err
				}
				if resp.Error != nil {
					return fmt.Errorf("recover vault: %s", problemText(resp.Error))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Vault account reset to %s\n", username)
				return nil
			})
		},
	}
	recoverCmd.Flags().StringVarP(&recoverUser, "user", "u", "", "New account name")
	recoverCmd.Flags().StringVar(&keyValue, "key", "", "Vault key in hex (prompted when omitted)")

	keyCmd.AddCommand(exportCmd, recoverCmd)
	return keyCmd
}
