package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"vaultlauncher/internal/ipc"
	"vaultlauncher/internal/tools"
	"vaultlauncher/internal/worker"
)

func newToolCommand(ctx *commandContext) *cobra.Command {
	toolCmd := &cobra.Command{
		Use:   "tool",
		Short: "Run vault maintenance tools",
	}

	var wait bool
	var toolUser string
	runCmd := &cobra.Command{
		Use:       "run <clean|recover>",
		Short:     "Stop the vault daemon and run a maintenance tool",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"clean", "recover"},
		RunE: func(cmd *cobra.Command, args []string) error {
			username, password := "", ""
			if strings.EqualFold(args[0], string(tools.Clean)) {
				var err error
				if username, password, err = credentials(ctx, cmd, toolUser); err != nil {
					return err
				}
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.RunTool(ipc.RunToolRequest{Tool: args[0], Username: username, Password: password, Wait: wait})
				if err != nil {
					return err
				}
				return reportTool(cmd, resp.Tool)
			})
		},
	}
	runCmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait for the tool to finish")
	runCmd.Flags().StringVarP(&toolUser, "user", "u", "", "Account name (clean needs the vault credentials)")

	cancelCmd := &cobra.Command{
		Use:   "cancel",
		Short: "Cancel the running maintenance tool",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.CancelTool()
				if err != nil {
					return err
				}
				if resp.Cancelled {
					fmt.Fprintln(cmd.OutOrStdout(), "Tool cancellation requested")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "No tool is running")
				}
				return nil
			})
		},
	}

	toolCmd.AddCommand(runCmd, cancelCmd)
	return toolCmd
}

func reportTool(cmd *cobra.Command, t ipc.ToolState) error {
	stdout := cmd.OutOrStdout()
	switch worker.TaskStatus(t.Status) {
	case worker.TaskRunning:
		fmt.Fprintf(stdout, "Tool %s running\n", t.Tool)
	case worker.TaskSuccess:
		fmt.Fprintf(stdout, "Tool %s finished\n", t.Tool)
	case worker.TaskError:
		return fmt.Errorf("tool %s failed: %s", t.Tool, t.Detail)
	default:
		fmt.Fprintf(stdout, "Tool %s %s\n", t.Tool, t.Status)
	}
	return nil
}
