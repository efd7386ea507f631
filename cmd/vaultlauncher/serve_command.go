package main

import (
	"strings"

	"github.com/spf13/cobra"

	"vaultlauncher/internal/config"
	"vaultlauncher/internal/daemonrun"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var development bool
	cmd := &cobra.Command{
		Use:          "serve [vault-path]",
		Short:        "Run the launcher in the foreground",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			opts := daemonrun.Options{
				ConfigPath:  ctx.configPath,
				SocketPath:  flagValue(ctx.socketFlag),
				LogLevel:    logLevel,
				Development: development,
			}
			if len(args) == 1 {
				vault, err := config.ExpandPath(args[0])
				if err != nil {
					return err
				}
				opts.VaultPath = vault
			}
			return daemonrun.Run(cmd.Context(), cfg, opts)
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&development, "dev", false, "Use development logging output")
	return cmd
}

func flagValue(flag *string) string {
	if flag == nil {
		return ""
	}
	return strings.TrimSpace(*flag)
}
