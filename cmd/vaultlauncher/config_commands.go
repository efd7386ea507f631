package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"vaultlauncher/internal/config"
	"vaultlauncher/internal/ipc"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigShowCommand(ctx))
	configCmd.AddCommand(newConfigSetCommand(ctx))
	configCmd.AddCommand(newConfigValidateCommand(ctx))
	configCmd.AddCommand(newConfigInitCommand())

	return configCmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the launcher configuration and the open vault's settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			cfg := ctx.configValue()
			data, err := toml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			fmt.Fprintf(out, "# %s\n", ctx.configPath)
			fmt.Fprintln(out, strings.TrimRight(string(data), "\n"))

			client, err := ipc.Dial(ctx.socketPath())
			if err != nil {
				return nil
			}
			defer client.Close()
			status, err := client.Status()
			if err != nil {
				return err
			}
			fmt.Fprintln(out)
			renderVaultConfig(out, status)
			return nil
		},
	}
}

func renderVaultConfig(out io.Writer, status *ipc.StatusResponse) {
	if status.Config == nil || status.VaultPath == "" {
		fmt.Fprintln(out, "No vault open")
		return
	}
	c := status.Config
	rows := [][]string{
		{"vault", status.VaultPath},
		{"hostname", c.Hostname},
		{"port", strconv.Itoa(c.Port)},
		{"local", yesNo(c.Local)},
		{"tls", yesNo(c.TLSCert != "" && c.TLSKey != "")},
		{"tls_cert", c.TLSCert},
		{"tls_key", c.TLSKey},
		{"cache_size", strconv.Itoa(c.CacheSize)},
		{"log_requests", yesNo(c.LogRequests)},
		{"debug", yesNo(c.Debug)},
		{"ffmpeg_path", c.FFmpegPath},
		{"ffprobe_path", c.FFprobePath},
		{"video_codec", c.VideoCodec},
		{"locale", status.Locale},
		{"theme", status.Theme},
	}
	fmt.Fprintln(out, renderTable([]string{"Setting", "Value"}, rows, nil))
}

func newConfigSetCommand(ctx *commandContext) *cobra.Command {
	var (
		hostname    string
		port        int
		local       bool
		tls         bool
		tlsCert     string
		tlsKey      string
		cacheSize   int
		logRequests bool
		debug       bool
		ffmpegPath  string
		ffprobePath string
		videoCodec  string
		locale      string
		theme       string
	)
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change settings of the running launcher and the open vault",
		Long: "Change settings of the running launcher and the open vault.\n\n" +
			"Only the flags given are changed. Vault settings restart a running vault daemon.",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			var req ipc.UpdateConfigRequest
			if flags.Changed("host") {
				req.Hostname = &hostname
			}
			if flags.Changed("port") {
				req.Port = &port
			}
			if flags.Changed("local") {
				req.Local = &local
			}
			if flags.Changed("tls") {
				req.TLS = &tls
			}
			if flags.Changed("tls-cert") {
				req.TLSCert = &tlsCert
			}
			if flags.Changed("tls-key") {
				req.TLSKey = &tlsKey
			}
			if flags.Changed("cache-size") {
				req.CacheSize = &cacheSize
			}
			if flags.Changed("log-requests") {
				req.LogRequests = &logRequests
			}
			if flags.Changed("debug") {
				req.Debug = &debug
			}
			if flags.Changed("ffmpeg") {
				req.FFmpegPath = &ffmpegPath
			}
			if flags.Changed("ffprobe") {
				req.FFprobePath = &ffprobePath
			}
			if flags.Changed("video-codec") {
				req.VideoCodec = &videoCodec
			}
			if flags.Changed("locale") {
				req.Locale = &locale
			}
			if flags.Changed("theme") {
				req.Theme = &theme
			}
			if req == (ipc.UpdateConfigRequest{}) {
				return errors.New("nothing to change; see --help for the available settings")
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.UpdateConfig(req)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Settings updated")
				status := &ipc.StatusResponse{Config: resp.Config, Locale: resp.Locale, Theme: resp.Theme}
				if s, err := client.Status(); err == nil {
					status.VaultPath = s.VaultPath
				}
				renderVaultConfig(cmd.OutOrStdout(), status)
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&hostname, "host", "", "Hostname the vault is reached at")
	f.IntVar(&port, "port", 0, "Port of the vault daemon")
	f.BoolVar(&local, "local", true, "Bind the daemon to localhost only")
	f.BoolVar(&tls, "tls", false, "Serve over TLS (needs --tls-cert and --tls-key)")
	f.StringVar(&tlsCert, "tls-cert", "", "TLS certificate file")
	f.StringVar(&tlsKey, "tls-key", "", "TLS private key file")
	f.IntVar(&cacheSize, "cache-size", 0, "Daemon cache size")
	f.BoolVar(&logRequests, "log-requests", false, "Log every daemon request")
	f.BoolVar(&debug, "debug", false, "Run the daemon in debug mode")
	f.StringVar(&ffmpegPath, "ffmpeg", "", "FFmpeg binary")
	f.StringVar(&ffprobePath, "ffprobe", "", "FFprobe binary")
	f.StringVar(&videoCodec, "video-codec", "", "Video encoder passed to the daemon")
	f.StringVar(&locale, "locale", "", "Interface locale ("+choices(config.Locales)+")")
	f.StringVar(&theme, "theme", "", "Interface theme ("+choices(config.Themes)+")")
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Set paths.default_vault to open a vault when the launcher starts.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Validate configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load(flagValue(ctx.configFlag))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", path)
			if !exists {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

func choices(values []string) string {
	names := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			v = `"" for system default`
		}
		names = append(names, v)
	}
	return strings.Join(names, ", ")
}
