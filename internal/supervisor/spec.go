package supervisor

import (
	"strconv"

	"vaultlauncher/internal/config"
	"vaultlauncher/internal/vaultconfig"
)

// LaunchSpec is everything needed to start one daemon instance.
type LaunchSpec struct {
	Binary       string
	VaultPath    string
	FrontendPath string
	FFmpeg       config.FFmpeg
	Config       vaultconfig.LauncherConfig
	// OpenBrowser asks the owner to open the vault URL once healthy.
	OpenBrowser bool
}

// Args builds the daemon command line for launchTag.
func (s LaunchSpec) Args(launchTag string) []string {
	bind := ""
	if s.Config.Local {
		bind = "127.0.0.1"
	}
	cacheSize := s.Config.CacheSize
	if cacheSize == 0 {
		cacheSize = vaultconfig.DefaultCacheSize
	}
	args := []string{
		"--daemon",
		"--skip-lock",
		"--clean",
		"--vault-path", s.VaultPath,
		"--port", strconv.Itoa(s.Config.Port),
		"--bind", bind,
		"--launch-tag", launchTag,
		"--cache-size", strconv.Itoa(cacheSize),
	}
	if s.Config.LogRequests {
		args = append(args, "--log-requests")
	}
	if s.Config.Debug {
		args = append(args, "--debug")
	}
	return args
}

// Env returns the variables added to the daemon environment.
func (s LaunchSpec) Env() []string {
	cert, key := "", ""
	if s.Config.HasTLS() {
		cert, key = s.Config.SSLCert, s.Config.SSLKey
	}
	return []string{
		"FFMPEG_PATH=" + s.FFmpeg.FFmpegPath,
		"FFPROBE_PATH=" + s.FFmpeg.FFprobePath,
		"FFMPEG_VIDEO_ENCODER=" + s.FFmpeg.VideoCodec,
		"FRONTEND_PATH=" + s.FrontendPath,
		"SSL_CERT=" + cert,
		"SSL_KEY=" + key,
	}
}
