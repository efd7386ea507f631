package deps

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"vaultlauncher/internal/config"
)

var (
	// ErrDaemonMissing means no vault daemon binary was found.
	ErrDaemonMissing = errors.New("vault daemon binary not found")
	// ErrFrontendMissing means no frontend directory was found.
	ErrFrontendMissing = errors.New("vault frontend not found")
	// ErrFFmpegMissing means no ffmpeg binary was found.
	ErrFFmpegMissing = errors.New("ffmpeg binary not found")
	// ErrFFprobeMissing means no ffprobe binary was found.
	ErrFFprobeMissing = errors.New("ffprobe binary not found")
)

// Requirement defines an external program the launcher relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		switch {
		case cmd == "":
			status.Detail = "command not configured"
		default:
			if _, err := exec.LookPath(cmd); err != nil {
				status.Detail = fmt.Sprintf("binary %q not found", cmd)
			} else {
				status.Available = true
			}
		}
		results = append(results, status)
	}
	return results
}

// Resolved holds the located programs.
type Resolved struct {
	Daemon   string
	Frontend string
	FFmpeg   config.FFmpeg
}

// Resolve locates every program the daemon needs, in the order the fatal
// startup checks run. The first missing program is returned as one of the
// Err*Missing sentinels wrapped with the paths that were tried.
func Resolve(cfg *config.Config) (Resolved, error) {
	exeDir := executableDir()
	var out Resolved

	daemon, ok := findFile(binaryCandidates(cfg.Binaries.Daemon, exeDir, "pmvd", filepath.Join(exeDir, "..", "backend"))...)
	if !ok {
		return out, fmt.Errorf("%w (configured %q)", ErrDaemonMissing, cfg.Binaries.Daemon)
	}
	out.Daemon = daemon

	frontend, ok := findDir(cfg.Binaries.Frontend, filepath.Join(exeDir, "www"), "/usr/lib/pmv/www", filepath.Join(exeDir, "..", "frontend", "dist"))
	if !ok {
		return out, fmt.Errorf("%w (configured %q)", ErrFrontendMissing, cfg.Binaries.Frontend)
	}
	out.Frontend = frontend

	ffmpeg, ok := findFile(binaryCandidates(cfg.FFmpeg.FFmpegPath, exeDir, "ffmpeg", "")...)
	if !ok {
		return out, fmt.Errorf("%w (configured %q)", ErrFFmpegMissing, cfg.FFmpeg.FFmpegPath)
	}
	ffprobe, ok := findFile(binaryCandidates(cfg.FFmpeg.FFprobePath, exeDir, "ffprobe", "")...)
	if !ok {
		return out, fmt.Errorf("%w (configured %q)", ErrFFprobeMissing, cfg.FFmpeg.FFprobePath)
	}
	out.FFmpeg = config.FFmpeg{
		FFmpegPath:  ffmpeg,
		FFprobePath: ffprobe,
		VideoCodec:  cfg.FFmpeg.VideoCodec,
	}
	return out, nil
}

func binaryCandidates(configured, exeDir, name, extraDir string) []string {
	candidates := []string{configured, filepath.Join(exeDir, "bin", executableName(name))}
	if runtime.GOOS != "windows" {
		candidates = append(candidates, filepath.Join("/usr/bin", name))
	}
	if extraDir != "" {
		candidates = append(candidates, filepath.Join(extraDir, executableName(name)))
	}
	if resolved, err := exec.LookPath(name); err == nil {
		candidates = append(candidates, resolved)
	}
	return candidates
}

func findFile(candidates ...string) (string, bool) {
	for _, candidate := range candidates {
		if strings.TrimSpace(candidate) == "" {
			continue
		}
		if info, err := os.Stat(candidate); err == nil && isExecutable(info) {
			return filepath.Clean(candidate), true
		}
	}
	return "", false
}

func findDir(candidates ...string) (string, bool) {
	for _, candidate := range candidates {
		if strings.TrimSpace(candidate) == "" {
			continue
		}
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return filepath.Clean(candidate), true
		}
	}
	return "", false
}

func executableDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

func executableName(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
