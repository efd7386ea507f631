// Package desktop hands URLs and files to the user's desktop environment and
// wraps the system clipboard.
package desktop

import (
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/atotto/clipboard"
)

// ErrEmptyTarget is returned when there is nothing to open.
var ErrEmptyTarget = errors.New("nothing to open")

// Opener launches URLs and files with their default application.
type Opener interface {
	Open(target string) error
}

// Clipboard stores text on the system clipboard.
type Clipboard interface {
	WriteText(text string) error
}

// System is the Opener and Clipboard backed by the host OS.
type System struct {
	goos     string
	start    func(name string, args ...string) error
	writeAll func(string) error
}

// NewSystem returns a System for the running OS.
func NewSystem() *System {
	s := &System{goos: runtime.GOOS, start: startDetached}
	if !clipboard.Unsupported {
		s.writeAll = clipboard.WriteAll
	}
	return s
}

// OpenCommand returns the command that opens target on goos.
func OpenCommand(goos, target string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{target}
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", target}
	default:
		return "xdg-open", []string{target}
	}
}

// Open launches target without waiting for the application to exit.
func (s *System) Open(target string) error {
	target = strings.TrimSpace(target)
	if target == "" {
		return ErrEmptyTarget
	}
	name, args := OpenCommand(s.goos, target)
	if err := s.start(name, args...); err != nil {
		return fmt.Errorf("open %s: %w", target, err)
	}
	return nil
}

// WriteText implements Clipboard.
func (s *System) WriteText(text string) error {
	if s.writeAll == nil {
		return errors.New("clipboard unsupported on this system")
	}
	if err := s.writeAll(text); err != nil {
		return fmt.Errorf("write clipboard: %w", err)
	}
	return nil
}

func startDetached(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
