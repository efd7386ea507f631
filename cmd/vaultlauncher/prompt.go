package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const passwordEnv = "VAULTLAUNCHER_PASSWORD"

// readPassword returns the password from the environment, the terminal with
// echo disabled, or the next line of piped input.
func readPassword(ctx *commandContext, cmd *cobra.Command, label string) (string, error) {
	if value, ok := os.LookupEnv(passwordEnv); ok {
		return value, nil
	}
	if file, ok := cmd.InOrStdin().(*os.File); ok && isatty.IsTerminal(file.Fd()) {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: ", label)
		data, err := term.ReadPassword(int(file.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
		}
		return string(data), nil
	}
	return readLine(ctx, cmd, label)
}

// readLine reads one answer, prompting only when stdin is a terminal.
func readLine(ctx *commandContext, cmd *cobra.Command, label string) (string, error) {
	if file, ok := cmd.InOrStdin().(*os.File); ok && isatty.IsTerminal(file.Fd()) {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: ", label)
	}
	line, err := ctx.lineReader(cmd).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if errors.Is(err, io.EOF) {
			return "", fmt.Errorf("read %s: no input", strings.ToLower(label))
		}
		return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// credentials resolves a username and password, asking for what is missing.
func credentials(ctx *commandContext, cmd *cobra.Command, username string) (string, string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		value, err := readLine(ctx, cmd, "Username")
		if err != nil {
			return "", "", err
		}
		username = strings.TrimSpace(value)
	}
	if username == "" {
		return "", "", errors.New("username is required")
	}
	password, err := readPassword(ctx, cmd, "Password")
	if err != nil {
		return "", "", err
	}
	return username, password, nil
}
