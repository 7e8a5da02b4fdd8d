package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// Admin login form limits, applied after trimming.
const (
	maxUsernameLen = 50
	maxPasswordLen = 100
)

var (
	errUsernameLength = fmt.Errorf("username must be 1 to %d characters", maxUsernameLen)
	errPasswordLength = fmt.Errorf("password must be 1 to %d characters", maxPasswordLen)
)

func validateLoginForm(username, password string) error {
	if n := utf8.RuneCountInString(strings.TrimSpace(username)); n == 0 || n > maxUsernameLen {
		return errUsernameLength
	}
	if n := utf8.RuneCountInString(strings.TrimSpace(password)); n == 0 || n > maxPasswordLen {
		return errPasswordLength
	}
	return nil
}

// readPassword reads the first line of stdin when fromStdin is set, and
// otherwise prompts on the terminal. Passwords are never taken from argv.
func readPassword(cmd *cobra.Command, fromStdin, confirm bool) (string, error) {
	in := cmd.InOrStdin()
	if fromStdin {
		return readLine(in)
	}

	f, ok := in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return "", errors.New("no password provided (use --password-stdin or run in a terminal)")
	}

	cmd.PrintErr("Password: ")
	pass1, err := term.ReadPassword(int(f.Fd()))
	cmd.PrintErrln()
	if err != nil {
		return "", err
	}
	if len(pass1) == 0 {
		return "", errors.New("password is empty")
	}
	if !confirm {
		return string(pass1), nil
	}

	cmd.PrintErr("Confirm password: ")
	pass2, err := term.ReadPassword(int(f.Fd()))
	cmd.PrintErrln()
	if err != nil {
		return "", err
	}
	if string(pass1) != string(pass2) {
		return "", errors.New("passwords do not match")
	}
	return string(pass1), nil
}

func readLine(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 64*1024)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return "", errors.New("password is empty")
	}
	password := strings.TrimRight(scanner.Text(), "\r\n")
	if password == "" {
		return "", errors.New("password is empty")
	}
	return password, nil
}
