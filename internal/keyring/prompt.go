package keyring

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// PromptToken prompts the user to enter the daemon token without echo,
// preferring the controlling terminal over stdin.
func PromptToken() (string, error) {
	fmt.Fprint(os.Stderr, "Enter remote access token: ")

	fd := int(os.Stdin.Fd())
	tty, err := os.Open("/dev/tty")
	if err == nil {
		defer tty.Close()
		fd = int(tty.Fd())
	}

	tokenBytes, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)

	if err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	return string(tokenBytes), nil
}
