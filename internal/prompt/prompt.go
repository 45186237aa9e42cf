// Package prompt reads credentials and confirmations from the controlling
// terminal, kept separate so the core container logic never talks to the
// terminal directly.
package prompt

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/warchs/rstf/internal/rerr"
)

// Password prompts for a password on the controlling terminal without
// echoing it back.
func Password() (string, error) {
	fmt.Fprint(os.Stderr, "Enter password: ")
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", rerr.Wrap(rerr.Credential, "read password", err)
	}
	return string(b), nil
}

// Confirm asks a yes/no question, defaulting to "no" on anything but an
// explicit "y"/"yes" (case-insensitive).
func Confirm(question string) bool {
	fmt.Fprintf(os.Stderr, "%s (y/N): ", question)
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
