// Package util carries small terminal-environment helpers the logger needs:
// TTY detection and color-support resolution.
package util

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// IsTerminal reports whether stdout is attached to a terminal, using
// golang.org/x/term (already pulled in transitively by pterm) rather than
// adding a second TTY-detection library for the same check.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// ShouldUseColors determines whether styled terminal output should be used,
// honouring the NO_COLOR/FORCE_COLOR conventions (https://no-color.org/)
// plus a PROXYWHIRL_FORCE_COLORS override.
func ShouldUseColors() bool {
	if noColor := os.Getenv("NO_COLOR"); noColor != "" {
		return false
	}
	if forceColor := os.Getenv("FORCE_COLOR"); forceColor != "" {
		return forceColor != "0"
	}
	if forced := os.Getenv("PROXYWHIRL_FORCE_COLORS"); forced != "" {
		return strings.ToLower(forced) == "true"
	}
	return IsTerminal()
}
