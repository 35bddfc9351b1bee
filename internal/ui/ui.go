// Package ui provides terminal presentation: styles, TTY detection and the
// interactive search TUI.
package ui

import (
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// IsTTY checks if w is a terminal.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// DetectNoColor checks if NO_COLOR environment variable is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI checks if running in a CI environment.
func DetectCI() bool {
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"} {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}

// StylesFor picks coloured styles only for an interactive terminal that
// has not opted out of colour.
func StylesFor(w io.Writer) Styles {
	return GetStyles(!IsTTY(w) || DetectNoColor() || DetectCI())
}

// Truncate shortens s to at most n runes, marking the cut with "...".
// Line breaks and tabs become spaces.
func Truncate(s string, n int) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', '\t':
			return ' '
		}
		return r
	}, s)
	r := []rune(s)
	switch {
	case n <= 0:
		return ""
	case len(r) <= n:
		return s
	case n <= 3:
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
