// Package ui renders CLI output with optional ANSI color.
package ui

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// ANSI256 color codes.
const (
	colorGreen  = 71
	colorYellow = 179
	colorRed    = 167
	colorMuted  = 245
	colorAccent = 74
)

var noColor = !ShouldUseColor()

// ShouldUseColor reports whether ANSI colors should be used on stdout.
// It respects NO_COLOR, CLICOLOR_FORCE, CLICOLOR and TTY detection.
func ShouldUseColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if strings.TrimSpace(os.Getenv("CLICOLOR_FORCE")) == "1" {
		return true
	}
	if strings.TrimSpace(os.Getenv("CLICOLOR")) == "0" {
		return false
	}
	return IsTerminal(os.Stdout)
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// SetColor overrides color detection, e.g. for --no-color.
func SetColor(enabled bool) {
	noColor = !enabled
}

func render(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent styles headings.
func RenderAccent(s string) string { return render(colorAccent, s) }

// RenderMuted styles secondary details.
func RenderMuted(s string) string { return render(colorMuted, s) }

// RenderState colors a connection state: open is green, connecting is
// yellow, close and anything unknown is red.
func RenderState(state string) string {
	switch state {
	case "open":
		return render(colorGreen, state)
	case "connecting":
		return render(colorYellow, state)
	default:
		return render(colorRed, state)
	}
}

// RenderEnabled renders a channel's enabled flag.
func RenderEnabled(enabled bool) string {
	if enabled {
		return render(colorGreen, "enabled")
	}
	return render(colorMuted, "disabled")
}
