// Package ui provides terminal styling and table rendering for the CLI's
// human-readable output mode, the way BeadsLog/internal/ui does for bd's
// non---json output. The color palette and Render* helpers are not copied
// from a single located source file in that package (grep for their
// definition site came up empty across internal/ui); they are rebuilt here
// to match how cmd/bd/human.go, internal/ui/table.go and internal/ui/search.go
// call them (ui.RenderBold, ui.RenderAccent, ColorAccent/ColorMuted as
// lipgloss foreground colors on table headers and tree styles).
package ui

import (
	"os"

	"golang.org/x/term"
)

// IsTerminal returns true if stdout is connected to a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// ShouldUseColor follows the same environment conventions BeadsLog's CLI
// does: NO_COLOR and CLICOLOR=0 disable it, CLICOLOR_FORCE forces it, and
// otherwise it follows TTY detection.
func ShouldUseColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("CLICOLOR") == "0" {
		return false
	}
	if os.Getenv("CLICOLOR_FORCE") != "" {
		return true
	}
	return IsTerminal()
}

// GetWidth returns the terminal width, or a sane default when it can't be
// determined (piped output, non-TTY CI runs).
func GetWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}
