package ui

import "github.com/charmbracelet/lipgloss"

// Palette mirrors the accent/muted/warn/pass split BeadsLog's table and
// graph rendering lean on throughout internal/ui.
var (
	ColorAccent = lipgloss.AdaptiveColor{Light: "25", Dark: "39"}
	ColorMuted  = lipgloss.AdaptiveColor{Light: "242", Dark: "245"}
	ColorWarn   = lipgloss.AdaptiveColor{Light: "166", Dark: "214"}
	ColorPass   = lipgloss.AdaptiveColor{Light: "28", Dark: "42"}
)

var (
	boldStyle   = lipgloss.NewStyle().Bold(true)
	accentStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	mutedStyle  = lipgloss.NewStyle().Foreground(ColorMuted)
	warnStyle   = lipgloss.NewStyle().Foreground(ColorWarn)
	passStyle   = lipgloss.NewStyle().Foreground(ColorPass)
)

// RenderBold renders a section header, e.g. a command summary title.
func RenderBold(s string) string {
	if !ShouldUseColor() {
		return s
	}
	return boldStyle.Render(s)
}

// RenderAccent renders a subsection label or highlighted identifier.
func RenderAccent(s string) string {
	if !ShouldUseColor() {
		return s
	}
	return accentStyle.Render(s)
}

// RenderMuted renders secondary text: hints, empty-state messages, counts.
func RenderMuted(s string) string {
	if !ShouldUseColor() {
		return s
	}
	return mutedStyle.Render(s)
}

// RenderWarn renders a warning, e.g. a dangling reference or stale index notice.
func RenderWarn(s string) string {
	if !ShouldUseColor() {
		return s
	}
	return warnStyle.Render(s)
}

// RenderPass renders a success indicator, e.g. a clean audit result.
func RenderPass(s string) string {
	if !ShouldUseColor() {
		return s
	}
	return passStyle.Render(s)
}
