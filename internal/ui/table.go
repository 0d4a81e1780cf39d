package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var tableHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent).Align(lipgloss.Center)
var tableCellStyle = lipgloss.NewStyle().Padding(0, 1)
var tableBorderStyle = lipgloss.NewStyle().Foreground(ColorMuted)

// RenderTable renders headers and rows as a bordered table, the way
// BeadsLog/internal/ui's NewSearchTable and RenderGraphTable build their
// tables: a rounded border, a muted border color and a bold accent header
// row. Falls back to a borderless render when color/TTY is disabled.
func RenderTable(headers []string, rows [][]string, width int) string {
	if len(rows) == 0 {
		return RenderMuted("(no rows)")
	}
	t := table.New().
		Headers(headers...).
		Rows(rows...).
		BorderStyle(tableBorderStyle)
	if width > 0 {
		t = t.Width(width)
	}
	if ShouldUseColor() {
		t = t.Border(lipgloss.RoundedBorder()).
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return tableHeaderStyle
				}
				return tableCellStyle
			})
	} else {
		t = t.Border(lipgloss.Border{})
	}
	return t.String()
}
