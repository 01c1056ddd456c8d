package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/gobwas/glob"
	"golang.org/x/term"

	"github.com/kestrelworks/vmindex/internal/index"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Faint(true)
)

// useColor decides whether output is styled, honoring output.color:
// "always", "never", or "auto" (styled only when stdout is a terminal).
func useColor(mode string) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	default:
		return term.IsTerminal(int(os.Stdout.Fd()))
	}
}

// filterMachines keeps the machines whose name matches the glob pattern.
// An empty pattern keeps everything.
func filterMachines(machines []*index.Machine, pattern string) ([]*index.Machine, error) {
	if pattern == "" {
		return machines, nil
	}

	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid filter %q: %w", pattern, err)
	}

	var out []*index.Machine
	for _, m := range machines {
		if g.Match(m.Name) {
			out = append(out, m)
		}
	}
	return out, nil
}

// renderMachineTable formats machines as an aligned table, one row per
// machine. Styling is applied only when styled is true.
func renderMachineTable(machines []*index.Machine, styled bool) string {
	if len(machines) == 0 {
		return "No machines in the index\n"
	}

	headers := []string{"ID", "NAME", "PROVIDER", "STATE", "UPDATED"}
	rows := make([][]string, 0, len(machines))
	for _, m := range machines {
		rows = append(rows, []string{
			m.ID(), m.Name, m.Provider, m.State, m.UpdatedAt(),
		})
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	pad := func(s string, w int) string {
		return s + strings.Repeat(" ", w-len(s))
	}

	var b strings.Builder
	for i, h := range headers {
		cell := pad(h, widths[i])
		if styled {
			cell = headerStyle.Render(cell)
		}
		b.WriteString(cell)
		if i < len(headers)-1 {
			b.WriteString("  ")
		}
	}
	b.WriteString("\n")

	for _, row := range rows {
		for i, cell := range row {
			out := pad(cell, widths[i])
			if styled && i == len(row)-1 {
				out = dimStyle.Render(out)
			}
			b.WriteString(out)
			if i < len(row)-1 {
				b.WriteString("  ")
			}
		}
		b.WriteString("\n")
	}

	return b.String()
}
