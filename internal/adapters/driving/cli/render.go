package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

const (
	defaultWidth = 80
	maxWidth     = 100
)

// styles holds the output styles. All styles are plain when output is
// not a terminal.
type styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Muted   lipgloss.Style
	Marker  lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Body    lipgloss.Style
}

// newStyles returns styles for w: coloured and wrapped to the terminal
// width when w is a terminal, plain otherwise.
func newStyles(w io.Writer) styles {
	width, tty := terminalWidth(w)
	body := lipgloss.NewStyle().Width(width)
	if !tty {
		return styles{
			Title: lipgloss.NewStyle(), Label: lipgloss.NewStyle(), Muted: lipgloss.NewStyle(),
			Marker: lipgloss.NewStyle(), Success: lipgloss.NewStyle(), Warning: lipgloss.NewStyle(),
			Error: lipgloss.NewStyle(), Body: body,
		}
	}
	return styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED")),
		Label:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#06B6D4")),
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086")),
		Marker:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F9E2AF")),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1")),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("#F9E2AF")),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8")),
		Body:    body,
	}
}

func terminalWidth(w io.Writer) (int, bool) {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return defaultWidth, false
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return defaultWidth, true
	}
	return min(width, maxWidth), true
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// snippet flattens whitespace and truncates text to n runes.
func snippet(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n-1]) + "…"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
