// Package ui holds the terminal output helpers the facet CLI uses: colored
// status messages, a small table renderer, and a spinner for operations
// that talk to external backends.
package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Level represents the severity of a status message
type Level int

const (
	LevelError Level = iota
	LevelWarning
	LevelInfo
)

// MessageOptions configures the status message formatting
type MessageOptions struct {
	Level   Level
	Context string
	Problem string
	Hints   []string
	NoColor bool
}

// FormatMessage renders a status message with optional follow-up hints.
//
// Example output:
//
//	✗ CONFIG INVALID: hierarchy.conflict_policy must be merge or root_wins
//
//	   → Edit facet.yml and run: facet serve
func FormatMessage(opts MessageOptions) string {
	var b strings.Builder

	var headerColor *color.Color
	var symbol string
	switch opts.Level {
	case LevelError:
		headerColor = color.New(color.FgRed, color.Bold)
		symbol = "✗"
	case LevelWarning:
		headerColor = color.New(color.FgYellow, color.Bold)
		symbol = "!"
	case LevelInfo:
		headerColor = color.New(color.FgCyan, color.Bold)
		symbol = "·"
	}
	if opts.NoColor {
		headerColor.DisableColor()
	}

	if opts.Context != "" {
		headerColor.Fprintf(&b, "%s %s: %s\n", symbol, strings.ToUpper(opts.Context), opts.Problem)
	} else {
		headerColor.Fprintf(&b, "%s %s\n", symbol, opts.Problem)
	}

	if len(opts.Hints) > 0 {
		b.WriteString("\n")
		cyan := color.New(color.FgCyan)
		if opts.NoColor {
			cyan.DisableColor()
		}
		for _, hint := range opts.Hints {
			cyan.Fprintf(&b, "   → %s\n", hint)
		}
	}

	return b.String()
}

// WriteError writes a formatted error message to the writer
func WriteError(w io.Writer, opts MessageOptions) {
	opts.Level = LevelError
	fmt.Fprint(w, FormatMessage(opts))
}

// FormatSuccess creates a success message
func FormatSuccess(message string, noColor bool) string {
	green := color.New(color.FgGreen, color.Bold)
	if noColor {
		green.DisableColor()
	}
	return green.Sprintf("✓ %s", message)
}

// WriteSuccess writes a success message to the writer
func WriteSuccess(w io.Writer, message string, noColor bool) {
	fmt.Fprintln(w, FormatSuccess(message, noColor))
}
