package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestFormatMessage(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	tests := []struct {
		name     string
		opts     MessageOptions
		contains []string
	}{
		{
			name: "error with context",
			opts: MessageOptions{
				Level:   LevelError,
				Context: "config invalid",
				Problem: "server.port must be between 1 and 65535",
			},
			contains: []string{
				"✗",
				"CONFIG INVALID",
				"server.port must be between 1 and 65535",
			},
		},
		{
			name: "error with hints",
			opts: MessageOptions{
				Level:   LevelError,
				Problem: "cannot connect to postgres",
				Hints:   []string{"Check database.url in facet.yml", "Run: facet migrate"},
			},
			contains: []string{
				"→ Check database.url in facet.yml",
				"→ Run: facet migrate",
			},
		},
		{
			name: "warning",
			opts: MessageOptions{
				Level:   LevelWarning,
				Problem: "redis disabled, counters use the database",
			},
			contains: []string{"!", "redis disabled"},
		},
		{
			name: "info",
			opts: MessageOptions{
				Level:   LevelInfo,
				Problem: "using in-memory storage",
			},
			contains: []string{"·", "using in-memory storage"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := FormatMessage(tt.opts)
			for _, want := range tt.contains {
				if !strings.Contains(out, want) {
					t.Errorf("expected output to contain %q, got:\n%s", want, out)
				}
			}
		})
	}
}

func TestWriteError(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	var buf bytes.Buffer
	WriteError(&buf, MessageOptions{Problem: "something broke", NoColor: true})

	if !strings.Contains(buf.String(), "something broke") {
		t.Errorf("expected error output, got: %s", buf.String())
	}
	if !strings.HasPrefix(buf.String(), "✗") {
		t.Errorf("expected error symbol, got: %s", buf.String())
	}
}

func TestFormatSuccess(t *testing.T) {
	out := FormatSuccess("migrations applied", true)
	if out != "✓ migrations applied" {
		t.Errorf("unexpected success message: %q", out)
	}
}

func TestWriteSuccess(t *testing.T) {
	var buf bytes.Buffer
	WriteSuccess(&buf, "server stopped", true)
	if buf.String() != "✓ server stopped\n" {
		t.Errorf("unexpected output: %q", buf.String())
	}
}
