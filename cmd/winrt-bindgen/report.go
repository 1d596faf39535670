package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/wippyai/winrt-bindgen/errors"
)

var (
	errorColor = color.New(color.FgRed, color.Bold)
	warnColor  = color.New(color.FgYellow)
	kindColor  = color.New(color.FgCyan)
	rootColor  = color.New(color.Bold)
	okColor    = color.New(color.FgGreen, color.Bold)
)

// setColor applies --color; auto colours only terminals
func setColor(mode string, tty bool) error {
	switch mode {
	case "auto":
		color.NoColor = !tty
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	default:
		return fmt.Errorf("invalid color mode %q (auto|on|off)", mode)
	}
	return nil
}

// printReport writes every rejected root with its reasons, then the
// warnings of eager dependency validation
func printReport(w io.Writer, rep *errors.RejectionReport) {
	for _, root := range rep.Roots() {
		fmt.Fprintf(w, "%s %s\n", errorColor.Sprint("rejected"), rootColor.Sprint(root))
		for _, r := range rep.ForRoot(root) {
			fmt.Fprintf(w, "  %s %s\n", kindColor.Sprint(r.Err.Kind), describe(r.Err))
		}
	}
	for _, r := range rep.Dependencies() {
		fmt.Fprintf(w, "%s %s %s\n", warnColor.Sprint("warning"), kindColor.Sprint(r.Err.Kind), describe(r.Err))
	}
}

// describe renders an error without the phase and kind prefix
func describe(e *errors.Error) string {
	var parts []string
	if e.Type != "" {
		parts = append(parts, e.Type)
	}
	if e.Detail != "" {
		parts = append(parts, e.Detail)
	}
	s := strings.Join(parts, ": ")
	if len(e.Path) > 0 {
		s += " (via " + strings.Join(e.Path, " -> ") + ")"
	}
	if len(e.Candidates) > 0 {
		s += " [" + strings.Join(e.Candidates, ", ") + "]"
	}
	if e.Source != "" {
		s += " in " + e.Source
	}
	return s
}
