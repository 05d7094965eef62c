package internal

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	progressStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("62")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// ShowProgress runs fn behind a spinner on stderr. Outside a terminal the
// message is logged and fn runs directly.
func ShowProgress(ctx context.Context, message string, fn func() error) error {
	if !IsTerminal(os.Stderr) {
		LogInfo(message)
		return fn()
	}
	return showSpinner(ctx, os.Stderr, message, fn)
}

// showSpinner animates until fn returns or ctx ends, then leaves a ✓ or ✗
// line behind. fn keeps running in the background if ctx ends first.
func showSpinner(ctx context.Context, w io.Writer, message string, fn func() error) error {
	result := make(chan error, 1)
	go func() { result <- fn() }()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for frame := 0; ; frame++ {
		select {
		case err := <-result:
			mark := successStyle.Render("✓")
			if err != nil {
				mark = errorStyle.Render("✗")
			}
			fmt.Fprintf(w, "\r%s %s\n", mark, message)
			return err
		case <-ctx.Done():
			fmt.Fprintln(w)
			return ctx.Err()
		case <-ticker.C:
			fmt.Fprintf(w, "\r%s %s", progressStyle.Render(spinnerFrames[frame%len(spinnerFrames)]), message)
		}
	}
}

// IsTerminal reports whether w is an interactive terminal
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func fprintStatus(w io.Writer, style lipgloss.Style, icon, plain, message string) {
	if IsTerminal(w) {
		fmt.Fprintf(w, "%s %s\n", style.Render(icon), message)
		return
	}
	fmt.Fprintf(w, "%s%s\n", plain, message)
}

// FprintSuccess prints a success message to w, styled when w is a terminal
func FprintSuccess(w io.Writer, message string) {
	fprintStatus(w, successStyle, "✓", "", message)
}

// FprintError prints an error message to w
func FprintError(w io.Writer, message string) {
	fprintStatus(w, errorStyle, "✗", "", message)
}

// FprintInfo prints an info message to w
func FprintInfo(w io.Writer, message string) {
	fprintStatus(w, progressStyle, "ℹ", "", message)
}

// FprintWarning prints a warning message to w
func FprintWarning(w io.Writer, message string) {
	fprintStatus(w, warningStyle, "⚠", "WARNING: ", message)
}
