package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/festive-connect/internal"
	"github.com/iksnae/festive-connect/internal/chat"
	"golang.org/x/term"
)

var (
	// Styles for chat output
	sessionHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("212")).
				Padding(0, 1)

	userMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("39")).
				Bold(true)

	agentMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("135")).
				Bold(true)

	toolStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	attachmentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")).
			Italic(true)
)

const defaultWrap = 80

// terminalRenderer draws chat messages as they arrive. Agent text is
// Markdown and goes through glamour; user text is printed as typed.
type terminalRenderer struct {
	w      io.Writer
	md     *glamour.TermRenderer
	active string
}

func newTerminalRenderer(w io.Writer) *terminalRenderer {
	style, width := glamour.WithStandardStyle("notty"), defaultWrap
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		style = glamour.WithAutoStyle()
		if cols, _, err := term.GetSize(int(f.Fd())); err == nil && cols > 20 {
			width = cols - 4
		}
	}

	md, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		internal.LogDebug("Markdown rendering disabled: %v", err)
		md = nil
	}
	return &terminalRenderer{w: w, md: md}
}

func (r *terminalRenderer) Display(m chat.Message) {
	label := agentMessageStyle.Render("Agent")
	if m.Who == chat.WhoUser {
		label = userMessageStyle.Render("You")
	}
	fmt.Fprintf(r.w, "%s\n", label)

	for _, p := range m.Content.Parts {
		switch {
		case p.FunctionCall != nil:
			fmt.Fprintln(r.w, toolStyle.Render("⚡ Calling "+p.FunctionCall.Name))
		case p.FunctionResponse != nil:
			fmt.Fprintln(r.w, toolStyle.Render("✓ "+p.FunctionResponse.Name+" finished"))
		case p.InlineData != nil:
			name := p.InlineData.DisplayName
			if name == "" {
				name = "attachment"
			}
			fmt.Fprintln(r.w, attachmentStyle.Render(fmt.Sprintf("📎 %s (%s)", name, p.InlineData.MimeType)))
		case p.Text != "":
			fmt.Fprintln(r.w, r.text(m.Who, p.Text))
		}
	}
	fmt.Fprintln(r.w)
}

func (r *terminalRenderer) text(who, text string) string {
	if who == chat.WhoUser || r.md == nil {
		return text
	}
	out, err := r.md.Render(text)
	if err != nil {
		internal.LogDebug("Failed to render markdown: %v", err)
		return text
	}
	return strings.Trim(out, "\n")
}

func (r *terminalRenderer) SetActiveSession(id string) {
	r.active = id
}

func (r *terminalRenderer) RemoveSession(id string) {
	if r.active == id {
		r.active = ""
	}
}

func (r *terminalRenderer) Clear() {
	fmt.Fprintln(r.w, sessionHeaderStyle.Render("💬 Session "+r.active))
	fmt.Fprintln(r.w)
}
