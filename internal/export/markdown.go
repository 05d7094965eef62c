package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/iksnae/festive-connect/internal/chat"
)

// MarkdownExporter exports sessions in Markdown format
type MarkdownExporter struct{}

// Export exports a session to Markdown format
func (e *MarkdownExporter) Export(session *chat.Session, w io.Writer) error {
	// Header
	_, _ = fmt.Fprintf(w, "# Session %s\n\n", session.ID)

	if session.CreatedAt != "" {
		_, _ = fmt.Fprintf(w, "**Created:** %s  \n", session.CreatedAt)
	}
	_, _ = fmt.Fprintf(w, "**Messages:** %d\n\n", len(session.Messages))

	_, _ = fmt.Fprintf(w, "---\n\n")
	_, _ = fmt.Fprintf(w, "## Messages\n\n")

	for i, msg := range session.Messages {
		_, _ = fmt.Fprintf(w, "**%s:**\n\n%s\n\n", msg.Who, renderContent(msg))

		// Add horizontal rule after each message (except the last one)
		if i < len(session.Messages)-1 {
			_, _ = fmt.Fprintf(w, "---\n\n")
		}
	}

	return nil
}

// renderContent renders each part on its own paragraph. Model text is
// already Markdown and is kept as is; user text is escaped.
func renderContent(msg chat.Message) string {
	var out []string
	for _, p := range msg.Content.Parts {
		switch {
		case p.FunctionResponse != nil:
			out = append(out, fmt.Sprintf("✓ `%s`", p.FunctionResponse.Name))
		case p.FunctionCall != nil:
			out = append(out, fmt.Sprintf("⚡ `%s`", p.FunctionCall.Name))
		case p.InlineData != nil:
			name := p.InlineData.DisplayName
			if name == "" {
				name = "attachment"
			}
			out = append(out, fmt.Sprintf("📎 %s (%s)", name, p.InlineData.MimeType))
		case p.Text != "":
			if msg.Who == chat.WhoUser {
				out = append(out, escapeMarkdown(p.Text))
			} else {
				out = append(out, p.Text)
			}
		}
	}
	return strings.Join(out, "\n\n")
}

// escapeMarkdown escapes markdown special characters
func escapeMarkdown(text string) string {
	// Basic escaping - preserve code blocks
	lines := strings.Split(text, "\n")
	var result []string
	inCodeBlock := false

	for _, line := range lines {
		if strings.HasPrefix(line, "```") {
			inCodeBlock = !inCodeBlock
			result = append(result, line)
		} else if inCodeBlock {
			result = append(result, line)
		} else {
			line = strings.ReplaceAll(line, "**", "\\*\\*")
			line = strings.ReplaceAll(line, "__", "\\_\\_")
			result = append(result, line)
		}
	}

	return strings.Join(result, "\n")
}

// Extension returns the file extension for this format
func (e *MarkdownExporter) Extension() string {
	return "md"
}
