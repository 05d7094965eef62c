package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/iksnae/festive-connect/internal/chat"
	"gopkg.in/yaml.v3"
)

// YAMLExporter writes a session as a YAML document headed by a comment
// naming the session. Multi-line message text is written as literal
// blocks so agent Markdown stays readable.
type YAMLExporter struct{}

func (e *YAMLExporter) Export(session *chat.Session, w io.Writer) error {
	var doc yaml.Node
	if err := doc.Encode(session); err != nil {
		return fmt.Errorf("encode session %s: %w", session.ID, err)
	}
	doc.HeadComment = fmt.Sprintf("FestiveConnect session %s, %d message(s)", session.ID, len(session.Messages))
	literalBlocks(&doc)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return err
	}
	return enc.Close()
}

func literalBlocks(n *yaml.Node) {
	if n.Kind == yaml.ScalarNode && n.Tag == "!!str" && strings.Contains(n.Value, "\n") {
		n.Style = yaml.LiteralStyle
	}
	for _, child := range n.Content {
		literalBlocks(child)
	}
}

func (e *YAMLExporter) Extension() string {
	return "yaml"
}
