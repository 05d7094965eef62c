package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/iksnae/festive-connect/internal/chat"
)

// Exporter defines the interface for all export formats
type Exporter interface {
	Export(session *chat.Session, w io.Writer) error
	Extension() string
}

// NewExporter creates a new exporter based on format
func NewExporter(format string) (Exporter, error) {
	switch format {
	case "jsonl":
		return &JSONLExporter{}, nil
	case "md", "markdown":
		return &MarkdownExporter{}, nil
	case "yaml":
		return &YAMLExporter{}, nil
	case "json":
		return &JSONExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (supported: jsonl, md, yaml, json)", format)
	}
}

// FileName is the download name for one exported session
func FileName(sessionID string, e Exporter) string {
	return fmt.Sprintf("festive_session_%s.%s", sessionID, e.Extension())
}

// SnapshotFileName is the download name for an export of every cached
// session. Colons in the timestamp are replaced so the name is valid on
// every filesystem.
func SnapshotFileName(at time.Time) string {
	stamp := strings.ReplaceAll(at.UTC().Format("2006-01-02T15:04:05.000Z07:00"), ":", "-")
	return fmt.Sprintf("festive_sessions_export_%s.json", stamp)
}
