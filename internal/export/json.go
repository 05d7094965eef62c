package export

import (
	"encoding/json"
	"io"

	"github.com/iksnae/festive-connect/internal/chat"
)

// JSONExporter exports sessions in JSON format (pretty-printed), the same
// document the cache stores.
type JSONExporter struct{}

// Export exports a session to JSON format
func (e *JSONExporter) Export(session *chat.Session, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(session)
}

// Extension returns the file extension for this format
func (e *JSONExporter) Extension() string {
	return "json"
}

// SnapshotExporter writes every cached entry as one JSON object keyed by
// cache key.
type SnapshotExporter struct{}

// Export writes the snapshot, indented
func (e *SnapshotExporter) Export(snapshot map[string]any, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)

	return enc.Encode(snapshot)
}
