package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/iksnae/festive-connect/internal"
	"github.com/iksnae/festive-connect/internal/export"
	"github.com/spf13/cobra"
)

var (
	format    string
	outputDir string
	exportNow = time.Now
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export <session-id>",
	Short: "Export a cached session to file",
	Long: `Export the locally cached messages of one session to a file
(jsonl, md, yaml, json). The file is named festive_session_<id>.<ext>;
use --out - to write to standard output instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		exporter, err := export.NewExporter(format)
		if err != nil {
			return err
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		// A corrupt entry counts as no data
		session := a.cache.Load(id)
		if session == nil {
			return fmt.Errorf("session %s has no cached messages on this machine", id)
		}

		path, err := writeExport(cmd, format, export.FileName(id, exporter), func(w io.Writer) error {
			return exporter.Export(session, w)
		})
		if err != nil {
			return err
		}
		if path != "" {
			internal.FprintSuccess(cmd.OutOrStdout(), fmt.Sprintf("Exported session %s to %s", id, path))
		}
		return nil
	},
}

var exportAllCmd = &cobra.Command{
	Use:   "export-all",
	Short: "Export every cached session as one JSON file",
	Long: `Export every cached session, keyed by cache key, as a single JSON
document named festive_sessions_export_<timestamp>.json. Entries that are
not valid JSON are exported as their raw text.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		snapshot, err := a.cache.Snapshot()
		if err != nil {
			return err
		}

		exporter := &export.SnapshotExporter{}
		path, err := writeExport(cmd, "json", export.SnapshotFileName(exportNow()), func(w io.Writer) error {
			return exporter.Export(snapshot, w)
		})
		if err != nil {
			return err
		}
		if path != "" {
			internal.FprintSuccess(cmd.OutOrStdout(), fmt.Sprintf("Exported %d cached session(s) to %s", len(snapshot), path))
		}
		return nil
	},
}

// writeExport runs write against the output file, or stdout for "-", and
// returns the path written.
func writeExport(cmd *cobra.Command, format, name string, write func(io.Writer) error) (string, error) {
	if outputDir == "-" {
		if err := write(cmd.OutOrStdout()); err != nil {
			return "", &internal.ExportError{Format: format, Path: "-", Err: err}
		}
		return "", nil
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", &internal.ExportError{Format: format, Path: outputDir, Err: err}
	}
	path := filepath.Join(outputDir, name)

	file, err := os.Create(path)
	if err != nil {
		return "", &internal.ExportError{Format: format, Path: path, Err: err}
	}
	if err := write(file); err != nil {
		_ = file.Close()
		return "", &internal.ExportError{Format: format, Path: path, Err: err}
	}
	if err := file.Close(); err != nil {
		return "", &internal.ExportError{Format: format, Path: path, Err: err}
	}
	return path, nil
}

func init() {
	sessionsCmd.AddCommand(exportCmd, exportAllCmd)
	exportCmd.Flags().StringVarP(&format, "format", "f", "jsonl", "Export format (jsonl, md, yaml, json)")
	exportCmd.Flags().StringVarP(&outputDir, "out", "o", ".", "Output directory, or - for stdout")
	exportAllCmd.Flags().StringVarP(&outputDir, "out", "o", ".", "Output directory, or - for stdout")
}
