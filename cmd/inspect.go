package cmd

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/iksnae/festive-connect/internal"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
)

var (
	inspectFormat     string
	inspectSampleRows int
)

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect [database-path]",
	Short: "Inspect the local session cache database",
	Long: `Inspect the schema and contents of the local session cache.

This command provides detailed information about:
  • The kv table schema
  • Every cached entry with its size and state
  • Entries that are corrupt and will be ignored
  • Sample values

Examples:
  festive inspect                          # Inspect the configured cache
  festive inspect /path/to/cache.db        # Inspect a specific database
  festive inspect --format json --sample 0 # JSON report without samples`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if inspectFormat != "text" && inspectFormat != "json" {
			return fmt.Errorf("unsupported format: %s (supported: text, json)", inspectFormat)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		dbPath := cfg.CachePath
		if len(args) > 0 {
			dbPath = args[0]
		}

		report, err := inspectDatabase(dbPath, cfg.KeyPrefix)
		if err != nil {
			return err
		}
		if inspectFormat == "json" {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}
		printReport(cmd.OutOrStdout(), report)
		return nil
	},
}

// Entry states
const (
	entrySession = "session"
	entryCorrupt = "corrupt"
	entryOther   = "other"
)

type ColumnInfo struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	NotNull    bool   `json:"not_null"`
	PrimaryKey bool   `json:"primary_key"`
}

type EntryInfo struct {
	Key      string `json:"key"`
	Bytes    int    `json:"bytes"`
	State    string `json:"state"`
	Messages int    `json:"messages,omitempty"`
	Sample   string `json:"sample,omitempty"`
}

type InspectReport struct {
	Database string       `json:"database"`
	Prefix   string       `json:"prefix"`
	Columns  []ColumnInfo `json:"columns"`
	Entries  []EntryInfo  `json:"entries"`
	Corrupt  int          `json:"corrupt"`
}

func inspectDatabase(dbPath, prefix string) (*InspectReport, error) {
	db, err := internal.OpenDatabase(dbPath)
	if err != nil {
		return nil, &internal.StorageError{Path: dbPath, Op: "open", Err: err}
	}
	defer func() { _ = db.Close() }()

	columns, err := getTableSchema(db, "kv")
	if err != nil {
		return nil, &internal.StorageError{Path: dbPath, Op: "schema", Err: err}
	}

	pairs, err := internal.QueryKV(db, "")
	if err != nil {
		return nil, &internal.StorageError{Path: dbPath, Op: "scan", Err: err}
	}

	report := &InspectReport{Database: dbPath, Prefix: prefix, Columns: columns, Entries: []EntryInfo{}}
	for i, pair := range pairs {
		entry := classifyEntry(pair.Key, pair.Value, prefix)
		if i < inspectSampleRows {
			entry.Sample = truncate(pair.Value, 200)
		}
		if entry.State == entryCorrupt {
			report.Corrupt++
		}
		report.Entries = append(report.Entries, entry)
	}
	return report, nil
}

// classifyEntry decides how the session cache will read a stored value.
// Session entries must hold a JSON object whose messages, if present, are
// an array.
func classifyEntry(key, value, prefix string) EntryInfo {
	entry := EntryInfo{Key: key, Bytes: len(value), State: entryOther}
	if !strings.HasPrefix(key, prefix) {
		return entry
	}

	parsed := gjson.Parse(value)
	msgs := parsed.Get("messages")
	if !gjson.Valid(value) || !parsed.IsObject() || (msgs.Exists() && !msgs.IsArray()) {
		entry.State = entryCorrupt
		return entry
	}
	entry.State = entrySession
	entry.Messages = int(parsed.Get("messages.#").Int())
	return entry
}

func getTableSchema(db *sql.DB, tableName string) ([]ColumnInfo, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var columns []ColumnInfo
	for rows.Next() {
		var col ColumnInfo
		var cid int
		var notNull, pk int
		var defaultValue sql.NullString

		if err := rows.Scan(&cid, &col.Name, &col.Type, &notNull, &defaultValue, &pk); err != nil {
			continue
		}
		col.NotNull = notNull == 1
		col.PrimaryKey = pk == 1
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

func printReport(w io.Writer, r *InspectReport) {
	fmt.Fprintf(w, "📋 Database: %s\n", r.Database)
	fmt.Fprintf(w, "📊 Entries: %d (%d corrupt)\n\n", len(r.Entries), r.Corrupt)

	fmt.Fprintln(w, "📐 Schema:")
	for _, col := range r.Columns {
		pk := ""
		if col.PrimaryKey {
			pk = " [PRIMARY KEY]"
		}
		notNull := ""
		if col.NotNull {
			notNull = " NOT NULL"
		}
		fmt.Fprintf(w, "  • %s: %s%s%s\n", col.Name, col.Type, notNull, pk)
	}
	fmt.Fprintln(w)

	if len(r.Entries) == 0 {
		fmt.Fprintln(w, "⚠️  The cache is empty")
		return
	}

	fmt.Fprintln(w, "📦 Entries:")
	for _, e := range r.Entries {
		switch e.State {
		case entrySession:
			fmt.Fprintf(w, "  • %s (%d bytes, %d messages)\n", e.Key, e.Bytes, e.Messages)
		case entryCorrupt:
			fmt.Fprintf(w, "  • %s (%d bytes) %s\n", e.Key, e.Bytes, warningStyle.Render("corrupt, ignored"))
		default:
			fmt.Fprintf(w, "  • %s (%d bytes)\n", e.Key, e.Bytes)
		}
		if e.Sample != "" {
			fmt.Fprintf(w, "      %s\n", e.Sample)
		}
	}
}

// truncate shortens s to its first line and at most n bytes
func truncate(s string, n int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i] + "..."
	}
	if len(s) > n {
		s = s[:n] + "..."
	}
	return s
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().StringVar(&inspectFormat, "format", "text", "Output format (text, json)")
	inspectCmd.Flags().IntVar(&inspectSampleRows, "sample", 3, "Number of sample values to show")
}
