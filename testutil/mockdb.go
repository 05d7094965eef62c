package testutil

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

const kvTableSQL = `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT
	)`

// CreateInMemoryDB creates an in-memory SQLite database with the kv table
func CreateInMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to create in-memory database: %v", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(kvTableSQL); err != nil {
		db.Close()
		t.Fatalf("Failed to create kv table: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return db
}

// SampleEntries are cache rows used by CreateTestDB: two valid sessions,
// one corrupt entry and one unrelated key.
var SampleEntries = []struct {
	Key   string
	Value string
}{
	{
		Key:   "festive_session_s1",
		Value: `{"id":"s1","createdAt":"2025-10-01T10:00:00Z","messages":[{"who":"user","content":{"parts":[{"text":"hello"}]}}]}`,
	},
	{
		Key:   "festive_session_s2",
		Value: `{"id":"s2","createdAt":"2025-10-02T10:00:00Z","messages":[]}`,
	},
	{
		Key:   "festive_session_broken",
		Value: `{not json`,
	},
	{
		Key:   "festiveXsessionXlookalike",
		Value: `{}`,
	},
}

// CreateTestDB creates an in-memory database populated with SampleEntries
func CreateTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db := CreateInMemoryDB(t)
	for _, e := range SampleEntries {
		InsertEntry(t, db, e.Key, e.Value)
	}
	return db
}

// CreateSQLiteFixture writes a cache database file populated with SampleEntries
func CreateSQLiteFixture(t *testing.T, dbPath string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		t.Fatalf("Failed to create fixture directory: %v", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := db.Exec(kvTableSQL); err != nil {
		t.Fatalf("Failed to create table: %v", err)
	}
	for _, e := range SampleEntries {
		InsertEntry(t, db, e.Key, e.Value)
	}
}

// InsertEntry inserts a raw cache row
func InsertEntry(t *testing.T, db *sql.DB, key, value string) {
	t.Helper()
	insertSQL := "INSERT INTO kv (key, value) VALUES (?, ?)"
	if _, err := db.Exec(insertSQL, key, value); err != nil {
		t.Fatalf("Failed to insert entry %s: %v", key, err)
	}
}
