package cmd

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/iksnae/festive-connect/internal"
	"github.com/iksnae/festive-connect/internal/chat"
	"github.com/iksnae/festive-connect/testutil"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// resetFlags puts every flag of the command tree back to its default.
// Flag variables are package globals and survive between Execute calls.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// execute runs the CLI with args and stdin, returning everything written
// to stdout and stderr.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	internal.SetLogOutput(io.Discard)
	t.Cleanup(func() { internal.SetLogOutput(nil) })

	var out bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	err := rootCmd.Execute()
	return out.String(), err
}

type cliFixture struct {
	backend *testutil.FakeBackend
	dir     string
	cache   string
}

func newCLIFixture(t *testing.T) *cliFixture {
	t.Helper()
	t.Setenv("FESTIVE_CONFIG", "")
	dir := testutil.CreateTempDir(t)
	return &cliFixture{
		backend: testutil.NewFakeBackend(t),
		dir:     dir,
		cache:   filepath.Join(dir, "cache.db"),
	}
}

// run executes a command against the fake backend and a temporary cache
func (f *cliFixture) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	args = append(args, "--base-url="+f.backend.URL(), "--cache="+f.cache)
	return execute(t, stdin, args...)
}

// sessionCache opens the fixture's cache database for inspection
func (f *cliFixture) sessionCache(t *testing.T) (*chat.SessionCache, internal.KVStore) {
	t.Helper()
	store, err := internal.NewSQLiteStore(f.cache)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return chat.NewSessionCache(store, ""), store
}

// countMethod counts requests with method regardless of path
func (f *cliFixture) countMethod(method string) int {
	n := 0
	for _, r := range f.backend.Requests() {
		if r.Method == method {
			n++
		}
	}
	return n
}

// seed stores sessions in the fixture's cache and closes it again
func (f *cliFixture) seed(t *testing.T, sessions ...*chat.Session) {
	t.Helper()
	store, err := internal.NewSQLiteStore(f.cache)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer store.Close()
	cache := chat.NewSessionCache(store, "")
	for _, s := range sessions {
		if err := cache.Save(s); err != nil {
			t.Fatalf("Save(%s) error = %v", s.ID, err)
		}
	}
}

// remember stores id as the active session left by an earlier command
func (f *cliFixture) remember(t *testing.T, id string) {
	t.Helper()
	store, err := internal.NewSQLiteStore(f.cache)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer store.Close()
	if err := store.Set(activeSessionKey, []byte(id)); err != nil {
		t.Fatalf("Set(active) error = %v", err)
	}
}

func textMessage(who, text string) chat.Message {
	return chat.Message{Who: who, Content: chat.Content{Parts: []chat.Part{{Text: text}}}}
}
