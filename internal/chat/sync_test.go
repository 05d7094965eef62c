package chat

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/iksnae/festive-connect/internal"
	"github.com/iksnae/festive-connect/internal/api"
	"github.com/iksnae/festive-connect/testutil"
)

// failingStore accepts reads but rejects writes
type failingStore struct {
	*internal.MemoryStore
}

func (failingStore) Set(key string, value []byte) error {
	return &internal.StorageError{Path: key, Op: "set", Err: errors.New("disk full")}
}

type syncFixture struct {
	backend  *testutil.FakeBackend
	sync     *Synchronizer
	cache    *SessionCache
	store    internal.KVStore
	recorder *Recorder
}

func newSyncFixture(t *testing.T, store internal.KVStore) *syncFixture {
	t.Helper()
	if store == nil {
		store = internal.NewMemoryStore()
	}
	fb := testutil.NewFakeBackend(t)
	cache := NewSessionCache(store, "")
	cache.now = fixedNow
	rec := &Recorder{}
	return &syncFixture{
		backend:  fb,
		sync:     NewSynchronizer(api.NewClient(fb.URL()), cache, WithRenderer(rec)),
		cache:    cache,
		store:    store,
		recorder: rec,
	}
}

func textEvent(role, text string) map[string]any {
	return map[string]any{
		"id":     "e-" + text,
		"author": role,
		"content": map[string]any{
			"role":  role,
			"parts": []any{map[string]any{"text": text}},
		},
	}
}

func messageTexts(msgs []Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Who + ":" + m.Content.Text()
	}
	return out
}

const sessionsPath = "/apps/festive_agent/users/user/sessions"

func TestListRemoteSessions(t *testing.T) {
	f := newSyncFixture(t, nil)
	f.backend.AddSession("a")
	f.backend.AddSession("b")

	ids, err := f.sync.ListRemoteSessions(context.Background())
	if err != nil {
		t.Fatalf("ListRemoteSessions() error = %v", err)
	}
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("ids = %v, want [a b]", ids)
	}
	if f.sync.ActiveSession() != "a" {
		t.Errorf("active = %q, want a", f.sync.ActiveSession())
	}
	if f.recorder.Active() != "a" {
		t.Errorf("renderer active = %q, want a", f.recorder.Active())
	}
	if keys, _ := f.cache.Keys(); len(keys) != 0 {
		t.Errorf("listing created cache entries: %v", keys)
	}

	// An existing active session is kept
	f.sync.SetActiveSession("b")
	if _, err := f.sync.ListRemoteSessions(context.Background()); err != nil {
		t.Fatal(err)
	}
	if f.sync.ActiveSession() != "b" {
		t.Errorf("active = %q, want b", f.sync.ActiveSession())
	}
}

func TestListRemoteSessions_Failure(t *testing.T) {
	f := newSyncFixture(t, nil)
	f.backend.AddSession("a")
	f.backend.Fail(http.MethodGet, sessionsPath, http.StatusInternalServerError, "")

	if _, err := f.sync.ListRemoteSessions(context.Background()); err == nil {
		t.Fatal("ListRemoteSessions() expected error")
	}
	if f.sync.ActiveSession() != "" {
		t.Errorf("active changed on failure: %q", f.sync.ActiveSession())
	}
	if len(f.sync.Sessions()) != 0 {
		t.Errorf("sessions changed on failure: %v", f.sync.Sessions())
	}
}

func TestCreateSession(t *testing.T) {
	f := newSyncFixture(t, nil)

	rs, err := f.sync.CreateSession(context.Background())
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if f.sync.ActiveSession() != rs.ID {
		t.Errorf("active = %q, want %q", f.sync.ActiveSession(), rs.ID)
	}
	stored := f.cache.Load(rs.ID)
	if stored == nil || len(stored.Messages) != 0 || stored.CreatedAt == "" {
		t.Errorf("cached session = %+v", stored)
	}
	if !f.backend.HasSession(rs.ID) {
		t.Error("backend does not know the new session")
	}
}

func TestAppendMessage(t *testing.T) {
	hello := Content{Parts: []Part{{Text: "hello"}}}

	t.Run("no active session is a no-op", func(t *testing.T) {
		f := newSyncFixture(t, nil)
		if err := f.sync.AppendMessage(WhoUser, hello); err != nil {
			t.Fatalf("AppendMessage() error = %v", err)
		}
		if keys, _ := f.cache.Keys(); len(keys) != 0 {
			t.Errorf("AppendMessage() wrote %v without an active session", keys)
		}
	})

	t.Run("creates the entry lazily", func(t *testing.T) {
		f := newSyncFixture(t, nil)
		f.sync.SetActiveSession("lazy")
		if err := f.sync.AppendMessage(WhoUser, hello); err != nil {
			t.Fatalf("AppendMessage() error = %v", err)
		}
		if err := f.sync.AppendMessage(WhoModel, Content{Role: "model", Parts: []Part{{Text: "hi"}}}); err != nil {
			t.Fatalf("AppendMessage() error = %v", err)
		}
		stored := f.cache.Load("lazy")
		if stored == nil {
			t.Fatal("no cached session")
		}
		got := messageTexts(stored.Messages)
		if len(got) != 2 || got[0] != "user:hello" || got[1] != "model:hi" {
			t.Errorf("messages = %v", got)
		}
		if stored.CreatedAt != "2025-10-03T09:30:00.000Z" {
			t.Errorf("CreatedAt = %q", stored.CreatedAt)
		}
	})

	t.Run("replaces a corrupt entry", func(t *testing.T) {
		f := newSyncFixture(t, nil)
		_ = f.store.Set(f.cache.Key("bad"), []byte("{oops"))
		f.sync.SetActiveSession("bad")
		if err := f.sync.AppendMessage(WhoUser, hello); err != nil {
			t.Fatalf("AppendMessage() error = %v", err)
		}
		if s := f.cache.Load("bad"); s == nil || len(s.Messages) != 1 {
			t.Errorf("cached session = %+v", s)
		}
	})

	t.Run("write failure is returned", func(t *testing.T) {
		f := newSyncFixture(t, failingStore{internal.NewMemoryStore()})
		f.sync.SetActiveSession("x")
		err := f.sync.AppendMessage(WhoUser, hello)
		var storageErr *internal.StorageError
		if !errors.As(err, &storageErr) {
			t.Errorf("AppendMessage() error = %v, want *internal.StorageError", err)
		}
	})
}

func TestRenderSession(t *testing.T) {
	f := newSyncFixture(t, internal.NewSQLiteStoreFromDB(testutil.CreateTestDB(t)))
	f.backend.AddSession("s1",
		textEvent("model", "hi"),
		map[string]any{"id": "state-only", "author": "festive_agent"},
	)
	before, _ := f.store.Get(f.cache.Key("s1"))

	if err := f.sync.RenderSession(context.Background(), "s1"); err != nil {
		t.Fatalf("RenderSession() error = %v", err)
	}

	got := messageTexts(f.recorder.Messages())
	if len(got) != 2 || got[0] != "model:hi" || got[1] != "user:hello" {
		t.Errorf("rendered = %v, want [model:hi user:hello]", got)
	}
	if f.sync.ActiveSession() != "s1" || f.recorder.Active() != "s1" {
		t.Errorf("active = %q / %q, want s1", f.sync.ActiveSession(), f.recorder.Active())
	}
	if f.recorder.Clears() != 1 {
		t.Errorf("Clear() called %d times, want 1", f.recorder.Clears())
	}

	after, _ := f.store.Get(f.cache.Key("s1"))
	if string(before) != string(after) {
		t.Errorf("rendering changed the cache:\nbefore %s\nafter  %s", before, after)
	}

	// Rendering twice shows the same thing, not a growing history
	if err := f.sync.RenderSession(context.Background(), "s1"); err != nil {
		t.Fatal(err)
	}
	if n := len(f.recorder.Messages()); n != 2 {
		t.Errorf("second render shows %d messages, want 2", n)
	}
}

func TestRenderSession_Failure(t *testing.T) {
	f := newSyncFixture(t, internal.NewSQLiteStoreFromDB(testutil.CreateTestDB(t)))
	f.sync.SetActiveSession("s2")

	// s1 is cached locally but unknown to the backend; there is no cache fallback
	err := f.sync.RenderSession(context.Background(), "s1")
	if !api.IsNotFound(err) {
		t.Fatalf("RenderSession() error = %v, want not found", err)
	}
	if len(f.recorder.Messages()) != 0 || f.recorder.Clears() != 0 {
		t.Error("RenderSession() drew something after a failed fetch")
	}
	if f.sync.ActiveSession() != "s2" {
		t.Errorf("active = %q, want s2", f.sync.ActiveSession())
	}
}

func TestDeleteSession(t *testing.T) {
	f := newSyncFixture(t, nil)
	f.backend.AddSession("a")
	f.backend.AddSession("b")
	if _, err := f.sync.ListRemoteSessions(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := f.cache.Ensure("a", true); err != nil {
		t.Fatal(err)
	}

	if err := f.sync.DeleteSession(context.Background(), "a"); err != nil {
		t.Fatalf("DeleteSession() error = %v", err)
	}
	if f.backend.HasSession("a") {
		t.Error("remote session still exists")
	}
	if f.cache.Load("a") != nil {
		t.Error("cache entry still exists")
	}
	if removed := f.recorder.Removed(); len(removed) != 1 || removed[0] != "a" {
		t.Errorf("renderer removed = %v, want [a]", removed)
	}
	if f.sync.ActiveSession() != "b" {
		t.Errorf("active = %q, want b", f.sync.ActiveSession())
	}

	if err := f.sync.DeleteSession(context.Background(), "b"); err != nil {
		t.Fatal(err)
	}
	if f.sync.ActiveSession() != "" {
		t.Errorf("active = %q, want none", f.sync.ActiveSession())
	}
}

func TestDeleteSession_RemoteFailure(t *testing.T) {
	tests := []struct {
		name     string
		fail     func(fb *testutil.FakeBackend)
		checkErr func(t *testing.T, err error)
	}{
		{
			name: "backend error",
			fail: func(fb *testutil.FakeBackend) {
				fb.Fail(http.MethodDelete, sessionsPath+"/a", http.StatusInternalServerError, `{"message":"nope"}`)
			},
			checkErr: func(t *testing.T, err error) {
				var apiErr *api.APIError
				if !errors.As(err, &apiErr) || apiErr.Message != "nope" {
					t.Fatalf("DeleteSession() error = %v, want APIError nope", err)
				}
			},
		},
		{
			name: "network error",
			fail: func(fb *testutil.FakeBackend) { fb.DropConnections() },
			checkErr: func(t *testing.T, err error) {
				var tErr *api.TransportError
				if !errors.As(err, &tErr) || tErr.Method != http.MethodDelete {
					t.Fatalf("DeleteSession() error = %v, want DELETE TransportError", err)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSyncFixture(t, nil)
			f.backend.AddSession("a")
			f.sync.SetActiveSession("a")
			if _, err := f.cache.Ensure("a", true); err != nil {
				t.Fatal(err)
			}
			tt.fail(f.backend)

			tt.checkErr(t, f.sync.DeleteSession(context.Background(), "a"))
			if f.cache.Load("a") == nil {
				t.Error("cache entry removed despite remote failure")
			}
			if len(f.recorder.Removed()) != 0 {
				t.Error("renderer entry removed despite remote failure")
			}
			if f.sync.ActiveSession() != "a" {
				t.Errorf("active = %q, want a", f.sync.ActiveSession())
			}
		})
	}
}

func TestSynchronizer_CustomAgentAndUser(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	s := NewSynchronizer(api.NewClient(fb.URL()), NewSessionCache(internal.NewMemoryStore(), ""),
		WithAgent("other agent"), WithUser("u1"))

	if _, err := s.ListRemoteSessions(context.Background()); err != nil {
		t.Fatalf("ListRemoteSessions() error = %v", err)
	}
	reqs := fb.Requests()
	if len(reqs) != 1 || reqs[0].RawPath != "/apps/other%20agent/users/u1/sessions" {
		t.Errorf("requests = %+v", reqs)
	}
}
