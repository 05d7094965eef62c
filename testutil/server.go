package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// RecordedRequest is one request seen by the fake backend
type RecordedRequest struct {
	Method  string
	Path    string
	RawPath string
	Header  http.Header
	Body    string
}

type failure struct {
	method string
	prefix string
	status int
	body   string
}

// FakeBackend is an httptest server that speaks enough of the
// FestiveConnect REST and agent API for client tests.
type FakeBackend struct {
	Server *httptest.Server

	mu        sync.Mutex
	events    map[string]map[string]any
	eventIDs  []string
	sessions  map[string][]any
	sessIDs   []string
	nextID    int
	failures  []failure
	requests  []RecordedRequest
	sseLines  []string
	dropConns bool
}

// NewFakeBackend starts a fake backend that is closed when the test ends
func NewFakeBackend(t *testing.T) *FakeBackend {
	t.Helper()
	fb := &FakeBackend{
		events:   make(map[string]map[string]any),
		sessions: make(map[string][]any),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /events/{$}", fb.listEvents)
	mux.HandleFunc("POST /events/{$}", fb.createEvent)
	mux.HandleFunc("GET /events/{id}", fb.getEvent)
	mux.HandleFunc("PUT /events/{id}", fb.updateEvent)
	mux.HandleFunc("DELETE /events/{id}", fb.deleteEvent)
	mux.HandleFunc("GET /apps/{app}/users/{user}/sessions", fb.listSessions)
	mux.HandleFunc("POST /apps/{app}/users/{user}/sessions", fb.createSession)
	mux.HandleFunc("GET /apps/{app}/users/{user}/sessions/{id}", fb.getSession)
	mux.HandleFunc("DELETE /apps/{app}/users/{user}/sessions/{id}", fb.deleteSession)
	mux.HandleFunc("POST /run_sse", fb.runSSE)

	fb.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(strings.NewReader(string(body)))

		fb.mu.Lock()
		fb.requests = append(fb.requests, RecordedRequest{
			Method:  r.Method,
			Path:    r.URL.Path,
			RawPath: r.URL.EscapedPath(),
			Header:  r.Header.Clone(),
			Body:    string(body),
		})
		var fail *failure
		for i := range fb.failures {
			f := fb.failures[i]
			if f.method == r.Method && strings.HasPrefix(r.URL.Path, f.prefix) {
				fail = &f
				break
			}
		}
		drop := fb.dropConns
		fb.mu.Unlock()

		if drop {
			if hj, ok := w.(http.Hijacker); ok {
				conn, _, err := hj.Hijack()
				if err == nil {
					_ = conn.Close()
					return
				}
			}
		}
		if fail != nil {
			w.WriteHeader(fail.status)
			_, _ = io.WriteString(w, fail.body)
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(fb.Server.Close)
	return fb
}

// URL returns the base URL of the fake backend
func (fb *FakeBackend) URL() string {
	return fb.Server.URL
}

// Fail makes every request with method whose path starts with prefix
// answer with status and body.
func (fb *FakeBackend) Fail(method, prefix string, status int, body string) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.failures = append(fb.failures, failure{method: method, prefix: prefix, status: status, body: body})
}

// DropConnections makes the server close connections without answering
func (fb *FakeBackend) DropConnections() {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.dropConns = true
}

// Requests returns a copy of every request received so far
func (fb *FakeBackend) Requests() []RecordedRequest {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append([]RecordedRequest(nil), fb.requests...)
}

// Count returns how many requests matched method and path exactly
func (fb *FakeBackend) Count(method, path string) int {
	n := 0
	for _, r := range fb.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

// AddEvent seeds an event and returns its id
func (fb *FakeBackend) AddEvent(ev map[string]any) string {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	id := fb.newID("ev")
	ev["id"] = id
	fb.events[id] = ev
	fb.eventIDs = append(fb.eventIDs, id)
	return id
}

// AddSession seeds a remote session with the given event history
func (fb *FakeBackend) AddSession(id string, events ...any) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if _, ok := fb.sessions[id]; !ok {
		fb.sessIDs = append(fb.sessIDs, id)
	}
	fb.sessions[id] = events
}

// HasSession reports whether the backend still knows the session
func (fb *FakeBackend) HasSession(id string) bool {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	_, ok := fb.sessions[id]
	return ok
}

// SetStream sets the raw lines /run_sse writes. Each line is flushed separately.
func (fb *FakeBackend) SetStream(lines ...string) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.sseLines = lines
}

func (fb *FakeBackend) newID(prefix string) string {
	fb.nextID++
	return fmt.Sprintf("%s-%d", prefix, fb.nextID)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (fb *FakeBackend) listEvents(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	out := make([]map[string]any, 0, len(fb.eventIDs))
	for _, id := range fb.eventIDs {
		out = append(out, fb.events[id])
	}
	fb.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (fb *FakeBackend) createEvent(w http.ResponseWriter, r *http.Request) {
	var ev map[string]any
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": "invalid body"})
		return
	}
	fb.AddEvent(ev)
	writeJSON(w, http.StatusCreated, ev)
}

func (fb *FakeBackend) getEvent(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	ev, ok := fb.events[r.PathValue("id")]
	fb.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Event not found"})
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (fb *FakeBackend) updateEvent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var ev map[string]any
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": "invalid body"})
		return
	}
	fb.mu.Lock()
	_, ok := fb.events[id]
	if ok {
		ev["id"] = id
		fb.events[id] = ev
	}
	fb.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Event not found"})
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (fb *FakeBackend) deleteEvent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	fb.mu.Lock()
	_, ok := fb.events[id]
	if ok {
		delete(fb.events, id)
		fb.eventIDs = removeID(fb.eventIDs, id)
	}
	fb.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Event not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (fb *FakeBackend) listSessions(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	out := make([]map[string]any, 0, len(fb.sessIDs))
	for _, id := range fb.sessIDs {
		out = append(out, map[string]any{
			"id":      id,
			"appName": r.PathValue("app"),
			"userId":  r.PathValue("user"),
		})
	}
	fb.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (fb *FakeBackend) createSession(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	id := fb.newID("sess")
	fb.sessions[id] = nil
	fb.sessIDs = append(fb.sessIDs, id)
	fb.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"id":      id,
		"appName": r.PathValue("app"),
		"userId":  r.PathValue("user"),
		"events":  []any{},
	})
}

func (fb *FakeBackend) getSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	fb.mu.Lock()
	events, ok := fb.sessions[id]
	fb.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Session not found"})
		return
	}
	if events == nil {
		events = []any{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":      id,
		"appName": r.PathValue("app"),
		"userId":  r.PathValue("user"),
		"events":  events,
	})
}

func (fb *FakeBackend) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	fb.mu.Lock()
	delete(fb.sessions, id)
	fb.sessIDs = removeID(fb.sessIDs, id)
	fb.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

// runSSE streams the configured lines. A request naming a session the
// backend does not hold gets a 404, as the agent server does.
func (fb *FakeBackend) runSSE(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"sessionId"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	fb.mu.Lock()
	_, known := fb.sessions[req.SessionID]
	lines := append([]string(nil), fb.sseLines...)
	fb.mu.Unlock()
	if req.SessionID != "" && !known {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Session not found"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	for _, line := range lines {
		_, _ = io.WriteString(w, line)
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
