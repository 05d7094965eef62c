package api

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/iksnae/festive-connect/internal/stream"
	"github.com/iksnae/festive-connect/testutil"
)

func TestPostStream(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	fb.AddSession("s1")
	fb.SetStream(
		"data: {\"content\":{\"role\":\"model\",\"parts\":[{\"text\":\"Hel",
		"lo\"}]}}\n\ndata: {not json}\n",
		"data: {\"content\":{\"role\":\"model\",\"parts\":[{\"text\":\"Bye\"}]}}",
	)

	c := NewClient(fb.URL())
	s, err := c.PostStream(context.Background(), "/run_sse", map[string]any{"sessionId": "s1"})
	if err != nil {
		t.Fatalf("PostStream() error = %v", err)
	}
	defer s.Close()

	var texts []string
	err = s.Each(context.Background(), func(_ context.Context, rec stream.Record) error {
		texts = append(texts, rec.Get("content.parts.0.text").String())
		return nil
	})
	if err != nil {
		t.Fatalf("Each() error = %v", err)
	}
	if len(texts) != 2 || texts[0] != "Hello" || texts[1] != "Bye" {
		t.Errorf("texts = %v, want [Hello Bye]", texts)
	}
	if s.Skipped() != 1 {
		t.Errorf("Skipped() = %d, want 1", s.Skipped())
	}

	reqs := fb.Requests()
	if len(reqs) != 1 {
		t.Fatalf("requests = %d, want 1", len(reqs))
	}
	if got := reqs[0].Header.Get("Accept"); got != "text/event-stream" {
		t.Errorf("Accept = %q, want text/event-stream", got)
	}
	if got := reqs[0].Header.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", got)
	}
}

func TestPostStream_Records(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	fb.SetStream("data: {\"n\":1}\n", "data: {\"n\":2}\n")

	s, err := NewClient(fb.URL()).PostStream(context.Background(), "/run_sse", nil)
	if err != nil {
		t.Fatalf("PostStream() error = %v", err)
	}
	defer s.Close()

	var n []int64
	for rec, err := range s.Records() {
		if err != nil {
			t.Fatalf("Records() error = %v", err)
		}
		n = append(n, rec.Get("n").Int())
	}
	if len(n) != 2 || n[0] != 1 || n[1] != 2 {
		t.Errorf("records = %v, want [1 2]", n)
	}
}

func TestPostStream_HTTPError(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	fb.Fail(http.MethodPost, "/run_sse", http.StatusInternalServerError, `{"message":"ignored"}`)

	_, err := NewClient(fb.URL()).PostStream(context.Background(), "/run_sse", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %T %v, want *APIError", err, err)
	}
	if apiErr.Message != "HTTP error! status: 500" {
		t.Errorf("Message = %q", apiErr.Message)
	}
}

func TestPostStream_CallbackError(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	fb.SetStream("data: {\"n\":1}\n", "data: {\"n\":2}\n")

	s, err := NewClient(fb.URL()).PostStream(context.Background(), "/run_sse", nil)
	if err != nil {
		t.Fatalf("PostStream() error = %v", err)
	}
	defer s.Close()

	stop := errors.New("render failed")
	calls := 0
	err = s.Each(context.Background(), func(context.Context, stream.Record) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) {
		t.Errorf("Each() error = %v, want %v", err, stop)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestPostStream_TransportError(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	fb.DropConnections()

	_, err := NewClient(fb.URL()).PostStream(context.Background(), "/run_sse", nil)
	var tErr *TransportError
	if !errors.As(err, &tErr) {
		t.Errorf("error = %T %v, want *TransportError", err, err)
	}
}
