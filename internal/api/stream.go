package api

import (
	"context"
	"io"
	"iter"
	"net/http"

	"github.com/iksnae/festive-connect/internal"
	"github.com/iksnae/festive-connect/internal/stream"
)

// Stream is an open event-stream response. The caller must Close it.
type Stream struct {
	endpoint string
	body     io.ReadCloser
	dec      *stream.Decoder
}

// PostStream posts body as JSON and returns the streaming response.
// A non-2xx status fails before any record is read.
func (c *Client) PostStream(ctx context.Context, endpoint string, body any) (*Stream, error) {
	extra := http.Header{"Accept": []string{"text/event-stream"}}
	resp, err := c.send(ctx, http.MethodPost, endpoint, jsonBody(body), extra)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// The stream endpoint never reports a readable error body
		_ = resp.Body.Close()
		apiErr := newAPIError(http.MethodPost, endpoint, resp.StatusCode, nil)
		internal.LogError("Streaming POST request error: %s", apiErr.Message)
		return nil, apiErr
	}

	return &Stream{endpoint: endpoint, body: resp.Body, dec: stream.NewDecoder(resp.Body)}, nil
}

// Records returns the remaining records lazily
func (s *Stream) Records() iter.Seq2[stream.Record, error] {
	return s.dec.All()
}

// Each calls fn for every record in order and waits for fn before reading on
func (s *Stream) Each(ctx context.Context, fn func(context.Context, stream.Record) error) error {
	for rec, err := range s.dec.All() {
		if err != nil {
			internal.LogError("Streaming POST request error: %v", err)
			return &TransportError{Method: http.MethodPost, Endpoint: s.endpoint, Err: err}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// Skipped returns the number of malformed records dropped so far
func (s *Stream) Skipped() int {
	return s.dec.Skipped()
}

// Close releases the response body
func (s *Stream) Close() error {
	return s.body.Close()
}
