// Package stream decodes the agent's streaming reply: newline-delimited
// JSON records, each optionally framed with the server-sent-events
// "data: " marker, arriving in arbitrarily split chunks.
package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"

	"github.com/iksnae/festive-connect/internal"
	"github.com/tidwall/gjson"
)

// FrameMarker is the 6-byte event-stream prefix stripped from each line.
const FrameMarker = "data: "

const defaultChunkSize = 4096

// Record is one decoded JSON value. The decoder enforces no schema.
type Record struct {
	raw []byte
}

// NewRecord wraps raw JSON. It does not validate.
func NewRecord(raw []byte) Record {
	return Record{raw: raw}
}

// Bytes returns the raw JSON of the record
func (r Record) Bytes() []byte { return r.raw }

func (r Record) String() string { return string(r.raw) }

// Decode unmarshals the record into v
func (r Record) Decode(v any) error {
	return json.Unmarshal(r.raw, v)
}

// Get returns the value at a gjson path, e.g. "content.parts.0.text"
func (r Record) Get(path string) gjson.Result {
	return gjson.GetBytes(r.raw, path)
}

// IsObject reports whether the record is a JSON object
func (r Record) IsObject() bool {
	return gjson.ParseBytes(r.raw).IsObject()
}

// Decoder reads records from an io.Reader one chunk at a time. A chunk is
// only requested when the buffered bytes hold no complete line, so the
// producer is never read ahead of the consumer.
//
// Usage:
//
//	dec := stream.NewDecoder(resp.Body)
//	for dec.Next() {
//	    rec := dec.Record()
//	    // ...
//	}
//	if err := dec.Err(); err != nil {
//	    // transport failure
//	}
type Decoder struct {
	r       io.Reader
	chunk   []byte
	buf     []byte
	off     int
	current Record
	eof     bool
	err     error
	skipped int
}

// NewDecoder creates a decoder over r
func NewDecoder(r io.Reader) *Decoder {
	return NewDecoderSize(r, defaultChunkSize)
}

// NewDecoderSize creates a decoder that requests at most size bytes per read
func NewDecoderSize(r io.Reader, size int) *Decoder {
	if size <= 0 {
		size = defaultChunkSize
	}
	return &Decoder{r: r, chunk: make([]byte, size)}
}

// Next advances to the next well-formed record. It returns false when the
// source is exhausted or a read fails; Err tells the two apart.
func (d *Decoder) Next() bool {
	d.current = Record{}
	for {
		if i := bytes.IndexByte(d.buf[d.off:], '\n'); i >= 0 {
			line := d.buf[d.off : d.off+i]
			d.off += i + 1
			if d.accept(line) {
				return true
			}
			continue
		}

		if d.eof {
			// Unterminated remainder gets one final parse.
			rest := d.buf[d.off:]
			d.buf, d.off = d.buf[:0], 0
			return len(rest) > 0 && d.accept(rest)
		}
		if d.err != nil {
			return false
		}
		d.fill()
	}
}

// fill compacts the buffer and appends the next chunk from the source
func (d *Decoder) fill() {
	if d.off > 0 {
		n := copy(d.buf, d.buf[d.off:])
		d.buf, d.off = d.buf[:n], 0
	}

	n, err := d.r.Read(d.chunk)
	if n > 0 {
		d.buf = append(d.buf, d.chunk[:n]...)
	}
	switch {
	case err == io.EOF:
		d.eof = true
	case err != nil:
		d.err = err
	}
}

// accept parses one candidate line and makes it current when it is valid JSON
func (d *Decoder) accept(line []byte) bool {
	line = bytes.TrimSuffix(line, []byte{'\r'})
	if len(bytes.TrimSpace(line)) == 0 {
		return false
	}
	// SSE comment / keep-alive
	if line[0] == ':' {
		return false
	}

	payload := bytes.TrimPrefix(line, []byte(FrameMarker))
	if !gjson.ValidBytes(payload) {
		d.skipped++
		internal.LogWarn("Skipping malformed stream record: %s", truncate(payload, 120))
		return false
	}

	d.current = Record{raw: append([]byte(nil), payload...)}
	return true
}

// Record returns the most recently decoded record. Only valid after Next returns true.
func (d *Decoder) Record() Record {
	return d.current
}

// Err returns the read error that stopped decoding, or nil on a clean end of stream
func (d *Decoder) Err() error {
	return d.err
}

// Skipped returns how many malformed records were dropped so far
func (d *Decoder) Skipped() int {
	return d.skipped
}

// All returns the remaining records as a lazy sequence. A read failure is
// yielded once, as the final pair, with a zero Record.
func (d *Decoder) All() iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for d.Next() {
			if !yield(d.Record(), nil) {
				return
			}
		}
		if err := d.Err(); err != nil {
			yield(Record{}, err)
		}
	}
}

// Decode reads every record from r and calls fn for each, in stream order.
// The next chunk is not read until fn returns. Decoding stops at the first
// error from fn, from ctx, or from the reader.
func Decode(ctx context.Context, r io.Reader, fn func(context.Context, Record) error) error {
	for rec, err := range NewDecoder(r).All() {
		if err != nil {
			return fmt.Errorf("read stream: %w", err)
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

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
