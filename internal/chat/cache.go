package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iksnae/festive-connect/internal"
	"github.com/tidwall/gjson"
)

// ErrNotCached is returned by Lookup when no entry exists for the session
var ErrNotCached = errors.New("session not cached")

// CorruptEntryError means a cache key holds something that is not a session
type CorruptEntryError struct {
	Key string
	Err error
}

func (e *CorruptEntryError) Error() string {
	return fmt.Sprintf("corrupt cache entry %s: %v", e.Key, e.Err)
}

func (e *CorruptEntryError) Unwrap() error {
	return e.Err
}

// isoMillis matches the millisecond ISO-8601 timestamps the browser client wrote
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// SessionCache stores one JSON document per session under prefix+id.
// It has no compare-and-swap; the last writer wins.
type SessionCache struct {
	store  internal.KVStore
	prefix string
	now    func() time.Time
}

// NewSessionCache creates a cache over store. An empty prefix uses
// internal.DefaultKeyPrefix.
func NewSessionCache(store internal.KVStore, prefix string) *SessionCache {
	if prefix == "" {
		prefix = internal.DefaultKeyPrefix
	}
	return &SessionCache{store: store, prefix: prefix, now: time.Now}
}

// Prefix returns the key prefix
func (c *SessionCache) Prefix() string {
	return c.prefix
}

// Key returns the storage key for a session id
func (c *SessionCache) Key(id string) string {
	return c.prefix + id
}

// NewSession returns an empty session stamped with the current time
func (c *SessionCache) NewSession(id string) *Session {
	return &Session{
		ID:        id,
		CreatedAt: c.now().UTC().Format(isoMillis),
		Messages:  []Message{},
	}
}

// Lookup returns the cached session, ErrNotCached when there is none, or a
// *CorruptEntryError when the stored value does not decode as a session.
func (c *SessionCache) Lookup(id string) (*Session, error) {
	key := c.Key(id)
	raw, err := c.store.Get(key)
	if errors.Is(err, internal.ErrKeyNotFound) {
		return nil, ErrNotCached
	}
	if err != nil {
		return nil, err
	}

	if !gjson.ValidBytes(raw) || !gjson.ParseBytes(raw).IsObject() {
		return nil, &CorruptEntryError{Key: key, Err: errors.New("not a JSON object")}
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, &CorruptEntryError{Key: key, Err: err}
	}
	if s.Messages == nil {
		s.Messages = []Message{}
	}
	return &s, nil
}

// Load returns the cached session or nil. Corrupt and unreadable entries
// count as absent.
func (c *SessionCache) Load(id string) *Session {
	s, err := c.Lookup(id)
	if err != nil {
		if !errors.Is(err, ErrNotCached) {
			internal.LogDebug("Ignoring cached session %s: %v", id, err)
		}
		return nil
	}
	return s
}

// Ensure returns the cached session. When nothing is stored and create is
// set, a fresh session is persisted and returned. An existing entry, even a
// corrupt one, is never overwritten, so repeated calls are idempotent.
func (c *SessionCache) Ensure(id string, create bool) (*Session, error) {
	s, err := c.Lookup(id)
	switch {
	case err == nil:
		return s, nil
	case errors.Is(err, ErrNotCached):
		if !create {
			return nil, nil
		}
		s = c.NewSession(id)
		if err := c.Save(s); err != nil {
			return nil, err
		}
		return s, nil
	default:
		var corrupt *CorruptEntryError
		if errors.As(err, &corrupt) {
			internal.LogDebug("Cached session %s is unreadable: %v", id, err)
			return nil, nil
		}
		return nil, err
	}
}

// Save writes the whole session under its key
func (c *SessionCache) Save(s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return c.store.Set(c.Key(s.ID), data)
}

// Remove deletes the session's entry. Removing a missing entry is not an error.
func (c *SessionCache) Remove(id string) error {
	err := c.store.Delete(c.Key(id))
	if errors.Is(err, internal.ErrKeyNotFound) {
		return nil
	}
	return err
}

// Keys returns every cache key under the prefix, sorted
func (c *SessionCache) Keys() ([]string, error) {
	return c.store.Keys(c.prefix)
}

// IDs returns the session ids of every cached entry
func (c *SessionCache) IDs() ([]string, error) {
	keys, err := c.Keys()
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(keys))
	for i, k := range keys {
		ids[i] = strings.TrimPrefix(k, c.prefix)
	}
	return ids, nil
}

// Snapshot maps every cache key to its parsed JSON value, or to the raw
// string when the value does not parse.
func (c *SessionCache) Snapshot() (map[string]any, error) {
	keys, err := c.Keys()
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		raw, err := c.store.Get(k)
		if errors.Is(err, internal.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			out[k] = string(raw)
			continue
		}
		out[k] = v
	}
	return out, nil
}

// Clear removes every entry under the prefix and returns how many were removed
func (c *SessionCache) Clear() (int, error) {
	keys, err := c.Keys()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, k := range keys {
		if err := c.store.Delete(k); err != nil && !errors.Is(err, internal.ErrKeyNotFound) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
