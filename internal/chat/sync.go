package chat

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"

	"github.com/iksnae/festive-connect/internal"
	"github.com/iksnae/festive-connect/internal/api"
)

// ErrNoActiveSession is returned by operations that need an active session
var ErrNoActiveSession = errors.New("no active session")

// Synchronizer reconciles the backend's sessions with the local cache and
// tracks which session is active. It is not safe for concurrent use.
type Synchronizer struct {
	client   *api.Client
	cache    *SessionCache
	renderer Renderer
	agent    string
	user     string

	active string
	listed []string
}

// Option configures a Synchronizer
type Option func(*Synchronizer)

// WithAgent sets the agent (app) name used in session paths
func WithAgent(name string) Option {
	return func(s *Synchronizer) { s.agent = name }
}

// WithUser sets the user id used in session paths
func WithUser(id string) Option {
	return func(s *Synchronizer) { s.user = id }
}

// WithRenderer sets the display target. The default shows nothing.
func WithRenderer(r Renderer) Option {
	return func(s *Synchronizer) {
		if r != nil {
			s.renderer = r
		}
	}
}

// NewSynchronizer creates a synchronizer with no active session
func NewSynchronizer(client *api.Client, cache *SessionCache, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		client:   client,
		cache:    cache,
		renderer: Discard,
		agent:    internal.DefaultAgentName,
		user:     internal.DefaultUserID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Agent returns the agent name
func (s *Synchronizer) Agent() string { return s.agent }

// User returns the user id
func (s *Synchronizer) User() string { return s.user }

// Cache returns the local session cache
func (s *Synchronizer) Cache() *SessionCache { return s.cache }

// ActiveSession returns the active session id, or "" when there is none
func (s *Synchronizer) ActiveSession() string { return s.active }

// SetActiveSession makes id active without contacting the backend
func (s *Synchronizer) SetActiveSession(id string) {
	s.active = id
	s.renderer.SetActiveSession(id)
}

// Sessions returns the ids seen by the last listing, plus any created or
// rendered since.
func (s *Synchronizer) Sessions() []string {
	return append([]string(nil), s.listed...)
}

func (s *Synchronizer) sessionsPath() string {
	return fmt.Sprintf("/apps/%s/users/%s/sessions", url.PathEscape(s.agent), url.PathEscape(s.user))
}

func (s *Synchronizer) sessionPath(id string) string {
	return s.sessionsPath() + "/" + url.PathEscape(id)
}

func (s *Synchronizer) remember(id string) {
	if !slices.Contains(s.listed, id) {
		s.listed = append(s.listed, id)
	}
}

// ListRemoteSessions fetches the backend's session ids. Each id gets its
// cache entry looked up without creating one, and the first id becomes
// active when none is. On failure nothing changes.
func (s *Synchronizer) ListRemoteSessions(ctx context.Context) ([]string, error) {
	var remote []RemoteSession
	if err := s.client.Get(ctx, s.sessionsPath(), nil, &remote); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(remote))
	for _, rs := range remote {
		if rs.ID == "" {
			continue
		}
		if _, err := s.cache.Ensure(rs.ID, false); err != nil {
			internal.LogWarn("Failed to read cached session %s: %v", rs.ID, err)
		}
		ids = append(ids, rs.ID)
	}

	s.listed = ids
	if s.active == "" && len(ids) > 0 {
		s.SetActiveSession(ids[0])
	}
	return append([]string(nil), ids...), nil
}

// CreateSession creates a remote session, makes it active and gives it a
// local cache entry.
func (s *Synchronizer) CreateSession(ctx context.Context) (*RemoteSession, error) {
	var rs RemoteSession
	if err := s.client.Post(ctx, s.sessionsPath(), nil, &rs); err != nil {
		return nil, err
	}
	if rs.ID == "" {
		return nil, &internal.ParseError{Source: "response", Key: s.sessionsPath(), Err: errors.New("session has no id")}
	}

	s.remember(rs.ID)
	s.SetActiveSession(rs.ID)
	if _, err := s.cache.Ensure(rs.ID, true); err != nil {
		internal.LogWarn("Failed to cache new session %s: %v", rs.ID, err)
		return &rs, err
	}
	return &rs, nil
}

// GetRemoteSession fetches one session with its event history
func (s *Synchronizer) GetRemoteSession(ctx context.Context, id string) (*RemoteSession, error) {
	var rs RemoteSession
	if err := s.client.Get(ctx, s.sessionPath(id), nil, &rs); err != nil {
		return nil, err
	}
	return &rs, nil
}

// EnsureLocal returns the cached session, creating it when asked to
func (s *Synchronizer) EnsureLocal(id string, create bool) (*Session, error) {
	return s.cache.Ensure(id, create)
}

// AppendMessage persists a message to the active session. Without an
// active session it does nothing. A write failure is logged and returned;
// it never affects what was already displayed.
func (s *Synchronizer) AppendMessage(who string, content Content) error {
	if s.active == "" {
		return nil
	}

	stored := s.cache.Load(s.active)
	if stored == nil {
		stored = s.cache.NewSession(s.active)
	}
	stored.Messages = append(stored.Messages, Message{Who: who, Content: content})

	if err := s.cache.Save(stored); err != nil {
		internal.LogWarn("Failed to persist message: %v", err)
		return err
	}
	return nil
}

// show displays a message and then persists it
func (s *Synchronizer) show(who string, content Content) error {
	s.renderer.Display(Message{Who: who, Content: content})
	return s.AppendMessage(who, content)
}

// RenderSession fetches the remote session and redraws it: first the
// remote events that carry content, then the locally cached messages.
// Nothing is persisted while rendering. If the fetch fails, nothing is
// drawn and the active session is unchanged.
func (s *Synchronizer) RenderSession(ctx context.Context, id string) error {
	rs, err := s.GetRemoteSession(ctx, id)
	if err != nil {
		return err
	}

	s.remember(id)
	s.SetActiveSession(id)
	s.renderer.Clear()

	for _, ev := range rs.Events {
		if ev.Content == nil {
			continue
		}
		who := ev.Content.Role
		if who == "" {
			who = WhoModel
		}
		s.renderer.Display(Message{Who: who, Content: *ev.Content})
	}

	if stored := s.cache.Load(id); stored != nil {
		for _, m := range stored.Messages {
			s.renderer.Display(m)
		}
	}
	return nil
}

// DeleteSession deletes the remote session first. Only when that succeeds
// are the cache entry and display entry removed. Deleting the active
// session activates the next listed one, or none.
func (s *Synchronizer) DeleteSession(ctx context.Context, id string) error {
	if err := s.client.Delete(ctx, s.sessionPath(id), nil); err != nil {
		return err
	}

	var cacheErr error
	if err := s.cache.Remove(id); err != nil {
		internal.LogWarn("Failed to remove stored session: %v", err)
		cacheErr = err
	}

	s.listed = slices.DeleteFunc(s.listed, func(v string) bool { return v == id })
	s.renderer.RemoveSession(id)

	if s.active == id {
		next := ""
		if len(s.listed) > 0 {
			next = s.listed[0]
		}
		s.SetActiveSession(next)
	}
	return cacheErr
}
