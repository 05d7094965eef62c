package chat

import (
	"context"
	"errors"

	"github.com/iksnae/festive-connect/internal"
	"github.com/iksnae/festive-connect/internal/stream"
)

// RunEndpoint streams the agent's reply to one message
const RunEndpoint = "/run_sse"

// RunRequest is the body posted to RunEndpoint
type RunRequest struct {
	AppName    string         `json:"appName"`
	NewMessage Content        `json:"newMessage"`
	SessionID  string         `json:"sessionId"`
	StateDelta map[string]any `json:"stateDelta"`
	Streaming  bool           `json:"streaming"`
	UserID     string         `json:"userId"`
}

// SendMessage shows and stores the user's message, posts it to the agent
// and shows and stores each reply record as it arrives. Empty text with no
// attachment does nothing.
//
// A failure to persist does not stop the exchange; it is returned after the
// stream ends, joined with any stream error.
func (s *Synchronizer) SendMessage(ctx context.Context, text string, attachment *InlineData) error {
	if text == "" && attachment == nil {
		return nil
	}
	if s.active == "" {
		return ErrNoActiveSession
	}

	var parts []Part
	if text != "" {
		parts = append(parts, Part{Text: text})
	}
	if attachment != nil {
		parts = append(parts, Part{InlineData: attachment})
	}

	var persistErrs []error
	if err := s.show(WhoUser, Content{Parts: parts}); err != nil {
		persistErrs = append(persistErrs, err)
	}

	req := RunRequest{
		AppName:    s.agent,
		NewMessage: Content{Role: WhoUser, Parts: parts},
		SessionID:  s.active,
		UserID:     s.user,
	}
	st, err := s.client.PostStream(ctx, RunEndpoint, req)
	if err != nil {
		return errors.Join(append([]error{err}, persistErrs...)...)
	}
	defer st.Close()

	streamErr := st.Each(ctx, func(_ context.Context, rec stream.Record) error {
		content, ok := replyContent(rec)
		if !ok {
			return nil
		}
		if err := s.show(WhoModel, content); err != nil {
			persistErrs = append(persistErrs, err)
		}
		return nil
	})
	if n := st.Skipped(); n > 0 {
		internal.LogDebug("Skipped %d malformed records in reply to session %s", n, s.active)
	}
	return errors.Join(append([]error{streamErr}, persistErrs...)...)
}

// replyContent extracts the content of a reply record. Records that are
// not objects or carry no content are ignored.
func replyContent(rec stream.Record) (Content, bool) {
	if !rec.IsObject() {
		return Content{}, false
	}
	raw := rec.Get("content")
	if !raw.Exists() || !raw.IsObject() {
		return Content{}, false
	}
	var content Content
	if err := stream.NewRecord([]byte(raw.Raw)).Decode(&content); err != nil {
		internal.LogWarn("Skipping reply with unreadable content: %v", err)
		return Content{}, false
	}
	return content, true
}
