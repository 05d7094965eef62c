package chat

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/iksnae/festive-connect/internal"
	"github.com/iksnae/festive-connect/internal/api"
	"github.com/iksnae/festive-connect/testutil"
	"github.com/tidwall/gjson"
)

func TestSendMessage(t *testing.T) {
	f := newSyncFixture(t, nil)
	f.sync.SetActiveSession("s1")
	f.backend.AddSession("s1")
	f.backend.SetStream(
		"data: {\"content\":{\"role\":\"model\",\"parts\":[{\"functionCall\":{\"name\":\"list_events\",\"args\":{}}}]}}\n",
		"data: {\"content\":{\"role\":\"model\",\"parts\":[{\"functionResponse\":{\"name\":\"list_events\",\"response\":{\"count\":2}}}]}}\n",
		"data: {\"no\":\"content\"}\n",
		"data: [1]\n",
		"data: {broken\n",
		"data: {\"content\":{\"role\":\"model\",\"parts\":[{\"text\":\"Two events",
		" found.\"}]}}\n",
	)

	if err := f.sync.SendMessage(context.Background(), "what's on?", nil); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}

	shown := f.recorder.Messages()
	if len(shown) != 4 {
		t.Fatalf("displayed %d messages, want 4: %v", len(shown), messageTexts(shown))
	}
	if shown[0].Who != WhoUser || shown[0].Content.Text() != "what's on?" {
		t.Errorf("first message = %+v", shown[0])
	}
	if fc := shown[1].Content.Parts[0].FunctionCall; fc == nil || fc.Name != "list_events" {
		t.Errorf("function call not decoded: %+v", shown[1])
	}
	if fr := shown[2].Content.Parts[0].FunctionResponse; fr == nil || fr.Response["count"] != float64(2) {
		t.Errorf("function response not decoded: %+v", shown[2])
	}
	if shown[3].Who != WhoModel || shown[3].Content.Text() != "Two events found." {
		t.Errorf("last message = %+v", shown[3])
	}

	stored := f.cache.Load("s1")
	if stored == nil || len(stored.Messages) != 4 {
		t.Fatalf("cached session = %+v, want 4 messages", stored)
	}
	if msgs := messageTexts(stored.Messages); msgs[0] != "user:what's on?" || msgs[3] != "model:Two events found." {
		t.Errorf("cached messages = %v", msgs)
	}

	reqs := f.backend.Requests()
	if len(reqs) != 1 || reqs[0].Path != RunEndpoint {
		t.Fatalf("requests = %+v", reqs)
	}
	body := gjson.Parse(reqs[0].Body)
	checks := map[string]string{
		"appName":                 "festive_agent",
		"sessionId":               "s1",
		"userId":                  "user",
		"newMessage.role":         "user",
		"newMessage.parts.0.text": "what's on?",
		"streaming":               "false",
		"stateDelta":              "",
	}
	for path, want := range checks {
		if got := body.Get(path).String(); got != want {
			t.Errorf("payload %s = %q, want %q", path, got, want)
		}
	}
	if !body.Get("stateDelta").Exists() || body.Get("stateDelta").Type != gjson.Null {
		t.Error("payload stateDelta should be an explicit null")
	}
}

func TestSendMessage_EmptyIsNoop(t *testing.T) {
	f := newSyncFixture(t, nil)
	f.sync.SetActiveSession("s1")
	if err := f.sync.SendMessage(context.Background(), "", nil); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if len(f.backend.Requests()) != 0 || len(f.recorder.Messages()) != 0 {
		t.Error("empty message was sent or shown")
	}
}

func TestSendMessage_NoActiveSession(t *testing.T) {
	f := newSyncFixture(t, nil)
	if err := f.sync.SendMessage(context.Background(), "hi", nil); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("SendMessage() error = %v, want ErrNoActiveSession", err)
	}
}

func TestSendMessage_WithAttachment(t *testing.T) {
	f := newSyncFixture(t, nil)
	f.sync.SetActiveSession("s1")
	f.backend.AddSession("s1")
	att := &InlineData{Data: "aGk=", MimeType: "text/plain", DisplayName: "note.txt"}

	if err := f.sync.SendMessage(context.Background(), "", att); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	body := gjson.Parse(f.backend.Requests()[0].Body)
	if got := body.Get("newMessage.parts.0.inlineData.displayName").String(); got != "note.txt" {
		t.Errorf("attachment displayName = %q", got)
	}
	if body.Get("newMessage.parts.#").Int() != 1 {
		t.Error("attachment-only message should have a single part")
	}
}

func TestSendMessage_StreamFailure(t *testing.T) {
	f := newSyncFixture(t, nil)
	f.sync.SetActiveSession("s1")
	f.backend.Fail(http.MethodPost, RunEndpoint, http.StatusServiceUnavailable, "")

	err := f.sync.SendMessage(context.Background(), "hello", nil)
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusServiceUnavailable {
		t.Fatalf("SendMessage() error = %v, want 503 APIError", err)
	}
	// The user's message was shown and kept before the request failed
	if s := f.cache.Load("s1"); s == nil || len(s.Messages) != 1 {
		t.Errorf("cached session = %+v, want the user message", s)
	}
}

func TestSendMessage_PersistFailureStillDisplays(t *testing.T) {
	f := newSyncFixture(t, failingStore{internal.NewMemoryStore()})
	f.sync.SetActiveSession("s1")
	f.backend.AddSession("s1")
	f.backend.SetStream("data: {\"content\":{\"role\":\"model\",\"parts\":[{\"text\":\"ok\"}]}}\n")

	err := f.sync.SendMessage(context.Background(), "hello", nil)
	var storageErr *internal.StorageError
	if !errors.As(err, &storageErr) {
		t.Errorf("SendMessage() error = %v, want *internal.StorageError", err)
	}
	if n := len(f.recorder.Messages()); n != 2 {
		t.Errorf("displayed %d messages, want 2", n)
	}
}

func TestAttachmentFromFile(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	tests := []struct {
		name     string
		file     string
		data     []byte
		wantMime string
	}{
		{"by extension", "poster.png", png, "image/png"},
		{"text with charset stripped", "notes.txt", []byte("lineup"), "text/plain"},
		{"sniffed without extension", "blob", png, "image/png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := testutil.WriteFile(t, dir, tt.file, tt.data)
			att, err := AttachmentFromFile(path)
			if err != nil {
				t.Fatalf("AttachmentFromFile() error = %v", err)
			}
			if att.MimeType != tt.wantMime {
				t.Errorf("MimeType = %q, want %q", att.MimeType, tt.wantMime)
			}
			if att.DisplayName != tt.file {
				t.Errorf("DisplayName = %q, want %q", att.DisplayName, tt.file)
			}
			got, err := att.Bytes()
			if err != nil || string(got) != string(tt.data) {
				t.Errorf("Bytes() = %q, %v", got, err)
			}
		})
	}

	if _, err := AttachmentFromFile(filepath.Join(dir, "missing")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("AttachmentFromFile(missing) error = %v", err)
	}
}

func TestInlineData_Bytes(t *testing.T) {
	raw := []byte{0xfb, 0xff, 0xbf, 0x01}
	urlSafe := base64.URLEncoding.EncodeToString(raw)

	tests := []struct {
		name string
		data string
	}{
		{"url safe alphabet", urlSafe},
		{"standard alphabet", base64.StdEncoding.EncodeToString(raw)},
		{"unpadded", base64.RawURLEncoding.EncodeToString(raw)},
	}
	for _, tt := range tests {
		got, err := (&InlineData{Data: tt.data}).Bytes()
		if err != nil {
			t.Errorf("%s: Bytes() error = %v", tt.name, err)
			continue
		}
		if string(got) != string(raw) {
			t.Errorf("%s: Bytes() = %x, want %x", tt.name, got, raw)
		}
	}

	if _, err := (&InlineData{Data: "!!!"}).Bytes(); err == nil {
		t.Error("Bytes() accepted invalid base64")
	}
}

func TestRemoteSession_LastUpdated(t *testing.T) {
	rs := RemoteSession{LastUpdateTime: 1759312800.5}
	got := rs.LastUpdated()
	if got.Unix() != 1759312800 || got.Nanosecond() != 500000000 {
		t.Errorf("LastUpdated() = %v", got)
	}
	if !(&RemoteSession{}).LastUpdated().IsZero() {
		t.Error("zero LastUpdateTime should give the zero time")
	}
}
