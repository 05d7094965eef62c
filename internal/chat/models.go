// Package chat keeps the agent's chat sessions in sync between the backend
// and the local key/value cache.
package chat

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

// Originators of a message
const (
	WhoUser     = "user"
	WhoModel    = "model"
	WhoFunction = "function"
)

// Session is the locally cached record of one conversation
type Session struct {
	ID        string    `json:"id" yaml:"id"`
	CreatedAt string    `json:"createdAt" yaml:"createdAt"`
	Messages  []Message `json:"messages" yaml:"messages"`
}

// Message is one rendered entry of a conversation
type Message struct {
	Who     string  `json:"who" yaml:"who"`
	Content Content `json:"content" yaml:"content"`
}

// Content is the agent framework's message payload
type Content struct {
	Role  string `json:"role,omitempty" yaml:"role,omitempty"`
	Parts []Part `json:"parts" yaml:"parts"`
}

// Part is one piece of content. Exactly one field is normally set.
type Part struct {
	Text             string            `json:"text,omitempty" yaml:"text,omitempty"`
	FunctionCall     *FunctionCall     `json:"functionCall,omitempty" yaml:"functionCall,omitempty"`
	FunctionResponse *FunctionResponse `json:"functionResponse,omitempty" yaml:"functionResponse,omitempty"`
	InlineData       *InlineData       `json:"inlineData,omitempty" yaml:"inlineData,omitempty"`
}

type FunctionCall struct {
	ID   string         `json:"id,omitempty" yaml:"id,omitempty"`
	Name string         `json:"name" yaml:"name"`
	Args map[string]any `json:"args,omitempty" yaml:"args,omitempty"`
}

type FunctionResponse struct {
	ID       string         `json:"id,omitempty" yaml:"id,omitempty"`
	Name     string         `json:"name" yaml:"name"`
	Response map[string]any `json:"response,omitempty" yaml:"response,omitempty"`
}

// InlineData is a base64 attachment
type InlineData struct {
	Data        string `json:"data" yaml:"data"`
	MimeType    string `json:"mimeType" yaml:"mimeType"`
	DisplayName string `json:"displayName,omitempty" yaml:"displayName,omitempty"`
}

// Bytes decodes the attachment. The backend sends URL-safe base64, so
// '_' and '-' are mapped back to the standard alphabet first.
func (d *InlineData) Bytes() ([]byte, error) {
	s := strings.NewReplacer("_", "/", "-", "+").Replace(d.Data)
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		if raw, rawErr := base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "=")); rawErr == nil {
			return raw, nil
		}
		return nil, fmt.Errorf("decode inline data %q: %w", d.DisplayName, err)
	}
	return b, nil
}

// IsImage reports whether the attachment has an image MIME type
func (d *InlineData) IsImage() bool {
	return strings.HasPrefix(d.MimeType, "image/")
}

// Text concatenates the text parts of the content
func (c Content) Text() string {
	var b strings.Builder
	for _, p := range c.Parts {
		if p.Text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(p.Text)
	}
	return b.String()
}

// RemoteSession is the backend's view of a session
type RemoteSession struct {
	ID             string         `json:"id"`
	AppName        string         `json:"appName"`
	UserID         string         `json:"userId"`
	State          map[string]any `json:"state,omitempty"`
	Events         []RemoteEvent  `json:"events"`
	LastUpdateTime float64        `json:"lastUpdateTime,omitempty"`
}

// RemoteEvent is one entry of a remote session's history. Content is nil
// for events that carry only state changes.
type RemoteEvent struct {
	ID           string   `json:"id"`
	Author       string   `json:"author"`
	InvocationID string   `json:"invocationId,omitempty"`
	Timestamp    float64  `json:"timestamp,omitempty"`
	Content      *Content `json:"content,omitempty"`
}

// LastUpdated converts LastUpdateTime, in fractional Unix seconds
func (s *RemoteSession) LastUpdated() time.Time {
	if s.LastUpdateTime == 0 {
		return time.Time{}
	}
	sec := int64(s.LastUpdateTime)
	nsec := int64((s.LastUpdateTime - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
