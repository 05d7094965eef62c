package chat

import "sync"

// Renderer is the display side of a conversation
type Renderer interface {
	Display(m Message)
	SetActiveSession(id string)
	RemoveSession(id string)
	Clear()
}

// Recorder is a Renderer that remembers what it was asked to show
type Recorder struct {
	mu       sync.Mutex
	messages []Message
	active   string
	removed  []string
	clears   int
}

func (r *Recorder) Display(m Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, m)
}

func (r *Recorder) SetActiveSession(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = id
}

func (r *Recorder) RemoveSession(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, id)
}

func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = nil
	r.clears++
}

// Messages returns what has been displayed since the last Clear
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// Active returns the last session marked active
func (r *Recorder) Active() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Removed returns every session id passed to RemoveSession
func (r *Recorder) Removed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.removed...)
}

// Clears returns how many times the display was cleared
func (r *Recorder) Clears() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clears
}

type discard struct{}

func (discard) Display(Message)         {}
func (discard) SetActiveSession(string) {}
func (discard) RemoveSession(string)    {}
func (discard) Clear()                  {}

// Discard is a Renderer that shows nothing
var Discard Renderer = discard{}
