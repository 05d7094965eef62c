// Package events manages festival events through the backend's /events API.
package events

import (
	"errors"
	"strings"
)

// Event mirrors the backend's event model
type Event struct {
	ID          string   `json:"id,omitempty" yaml:"id,omitempty"`
	Title       string   `json:"title" yaml:"title"`
	Date        string   `json:"date" yaml:"date"`
	Location    string   `json:"location" yaml:"location"`
	Performers  []string `json:"performers" yaml:"performers"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	CreatedAt   string   `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt   string   `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

var (
	ErrMissingTitle    = errors.New("title is required")
	ErrMissingDate     = errors.New("date is required")
	ErrMissingLocation = errors.New("location is required")
)

// Validate checks the fields the backend requires
func (e *Event) Validate() error {
	switch {
	case strings.TrimSpace(e.Title) == "":
		return ErrMissingTitle
	case strings.TrimSpace(e.Date) == "":
		return ErrMissingDate
	case strings.TrimSpace(e.Location) == "":
		return ErrMissingLocation
	}
	if _, err := ParseDate(e.Date); err != nil {
		return err
	}
	return nil
}

// Normalize trims text fields and drops empty performers
func (e *Event) Normalize() {
	e.Title = strings.TrimSpace(e.Title)
	e.Location = strings.TrimSpace(e.Location)
	e.Description = strings.TrimSpace(e.Description)
	performers := make([]string, 0, len(e.Performers))
	for _, p := range e.Performers {
		if p = strings.TrimSpace(p); p != "" {
			performers = append(performers, p)
		}
	}
	e.Performers = performers
}

// ParsePerformers splits a comma-separated lineup, trimming names and
// dropping empty entries. It never returns nil.
func ParsePerformers(s string) []string {
	out := []string{}
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Lineup joins performers for display
func (e *Event) Lineup() string {
	return strings.Join(e.Performers, ", ")
}
