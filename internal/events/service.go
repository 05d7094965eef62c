package events

import (
	"context"
	"net/url"

	"github.com/iksnae/festive-connect/internal/api"
)

const basePath = "/events/"

// Service is the event CRUD client
type Service struct {
	client *api.Client
}

// NewService creates a Service backed by client
func NewService(client *api.Client) *Service {
	return &Service{client: client}
}

func eventPath(id string) string {
	return basePath + url.PathEscape(id)
}

// List returns every event in the order the backend sends them
func (s *Service) List(ctx context.Context) ([]Event, error) {
	var out []Event
	if err := s.client.Get(ctx, basePath, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns one event
func (s *Service) Get(ctx context.Context, id string) (*Event, error) {
	var out Event
	if err := s.client.Get(ctx, eventPath(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Create validates ev and posts it, returning the stored event
func (s *Service) Create(ctx context.Context, ev Event) (*Event, error) {
	ev.Normalize()
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	var out Event
	if err := s.client.Post(ctx, basePath, ev, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update replaces the event with id
func (s *Service) Update(ctx context.Context, id string, ev Event) (*Event, error) {
	ev.Normalize()
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	var out Event
	if err := s.client.Put(ctx, eventPath(id), ev, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes the event with id
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.client.Delete(ctx, eventPath(id), nil)
}
