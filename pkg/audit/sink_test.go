package audit

import (
	"context"
	"sync"
)

// recordingSink captures events; block, when set, holds every Log until closed
type recordingSink struct {
	mu     sync.Mutex
	events []*Event
	err    error
	closed bool
	block  chan struct{}
}

func (s *recordingSink) Log(ctx context.Context, event *Event) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *recordingSink) Events() []*Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Event(nil), s.events...)
}

func (s *recordingSink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
