// Package notify raises an event whenever the system clipboard changes.
//
// A Service owns one Source and fans its events out to a set of
// subscribers. Subscribing is idempotent and the service can be started
// and stopped any number of times.
package notify

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Subscriber receives change notifications. Implementations must be
// comparable (pointer receivers are the usual choice) and must not block
// for long; the payload is pulled by the subscriber itself.
type Subscriber interface {
	ClipboardChanged()
}

// Source produces one value per clipboard change until ctx is done, then
// closes the channel.
type Source interface {
	Name() string
	Watch(ctx context.Context) (<-chan struct{}, error)
}

// Service is the process-wide change notification service.
type Service struct {
	source Source
	logger *zap.Logger

	mu      sync.Mutex
	subs    map[Subscriber]struct{}
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewService creates a stopped Service around source.
func NewService(source Source, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		source: source,
		logger: logger,
		subs:   make(map[Subscriber]struct{}),
	}
}

// SourceName returns the name of the underlying source.
func (s *Service) SourceName() string {
	return s.source.Name()
}

// Subscribe registers sub. Registering the same subscriber again has no
// further effect.
func (s *Service) Subscribe(sub Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[sub] = struct{}{}
}

// Unsubscribe removes sub if present.
func (s *Service) Unsubscribe(sub Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, sub)
}

// Subscribers returns the number of registered subscribers.
func (s *Service) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Running reports whether the service is delivering events.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start begins watching the source. Calling Start on a running service is
// a no-op.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	watchCtx, cancel := context.WithCancel(ctx)
	events, err := s.source.Watch(watchCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("start %s clipboard watcher: %w", s.source.Name(), err)
	}

	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true
	go s.loop(events, s.done)

	s.logger.Info("Clipboard change notifier started", zap.String("source", s.source.Name()))
	return nil
}

// Stop halts delivery and waits for the event loop to exit. Calling Stop
// on a stopped service is a no-op.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.running = false
	s.mu.Unlock()

	cancel()
	<-done
	s.logger.Info("Clipboard change notifier stopped")
}

func (s *Service) loop(events <-chan struct{}, done chan struct{}) {
	defer close(done)
	for range events {
		s.dispatch()
	}
}

func (s *Service) dispatch() {
	s.mu.Lock()
	subs := make([]Subscriber, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		s.notify(sub)
	}
}

func (s *Service) notify(sub Subscriber) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Clipboard subscriber panicked",
				zap.Any("panic", r),
				zap.Stack("stack"))
		}
	}()
	sub.ClipboardChanged()
}
