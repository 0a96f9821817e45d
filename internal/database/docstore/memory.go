package docstore

import (
	"context"
	"errors"
	"maps"
	"sync"
	"time"
)

var ErrStoreClosed = errors.New("document store closed")

// MemoryStore keeps documents in process. It backs the service when no
// Firestore credentials are configured and is used by tests.
type MemoryStore struct {
	mu        sync.Mutex
	docs      map[string]Document
	subs      map[string]map[*memorySubscription]struct{}
	writeErr  error
	closed    bool
	clockFunc func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:      make(map[string]Document),
		subs:      make(map[string]map[*memorySubscription]struct{}),
		clockFunc: time.Now,
	}
}

func (m *MemoryStore) Get(ctx context.Context, path string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Document{}, ErrStoreClosed
	}
	return copyDocument(m.lookup(path)), nil
}

func (m *MemoryStore) Set(ctx context.Context, path string, data map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	if m.writeErr != nil {
		return m.writeErr
	}

	doc := Document{
		Path:       path,
		Data:       maps.Clone(data),
		Exists:     true,
		UpdateTime: m.clockFunc(),
	}
	m.docs[path] = doc
	m.broadcast(path, Event{Document: doc})
	return nil
}

// Delete removes the document and notifies subscribers with an absent document.
func (m *MemoryStore) Delete(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, path)
	m.broadcast(path, Event{Document: Document{Path: path, UpdateTime: m.clockFunc()}})
}

// Fail terminates every subscription on path with err.
func (m *MemoryStore) Fail(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.broadcast(path, Event{Document: Document{Path: path}, Err: err})
}

// FailWrites makes every following Set return err. A nil err restores writes.
func (m *MemoryStore) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

func (m *MemoryStore) Subscribe(ctx context.Context, path string, fn func(Event)) (Unsubscribe, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrStoreClosed
	}

	sub := newMemorySubscription(fn)
	if m.subs[path] == nil {
		m.subs[path] = make(map[*memorySubscription]struct{})
	}
	m.subs[path][sub] = struct{}{}
	sub.push(Event{Document: copyDocument(m.lookup(path))})
	go sub.run(ctx)

	return func() {
		m.mu.Lock()
		delete(m.subs[path], sub)
		m.mu.Unlock()
		sub.stop()
	}, nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	m.closed = true
	all := make([]*memorySubscription, 0)
	for path, set := range m.subs {
		for sub := range set {
			all = append(all, sub)
		}
		delete(m.subs, path)
	}
	m.mu.Unlock()

	for _, sub := range all {
		sub.stop()
	}
	return nil
}

func (m *MemoryStore) lookup(path string) Document {
	if doc, ok := m.docs[path]; ok {
		return doc
	}
	return Document{Path: path}
}

// broadcast must be called with m.mu held so events keep write order.
func (m *MemoryStore) broadcast(path string, evt Event) {
	for sub := range m.subs[path] {
		sub.push(Event{Document: copyDocument(evt.Document), Err: evt.Err})
	}
}

func copyDocument(doc Document) Document {
	doc.Data = maps.Clone(doc.Data)
	return doc
}

// memorySubscription delivers events in push order on its own goroutine.
type memorySubscription struct {
	fn       func(Event)
	mu       sync.Mutex
	queue    []Event
	notify   chan struct{}
	done     chan struct{}
	finished chan struct{}
	once     sync.Once
}

func newMemorySubscription(fn func(Event)) *memorySubscription {
	return &memorySubscription{
		fn:       fn,
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

func (s *memorySubscription) push(evt Event) {
	s.mu.Lock()
	s.queue = append(s.queue, evt)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *memorySubscription) run(ctx context.Context) {
	defer close(s.finished)
	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case <-s.notify:
			if stop := s.drain(); stop {
				return
			}
		}
	}
}

// drain delivers queued events and reports whether the subscription ended.
func (s *memorySubscription) drain() bool {
	for {
		select {
		case <-s.done:
			return true
		default:
		}

		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return false
		}
		evt := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.fn(evt)
		if evt.Err != nil {
			return true
		}
	}
}

func (s *memorySubscription) stop() {
	s.once.Do(func() { close(s.done) })
	<-s.finished
}
