package docstore

import "sync"

// subscription delivers events on a one-slot channel. When the slot is
// full the pending event is replaced, so a slow reader always sees the
// latest value.
type subscription struct {
	path string
	ch   chan Event

	mu     sync.Mutex
	closed bool
	once   sync.Once
	done   chan struct{}
}

func newSubscription(path string) *subscription {
	return &subscription{
		path: path,
		ch:   make(chan Event, 1),
		done: make(chan struct{}),
	}
}

func (s *subscription) deliver(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	ev.Doc = clone(ev.Doc)
	for {
		select {
		case s.ch <- ev:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

func (s *subscription) close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
		close(s.done)
	})
}
