package docstore

import (
	"context"
	"strings"
	"sync"
)

// MemoryStore keeps documents in process. It backs tests and single-node
// development.
type MemoryStore struct {
	mu     sync.RWMutex
	docs   map[string]Document
	subs   map[string]map[*subscription]struct{}
	closed bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]Document),
		subs: make(map[string]map[*subscription]struct{}),
	}
}

func (m *MemoryStore) Get(ctx context.Context, path string) (Document, error) {
	p, err := CleanPath(path)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	doc, ok := m.docs[p]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(doc), nil
}

func (m *MemoryStore) Set(ctx context.Context, path string, doc Document) error {
	return m.Commit(ctx, NewBatch().Set(path, doc))
}

func (m *MemoryStore) Update(ctx context.Context, path string, fields Document) error {
	return m.Commit(ctx, NewBatch().Update(path, fields))
}

// Commit applies every write under one lock; readers never observe a
// partially applied batch.
func (m *MemoryStore) Commit(ctx context.Context, batch *Batch) error {
	writes, err := batch.normalize()
	if err != nil {
		return err
	}
	normalized := make([]Write, len(writes))
	for i, w := range writes {
		fields, err := normalizeJSON(w.Fields)
		if err != nil {
			return err
		}
		normalized[i] = Write{Kind: w.Kind, Path: w.Path, Fields: fields}
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	touched := make(map[string]struct{}, len(normalized))
	for _, w := range normalized {
		m.docs[w.Path] = apply(m.docs[w.Path], w)
		touched[w.Path] = struct{}{}
	}
	// deliver never blocks, so fan-out happens under the write lock and
	// subscribers see batches in commit order.
	for p := range touched {
		for sub := range m.subs[p] {
			sub.deliver(Event{Path: p, Doc: m.docs[p], Exists: true})
		}
	}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) List(ctx context.Context, parent string) (map[string]Document, error) {
	p, err := CleanPath(parent)
	if err != nil {
		return nil, err
	}
	prefix := p + "/"

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	out := make(map[string]Document)
	for path, doc := range m.docs {
		rest, ok := strings.CutPrefix(path, prefix)
		if !ok || strings.Contains(rest, "/") {
			continue
		}
		out[rest] = clone(doc)
	}
	return out, nil
}

func (m *MemoryStore) Subscribe(ctx context.Context, path string) (<-chan Event, func(), error) {
	p, err := CleanPath(path)
	if err != nil {
		return nil, nil, err
	}

	sub := newSubscription(p)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, nil, ErrClosed
	}
	if m.subs[p] == nil {
		m.subs[p] = make(map[*subscription]struct{})
	}
	m.subs[p][sub] = struct{}{}
	doc, ok := m.docs[p]
	sub.deliver(Event{Path: p, Doc: doc, Exists: ok})
	m.mu.Unlock()

	unsubscribe := func() {
		m.mu.Lock()
		delete(m.subs[p], sub)
		if len(m.subs[p]) == 0 {
			delete(m.subs, p)
		}
		m.mu.Unlock()
		sub.close()
	}

	go func() {
		select {
		case <-ctx.Done():
			unsubscribe()
		case <-sub.done:
		}
	}()

	return sub.ch, unsubscribe, nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	var subs []*subscription
	for _, set := range m.subs {
		for sub := range set {
			subs = append(subs, sub)
		}
	}
	m.subs = nil
	m.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
	return nil
}

// normalizeJSON round-trips fields through JSON so the memory store holds
// the same value types as the networked backends.
func normalizeJSON(fields Document) (Document, error) {
	if fields == nil {
		return nil, nil
	}
	b, err := marshalDoc(fields)
	if err != nil {
		return nil, err
	}
	return unmarshalDoc(b)
}
