// Package docstore is a small hierarchical document store: JSON-like
// documents addressed by slash separated paths, with full writes, shallow
// merges, atomic multi-path batches and change subscriptions.
package docstore

import (
	"context"
	"errors"
)

// Document is a JSON-compatible object. Numbers read back from a store are
// float64; use Decode to get typed values.
type Document = map[string]any

var (
	ErrNotFound    = errors.New("docstore: document not found")
	ErrInvalidPath = errors.New("docstore: invalid path")
	ErrClosed      = errors.New("docstore: store closed")
)

// Event is delivered to subscribers. Exists is false when the path has no
// document.
type Event struct {
	Path   string
	Doc    Document
	Exists bool
}

// Store is implemented by every backend.
//
// Update merges fields into the top level of the document at path, creating
// it when absent. A nil field value removes that field.
//
// Subscribe delivers the current value first, then one event per change.
// Subscribers that fall behind only see the latest value. The channel is
// closed after unsubscribe is called or ctx ends.
type Store interface {
	Get(ctx context.Context, path string) (Document, error)
	Set(ctx context.Context, path string, doc Document) error
	Update(ctx context.Context, path string, fields Document) error
	Commit(ctx context.Context, batch *Batch) error
	List(ctx context.Context, parent string) (map[string]Document, error)
	Subscribe(ctx context.Context, path string) (<-chan Event, func(), error)
	Close() error
}

type OpKind int

const (
	OpSet OpKind = iota
	OpUpdate
)

func (k OpKind) String() string {
	if k == OpSet {
		return "set"
	}
	return "update"
}

type Write struct {
	Kind   OpKind
	Path   string
	Fields Document
}

// Batch collects writes that Commit applies together.
type Batch struct {
	writes []Write
}

func NewBatch() *Batch {
	return &Batch{}
}

func (b *Batch) Set(path string, doc Document) *Batch {
	b.writes = append(b.writes, Write{Kind: OpSet, Path: path, Fields: doc})
	return b
}

func (b *Batch) Update(path string, fields Document) *Batch {
	b.writes = append(b.writes, Write{Kind: OpUpdate, Path: path, Fields: fields})
	return b
}

func (b *Batch) Writes() []Write {
	if b == nil {
		return nil
	}
	return b.writes
}

func (b *Batch) Len() int {
	return len(b.Writes())
}

// normalize validates every path in the batch and returns the writes with
// cleaned paths.
func (b *Batch) normalize() ([]Write, error) {
	out := make([]Write, 0, b.Len())
	for _, w := range b.Writes() {
		p, err := CleanPath(w.Path)
		if err != nil {
			return nil, err
		}
		if err := validateFields(w.Fields); err != nil {
			return nil, err
		}
		out = append(out, Write{Kind: w.Kind, Path: p, Fields: w.Fields})
	}
	return out, nil
}

// apply computes the document that results from write w on current, which
// may be nil.
func apply(current Document, w Write) Document {
	if w.Kind == OpSet {
		return stripNil(clone(w.Fields))
	}
	return merge(current, w.Fields)
}
