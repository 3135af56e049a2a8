package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	redisDocPrefix      = "doc:"
	redisChildrenPrefix = "doc:children:"
	redisEventPrefix    = "doc:events:"
	redisMaxTxRetries   = 10
)

// RedisStore keeps each document as a JSON string under doc:{path}. Parents
// track their children in a set so List is a single SMEMBERS. Changes are
// published on doc:events:{path}.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func docKey(path string) string      { return redisDocPrefix + path }
func childrenKey(path string) string { return redisChildrenPrefix + path }
func eventChannel(path string) string {
	return redisEventPrefix + path
}

func (r *RedisStore) Get(ctx context.Context, path string) (Document, error) {
	p, err := CleanPath(path)
	if err != nil {
		return nil, err
	}
	raw, err := r.client.Get(ctx, docKey(p)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", p, err)
	}
	doc, err := unmarshalDoc(raw)
	if err != nil {
		return nil, fmt.Errorf("redis decode %s: %w", p, err)
	}
	return doc, nil
}

func (r *RedisStore) Set(ctx context.Context, path string, doc Document) error {
	return r.Commit(ctx, NewBatch().Set(path, doc))
}

func (r *RedisStore) Update(ctx context.Context, path string, fields Document) error {
	return r.Commit(ctx, NewBatch().Update(path, fields))
}

// Commit watches every key the batch touches, computes the new documents
// and writes them in one MULTI/EXEC. A concurrent writer aborts the
// transaction and the batch is retried.
func (r *RedisStore) Commit(ctx context.Context, batch *Batch) error {
	writes, err := batch.normalize()
	if err != nil {
		return err
	}
	if len(writes) == 0 {
		return nil
	}

	var order, keys []string
	seen := map[string]bool{}
	for _, w := range writes {
		if !seen[w.Path] {
			seen[w.Path] = true
			order = append(order, w.Path)
			keys = append(keys, docKey(w.Path))
		}
	}

	txf := func(tx *redis.Tx) error {
		current := make(map[string]Document, len(order))
		for _, p := range order {
			raw, err := tx.Get(ctx, docKey(p)).Bytes()
			switch {
			case errors.Is(err, redis.Nil):
				current[p] = nil
			case err != nil:
				return err
			default:
				doc, err := unmarshalDoc(raw)
				if err != nil {
					return fmt.Errorf("redis decode %s: %w", p, err)
				}
				current[p] = doc
			}
		}
		for _, w := range writes {
			current[w.Path] = apply(current[w.Path], w)
		}

		encoded := make(map[string][]byte, len(order))
		for _, p := range order {
			b, err := marshalDoc(current[p])
			if err != nil {
				return err
			}
			encoded[p] = b
		}

		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, p := range order {
				pipe.Set(ctx, docKey(p), encoded[p], 0)
				if parent, key := Split(p); parent != "" {
					pipe.SAdd(ctx, childrenKey(parent), key)
				}
				pipe.Publish(ctx, eventChannel(p), encoded[p])
			}
			return nil
		})
		return err
	}

	for i := 0; i < redisMaxTxRetries; i++ {
		err := r.client.Watch(ctx, txf, keys...)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return fmt.Errorf("redis commit: %w", err)
	}
	return fmt.Errorf("redis commit: %w after %d attempts", redis.TxFailedErr, redisMaxTxRetries)
}

func (r *RedisStore) List(ctx context.Context, parent string) (map[string]Document, error) {
	p, err := CleanPath(parent)
	if err != nil {
		return nil, err
	}
	children, err := r.client.SMembers(ctx, childrenKey(p)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list %s: %w", p, err)
	}
	out := make(map[string]Document, len(children))
	if len(children) == 0 {
		return out, nil
	}

	keys := make([]string, len(children))
	for i, c := range children {
		keys[i] = docKey(Join(p, c))
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list %s: %w", p, err)
	}
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		doc, err := unmarshalDoc([]byte(s))
		if err != nil {
			return nil, fmt.Errorf("redis decode %s: %w", keys[i], err)
		}
		out[children[i]] = doc
	}
	return out, nil
}

// Subscribe confirms the pub/sub subscription before reading the current
// value, so no change between the two can be missed.
func (r *RedisStore) Subscribe(ctx context.Context, path string) (<-chan Event, func(), error) {
	p, err := CleanPath(path)
	if err != nil {
		return nil, nil, err
	}

	ps := r.client.Subscribe(ctx, eventChannel(p))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("redis subscribe %s: %w", p, err)
	}

	sub := newSubscription(p)
	doc, err := r.Get(ctx, p)
	switch {
	case errors.Is(err, ErrNotFound):
		sub.deliver(Event{Path: p, Exists: false})
	case err != nil:
		_ = ps.Close()
		return nil, nil, err
	default:
		sub.deliver(Event{Path: p, Doc: doc, Exists: true})
	}

	unsubscribe := func() {
		_ = ps.Close()
		sub.close()
	}

	go func() {
		defer unsubscribe()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var doc Document
				if err := json.Unmarshal([]byte(msg.Payload), &doc); err != nil {
					continue
				}
				sub.deliver(Event{Path: p, Doc: doc, Exists: true})
			}
		}
	}()

	return sub.ch, unsubscribe, nil
}

// Close is a no-op; the client belongs to the caller.
func (r *RedisStore) Close() error {
	return nil
}
