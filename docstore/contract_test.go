package docstore

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreContract exercises the behaviour every backend must share. prefix
// keeps runs against shared servers apart.
func runStoreContract(t *testing.T, store Store, prefix string) {
	t.Helper()
	ctx := context.Background()
	p := func(s string) string { return prefix + "/" + s }

	t.Run("get missing", func(t *testing.T) {
		_, err := store.Get(ctx, p("missing/doc"))
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("set then get", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, p("payments/REF1"), Document{
			"reference": "REF1",
			"amount":    2500000,
			"customer":  map[string]any{"email": "a@b.c"},
		}))
		doc, err := store.Get(ctx, p("payments/REF1"))
		require.NoError(t, err)
		assert.Equal(t, "REF1", doc["reference"])
		assert.Equal(t, float64(2500000), doc["amount"])
		assert.Equal(t, map[string]any{"email": "a@b.c"}, doc["customer"])
	})

	t.Run("set replaces", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, p("replace/doc"), Document{"a": "1", "b": "2"}))
		require.NoError(t, store.Set(ctx, p("replace/doc"), Document{"c": "3"}))
		doc, err := store.Get(ctx, p("replace/doc"))
		require.NoError(t, err)
		assert.Equal(t, Document{"c": "3"}, doc)
	})

	t.Run("update merges and creates", func(t *testing.T) {
		require.NoError(t, store.Update(ctx, p("merge/doc"), Document{"status": "pending", "email": "x@y.z"}))
		require.NoError(t, store.Update(ctx, p("merge/doc"), Document{"status": "verifying", "email": nil}))
		doc, err := store.Get(ctx, p("merge/doc"))
		require.NoError(t, err)
		assert.Equal(t, Document{"status": "verifying"}, doc)
	})

	t.Run("commit applies all writes", func(t *testing.T) {
		batch := NewBatch().
			Set(p("batch/one"), Document{"n": 1}).
			Update(p("batch/two"), Document{"n": 2}).
			Update(p("batch/one"), Document{"m": 3})
		require.NoError(t, store.Commit(ctx, batch))

		one, err := store.Get(ctx, p("batch/one"))
		require.NoError(t, err)
		assert.Equal(t, Document{"n": float64(1), "m": float64(3)}, one)
		two, err := store.Get(ctx, p("batch/two"))
		require.NoError(t, err)
		assert.Equal(t, Document{"n": float64(2)}, two)
	})

	t.Run("list direct children", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, p("list/a"), Document{"v": "a"}))
		require.NoError(t, store.Set(ctx, p("list/b"), Document{"v": "b"}))
		require.NoError(t, store.Set(ctx, p("list/b/nested"), Document{"v": "nested"}))

		children, err := store.List(ctx, p("list"))
		require.NoError(t, err)
		assert.Len(t, children, 2)
		assert.Equal(t, "a", children["a"]["v"])
		assert.Equal(t, "b", children["b"]["v"])
	})

	t.Run("subscribe sees current value then changes", func(t *testing.T) {
		path := p(fmt.Sprintf("sub/%d", time.Now().UnixNano()))
		subCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		events, unsubscribe, err := store.Subscribe(subCtx, path)
		require.NoError(t, err)
		defer unsubscribe()

		first := <-events
		assert.False(t, first.Exists)

		require.NoError(t, store.Update(ctx, path, Document{"status": "verifying"}))
		require.NoError(t, store.Update(ctx, path, Document{"status": "success"}))

		deadline := time.After(5 * time.Second)
		for {
			select {
			case ev := <-events:
				if ev.Exists && ev.Doc["status"] == "success" {
					return
				}
			case <-deadline:
				t.Fatal("did not observe final status")
			}
		}
	})

	t.Run("invalid path rejected", func(t *testing.T) {
		err := store.Set(ctx, p("bad.key"), Document{"a": "b"})
		assert.True(t, errors.Is(err, ErrInvalidPath))
	})
}
