// Package lock provides per-key mutual exclusion, in process or across
// replicas through Redis.
package lock

import (
	"context"
	"errors"
)

// ErrHeld is returned by TryLock when another holder owns the key.
var ErrHeld = errors.New("lock: already held")

// Locker hands out non-blocking exclusive locks on string keys. The
// returned release func is safe to call more than once.
type Locker interface {
	TryLock(ctx context.Context, key string) (release func(), err error)
}
