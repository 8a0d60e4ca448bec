// Package lock keeps a single import writing to a store at a time.
package lock

import (
	"context"
	"errors"
	"time"
)

var ErrLockHeld = errors.New("lock: held by another process")

// Locker acquires a named lock. The returned unlock function releases it
// and is safe to call more than once.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// Nop never blocks.
type Nop struct{}

func (Nop) Acquire(context.Context, string, time.Duration) (func(), error) {
	return func() {}, nil
}
