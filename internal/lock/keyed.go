// Package lock provides per-key mutual exclusion. It stands in for
// SELECT ... FOR UPDATE on engines without row locks.
package lock

import (
	"context"
	"sync"
)

type entry struct {
	ch   chan struct{} // 1-buffered; holding the token means holding the lock
	refs int
}

// Keyed hands out one exclusive lock per key. Entries are dropped once no
// goroutine holds or waits on them, so the map stays bounded by contention.
type Keyed struct {
	mu    sync.Mutex
	locks map[string]*entry
}

func NewKeyed() *Keyed { return &Keyed{locks: make(map[string]*entry)} }

// Lock blocks until key is held or ctx is done. The returned func releases it.
func (k *Keyed) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(key, e, false)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() { once.Do(func() { k.release(key, e, true) }) }, nil
}

func (k *Keyed) release(key string, e *entry, held bool) {
	if held {
		<-e.ch
	}
	k.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(k.locks, key)
	}
	k.mu.Unlock()
}

// Len is the number of keys currently tracked.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
