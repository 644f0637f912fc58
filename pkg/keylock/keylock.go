// Package keylock serializes work per string key. Entries are reference
// counted and dropped when no goroutine holds or waits on them.
package keylock

import (
	"context"
	"sync"
)

type entry struct {
	ch   chan struct{}
	refs int
}

type Locker struct {
	mu    sync.Mutex
	locks map[string]*entry
}

func New() *Locker {
	return &Locker{locks: make(map[string]*entry)}
}

func (l *Locker) acquire(key string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.locks[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	return e
}

func (l *Locker) release(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
}

// Lock blocks until key is free and returns the unlock function.
func (l *Locker) Lock(key string) func() {
	e := l.acquire(key)
	e.ch <- struct{}{}
	return l.unlocker(key, e)
}

// LockContext is Lock with cancellation. On ctx expiry the waiter gives up
// and ctx.Err() is returned.
func (l *Locker) LockContext(ctx context.Context, key string) (func(), error) {
	e := l.acquire(key)
	select {
	case e.ch <- struct{}{}:
		return l.unlocker(key, e), nil
	case <-ctx.Done():
		l.release(key, e)
		return nil, ctx.Err()
	}
}

func (l *Locker) unlocker(key string, e *entry) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			l.release(key, e)
		})
	}
}

// Len reports the number of keys currently held or awaited.
func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
