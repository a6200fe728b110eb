// Package lock serializes work per key, either inside one process or across
// processes sharing a redis instance.
package lock

import (
	"context"
	"fmt"
	"sync"
)

// Key is the lock key of one (owner, video) download link
func Key(ownerID int64, videoID string) string {
	return fmt.Sprintf("%d:%s", ownerID, videoID)
}

// Locker acquires an exclusive hold on a key. The returned func releases it and is safe to call twice.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// keyEntry is dropped from the map once no holder or waiter references it
type keyEntry struct {
	ch   chan struct{}
	refs int
}

// KeyLocker is an in-process Locker backed by one buffered channel per busy key
type KeyLocker struct {
	mu   sync.Mutex
	keys map[string]*keyEntry
}

// NewKeyLocker creates an in-process locker
func NewKeyLocker() *KeyLocker {
	return &KeyLocker{keys: make(map[string]*keyEntry)}
}

// Lock waits until key is free or ctx is done
func (l *KeyLocker) Lock(ctx context.Context, key string) (func(), error) {
	e := l.acquire(key)

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			l.release(key, e)
		})
	}, nil
}

// size returns the number of keys currently held or waited on
func (l *KeyLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.keys)
}

func (l *KeyLocker) acquire(key string) *keyEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.keys[key]
	if !ok {
		e = &keyEntry{ch: make(chan struct{}, 1)}
		l.keys[key] = e
	}
	e.refs++
	return e
}

func (l *KeyLocker) release(key string, e *keyEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.keys, key)
	}
}
