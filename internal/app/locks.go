package app

import (
	"slices"
	"sync"
)

// keyedMutex serializes work per key. lock takes all its keys in sorted
// order, so two callers locking overlapping key sets cannot deadlock.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

// lock acquires every key and returns the release function.
func (k *keyedMutex) lock(keys ...string) func() {
	keys = slices.Compact(slices.Sorted(slices.Values(keys)))

	held := make([]*sync.Mutex, 0, len(keys))
	for _, key := range keys {
		k.mu.Lock()
		l, ok := k.locks[key]
		if !ok {
			l = &sync.Mutex{}
			k.locks[key] = l
		}
		k.mu.Unlock()

		l.Lock()
		held = append(held, l)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}
