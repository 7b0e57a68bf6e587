package app

import "sync"

type refMutex struct {
	mu   sync.Mutex
	refs int
}

// KeyedMutex hands out one mutex per key and frees it once nobody holds
// or waits for it.
type KeyedMutex[K comparable] struct {
	mu sync.Mutex
	m  map[K]*refMutex
}

func (l *KeyedMutex[K]) Lock(key K) (unlock func()) {
	l.mu.Lock()
	if l.m == nil {
		l.m = make(map[K]*refMutex)
	}
	rm, ok := l.m[key]
	if !ok {
		rm = &refMutex{}
		l.m[key] = rm
	}
	rm.refs++
	l.mu.Unlock()

	rm.mu.Lock()
	return func() {
		rm.mu.Unlock()
		l.mu.Lock()
		rm.refs--
		if rm.refs == 0 {
			delete(l.m, key)
		}
		l.mu.Unlock()
	}
}

// Held reports how many keys are currently locked or awaited.
func (l *KeyedMutex[K]) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}
