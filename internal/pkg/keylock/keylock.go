package keylock

import (
	"context"
	"sync"
)

// Mutex is a set of named mutexes. Entries are dropped once nobody holds or
// waits on them.
type Mutex struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	ch   chan struct{}
	refs int
}

func New() *Mutex {
	return &Mutex{locks: map[string]*entry{}}
}

// Lock blocks until key is free and returns its unlock func.
func (m *Mutex) Lock(key string) func() {
	unlock, _ := m.LockContext(context.Background(), key)
	return unlock
}

// LockContext is Lock with cancellation. On error nothing is held.
func (m *Mutex) LockContext(ctx context.Context, key string) (func(), error) {
	e := m.ref(key)
	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		m.unref(key)
		return nil, ctx.Err()
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			m.unref(key)
		})
	}, nil
}

func (m *Mutex) ref(key string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks == nil {
		m.locks = map[string]*entry{}
	}
	e, ok := m.locks[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		m.locks[key] = e
	}
	e.refs++
	return e
}

func (m *Mutex) unref(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.locks[key]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(m.locks, key)
	}
}
