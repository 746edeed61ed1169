package app

import "sync"

// moduleLocks hands out one read-write lock per schema module. Writes hold
// the exclusive side for the whole Validate+Authorize+Invoke span so a
// concurrent reader never observes a partially validated or applied write.
type moduleLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

func newModuleLocks() *moduleLocks {
	return &moduleLocks{locks: make(map[string]*sync.RWMutex)}
}

func (m *moduleLocks) get(module string) *sync.RWMutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[module]
	if !ok {
		l = &sync.RWMutex{}
		m.locks[module] = l
	}
	return l
}

// acquire takes the module lock for the operation kind and returns the
// matching release function. The caller must release on every exit path.
func (m *moduleLocks) acquire(module string, exclusive bool) func() {
	l := m.get(module)
	if exclusive {
		l.Lock()
		return l.Unlock
	}
	l.RLock()
	return l.RUnlock
}
