package approval

import "sync"

// expenseLocks serializes approval actions per expense id within this
// process. The database's optimistic version check is the cross-process
// backstop; this keeps single-node deployments from ever hitting it under
// normal contention.
type expenseLocks struct {
	mu    sync.Mutex
	locks map[int64]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newExpenseLocks() *expenseLocks {
	return &expenseLocks{locks: make(map[int64]*lockEntry)}
}

func (l *expenseLocks) Lock(id int64) {
	l.mu.Lock()
	entry, ok := l.locks[id]
	if !ok {
		entry = &lockEntry{}
		l.locks[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
}

func (l *expenseLocks) Unlock(id int64) {
	l.mu.Lock()
	entry, ok := l.locks[id]
	if ok {
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, id)
		}
	}
	l.mu.Unlock()

	if ok {
		entry.mu.Unlock()
	}
}
