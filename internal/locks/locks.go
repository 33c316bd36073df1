// Package locks provides the per-user mutual exclusion scope required by
// ledger writes, projections and corporate actions. Operations for different
// users never contend; operations for the same user are serialized so a sell
// validated against a projection cannot race past a concurrent write.
package locks

import "sync"

// UserLocks is a registry of per-user mutexes. The zero value is not usable;
// construct with New.
type UserLocks struct {
	locks sync.Map // map[string]*sync.Mutex
}

func New() *UserLocks {
	return &UserLocks{}
}

func (l *UserLocks) get(userID string) *sync.Mutex {
	mu, ok := l.locks.Load(userID)
	if !ok {
		mu, _ = l.locks.LoadOrStore(userID, &sync.Mutex{})
	}
	return mu.(*sync.Mutex)
}

// Lock acquires the mutex for the given user, blocking until it is free.
func (l *UserLocks) Lock(userID string) {
	l.get(userID).Lock()
}

// Unlock releases the mutex for the given user.
func (l *UserLocks) Unlock(userID string) {
	l.get(userID).Unlock()
}
