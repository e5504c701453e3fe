package lock

import (
	"context"
)

// Manager creates and manages named locks.
type Manager interface {
	// Create creates an unlocked DistributedLock for a specific key.
	Create(ctx context.Context, name string) (DistributedLock, error)
}

// DistributedLock is a handle to a lock that may span across multiple
// processes, depending on the Manager implementation.
type DistributedLock interface {
	// Acquire attempts to acquire the lock, blocking until the lock has been
	// successfully acquired or ctx is done.
	//
	// The returned channel is closed when the lock is lost, which happens when
	// Unlock() is called or the underlying implementation detects that the lock
	// _might_ have been lost.
	Acquire(ctx context.Context) (<-chan struct{}, error)

	// Unlock unlocks the lock, if the lock is held.
	//
	// Unlock is idempotent.
	Unlock(ctx context.Context) error

	// IsLocked returns whether the lock is held by the process/manager.
	IsLocked() bool
}
