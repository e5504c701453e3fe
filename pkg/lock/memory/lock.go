package memory

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/code-payments/txstatus-server/pkg/lock"
	sync_util "github.com/code-payments/txstatus-server/pkg/sync"
)

const defaultStripes = 1024

// LockManager is a process local lock.Manager backed by a striped lock. Locks
// for different names may share a stripe. Unlike the etcd implementation,
// locks are not re-entrant.
type LockManager struct {
	locks *sync_util.StripedLock
}

// NewLockManager returns a new process local lock.Manager
func NewLockManager() *LockManager {
	return &LockManager{
		locks: sync_util.NewStripedLock(defaultStripes),
	}
}

// Create implements lock.Manager.Create
func (m *LockManager) Create(_ context.Context, name string) (lock.DistributedLock, error) {
	if len(name) == 0 {
		return nil, errors.New("lock name is required")
	}

	return &localLock{
		mu: m.locks.Get([]byte(name)),
	}, nil
}

type localLock struct {
	mu *sync.RWMutex

	stateMu sync.Mutex
	lostCh  chan struct{}
}

// Acquire implements lock.DistributedLock.Acquire
func (l *localLock) Acquire(ctx context.Context) (<-chan struct{}, error) {
	if l.IsLocked() {
		return nil, errors.New("cannot call Acquire concurrently")
	}

	acquired := make(chan struct{})
	go func() {
		l.mu.Lock()
		close(acquired)
	}()

	select {
	case <-acquired:
	case <-ctx.Done():
		// The pending Lock() call cannot be abandoned, so release it as soon as
		// it completes.
		go func() {
			<-acquired
			l.mu.Unlock()
		}()
		return nil, ctx.Err()
	}

	lostCh := make(chan struct{})

	l.stateMu.Lock()
	l.lostCh = lostCh
	l.stateMu.Unlock()

	return lostCh, nil
}

// Unlock implements lock.DistributedLock.Unlock
func (l *localLock) Unlock(_ context.Context) error {
	l.stateMu.Lock()
	defer l.stateMu.Unlock()

	if l.lostCh == nil {
		return nil
	}

	close(l.lostCh)
	l.lostCh = nil
	l.mu.Unlock()
	return nil
}

// IsLocked implements lock.DistributedLock.IsLocked
func (l *localLock) IsLocked() bool {
	l.stateMu.Lock()
	defer l.stateMu.Unlock()

	return l.lostCh != nil
}
