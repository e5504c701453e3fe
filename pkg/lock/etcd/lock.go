package etcd

import (
	"context"
	"path"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.etcd.io/etcd/api/v3/mvccpb"
	v3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"

	"github.com/code-payments/txstatus-server/pkg/lock"
	"github.com/code-payments/txstatus-server/pkg/retry"
	"github.com/code-payments/txstatus-server/pkg/retry/backoff"
)

var (
	ErrManagerClosed = errors.New("lock manager is closed")
)

const (
	sessionRecreateBaseDelay = 250 * time.Millisecond
	sessionRecreateMaxDelay  = 10 * time.Second
)

// LockManager is a lock.Manager backed by an etcd election per lock key. All
// locks created by a manager share a single lease (session).
type LockManager struct {
	log     *logrus.Entry
	client  *v3.Client
	rootKey string
	lockTTL int
	lockVal string

	closeOnce sync.Once
	closeCh   chan struct{}

	sessionMu sync.Mutex
	session   *concurrency.Session
}

// NewLockManager returns a new etcd backed lock.Manager. Lock keys are created
// under rootKey, and lockValue is stored as the owner of any acquired lock.
func NewLockManager(
	client *v3.Client,
	rootKey string,
	lockTTL time.Duration,
	lockValue string,
) (*LockManager, error) {
	// WithTTL() silently defaults to 60 seconds outside of (0s, 60s]
	if lockTTL < time.Second || lockTTL > time.Minute {
		return nil, errors.Errorf("invalid lock ttl: %s (must be [1s, 60s])", lockTTL)
	}

	lockTTLSeconds := int(lockTTL.Round(time.Second).Seconds())

	session, err := newSession(client, lockTTLSeconds)
	if err != nil {
		return nil, errors.Wrap(err, "error creating etcd session")
	}

	lm := &LockManager{
		log: logrus.StandardLogger().WithFields(logrus.Fields{
			"type": "lock/etcd/LockManager",
			"root": rootKey,
		}),
		client:  client,
		rootKey: rootKey,
		lockTTL: lockTTLSeconds,
		lockVal: lockValue,

		closeCh: make(chan struct{}),
		session: session,
	}

	// The session keeps itself alive through leadership changes, but can still
	// end for good (ie. a leaderless cluster). watchSession replaces it when
	// that happens.
	go lm.watchSession()

	return lm, nil
}

// Create implements lock.Manager.Create
func (lm *LockManager) Create(_ context.Context, name string) (lock.DistributedLock, error) {
	if len(name) == 0 {
		return nil, errors.New("lock name is required")
	}

	lm.sessionMu.Lock()
	defer lm.sessionMu.Unlock()

	if lm.session == nil {
		return nil, ErrManagerClosed
	}

	return newLock(lm, path.Join(lm.rootKey, name), lm.lockVal), nil
}

// Close closes the lock manager. All locks held through the manager are
// released.
func (lm *LockManager) Close() {
	lm.closeOnce.Do(func() {
		lm.sessionMu.Lock()
		defer lm.sessionMu.Unlock()

		close(lm.closeCh)

		if err := lm.session.Close(); err != nil {
			lm.log.WithError(err).Warn("failure closing etcd session")
		}

		lm.session = nil
	})
}

func (lm *LockManager) currentSession() *concurrency.Session {
	lm.sessionMu.Lock()
	defer lm.sessionMu.Unlock()

	return lm.session
}

func (lm *LockManager) isClosed() bool {
	select {
	case <-lm.closeCh:
		return true
	default:
		return false
	}
}

func (lm *LockManager) watchSession() {
	for {
		session := lm.currentSession()
		if session == nil {
			return
		}

		select {
		case <-lm.closeCh:
			return
		case <-session.Done():
		}

		lm.log.Info("etcd session expired, recreating")

		var recreated *concurrency.Session
		_, err := retry.Retry(
			func() error {
				var err error
				recreated, err = newSession(lm.client, lm.lockTTL)
				if err != nil {
					lm.log.WithError(err).Warn("failure recreating etcd session")
				}
				return err
			},
			func(_ uint, _ error) bool {
				return !lm.isClosed()
			},
			retry.Backoff(backoff.BinaryExponential(sessionRecreateBaseDelay), sessionRecreateMaxDelay),
		)
		if err != nil {
			return
		}

		lm.sessionMu.Lock()
		if lm.session == nil {
			lm.sessionMu.Unlock()
			recreated.Close()
			return
		}
		lm.session = recreated
		lm.sessionMu.Unlock()
	}
}

func newSession(client *v3.Client, ttlSeconds int) (*concurrency.Session, error) {
	return concurrency.NewSession(
		client,
		concurrency.WithTTL(ttlSeconds),
		concurrency.WithContext(v3.WithRequireLeader(context.Background())),
	)
}

// Lock is a lock.DistributedLock backed by an etcd election.
type Lock struct {
	log *logrus.Entry
	lm  *LockManager
	key string
	val string

	electionMu sync.Mutex
	election   *concurrency.Election
}

func newLock(lm *LockManager, key, val string) *Lock {
	return &Lock{
		log: logrus.StandardLogger().WithFields(logrus.Fields{
			"type": "lock/etcd/Lock",
			"key":  key,
		}),
		lm:  lm,
		key: key,
		val: val,
	}
}

// Acquire implements lock.DistributedLock.Acquire
func (l *Lock) Acquire(ctx context.Context) (<-chan struct{}, error) {
	l.electionMu.Lock()
	defer l.electionMu.Unlock()

	if l.election != nil {
		return nil, errors.New("cannot call Acquire concurrently")
	}

	session := l.lm.currentSession()
	if session == nil {
		return nil, ErrManagerClosed
	}

	campaignCtx, cancelCampaign := context.WithCancel(ctx)
	election := concurrency.NewElection(session, l.key)
	if err := election.Campaign(campaignCtx, l.val); err != nil {
		cancelCampaign()
		return nil, errors.Wrap(err, "error acquiring lock")
	}

	l.log.Trace("lock acquired")
	l.election = election

	watchCh := session.Client().Watch(
		v3.WithRequireLeader(campaignCtx),
		election.Key(),
		v3.WithRev(election.Rev()),
	)

	lostCh := make(chan struct{})
	go func() {
		defer cancelCampaign()
		defer l.release(election)

		// Signal the loss before resigning, since Resign() blocks while the
		// cluster has no leader.
		defer close(lostCh)

		for {
			select {
			case <-session.Done():
				l.log.Warn("etcd session ended, releasing lock")
				return

			case watchEvent, ok := <-watchCh:
				if !ok {
					return
				}

				if err := watchEvent.Err(); err != nil {
					l.log.WithError(err).Warn("failure watching lock key")
					return
				}

				for _, event := range watchEvent.Events {
					switch event.Type {
					case mvccpb.PUT:
						if event.Kv.CreateRevision != election.Rev() {
							l.log.Warn("lock key create revision changed, releasing lock")
							return
						}
					case mvccpb.DELETE:
						l.log.Trace("lock key removed")
						return
					}
				}
			}
		}
	}()

	return lostCh, nil
}

func (l *Lock) release(election *concurrency.Election) {
	l.electionMu.Lock()
	defer l.electionMu.Unlock()

	if l.election != election {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := election.Resign(ctx); err != nil {
		l.log.WithError(err).Warn("failure resigning on lock cleanup")
	}

	l.election = nil
}

// Unlock implements lock.DistributedLock.Unlock
func (l *Lock) Unlock(ctx context.Context) error {
	l.electionMu.Lock()
	defer l.electionMu.Unlock()

	if l.election == nil {
		return nil
	}

	err := l.election.Resign(ctx)
	l.election = nil
	return err
}

// IsLocked implements lock.DistributedLock.IsLocked
func (l *Lock) IsLocked() bool {
	l.electionMu.Lock()
	defer l.electionMu.Unlock()

	return l.election != nil && l.election.Key() != ""
}
