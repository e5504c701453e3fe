//go:build integration

package etcd

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	v3 "go.etcd.io/etcd/client/v3"

	"github.com/code-payments/txstatus-server/pkg/etcdtest"
)

var testClient *v3.Client

func TestMain(m *testing.M) {
	log := logrus.StandardLogger()

	pool, err := dockertest.NewPool("")
	if err != nil {
		log.WithError(err).Error("Error creating docker pool")
		os.Exit(1)
	}

	client, teardown, err := etcdtest.StartEtcd(pool)
	if err != nil {
		log.WithError(err).Error("Error starting etcd")
		teardown()
		os.Exit(1)
	}
	testClient = client

	code := m.Run()
	teardown()
	os.Exit(code)
}

func TestLock_HappyPath(t *testing.T) {
	ctx := context.Background()

	lm, err := NewLockManager(testClient, "/txstatus/locks/happy", 5*time.Second, "test")
	require.NoError(t, err)
	defer lm.Close()

	l, err := lm.Create(ctx, "ORDER42")
	require.NoError(t, err)
	require.False(t, l.IsLocked())

	lostCh, err := l.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, l.IsLocked())

	require.NoError(t, l.Unlock(ctx))
	require.False(t, l.IsLocked())

	select {
	case <-lostCh:
	case <-time.After(5 * time.Second):
		t.Fatal("lost channel not closed after unlock")
	}

	// Unlock is idempotent
	require.NoError(t, l.Unlock(ctx))
}

func TestLock_Contention(t *testing.T) {
	ctx := context.Background()

	lm1, err := NewLockManager(testClient, "/txstatus/locks/contention", 5*time.Second, "lm1")
	require.NoError(t, err)
	defer lm1.Close()

	lm2, err := NewLockManager(testClient, "/txstatus/locks/contention", 5*time.Second, "lm2")
	require.NoError(t, err)
	defer lm2.Close()

	first, err := lm1.Create(ctx, "ORDER42")
	require.NoError(t, err)
	second, err := lm2.Create(ctx, "ORDER42")
	require.NoError(t, err)

	_, err = first.Acquire(ctx)
	require.NoError(t, err)

	timeoutCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	_, err = second.Acquire(timeoutCtx)
	require.Error(t, err)
	require.False(t, second.IsLocked())

	require.NoError(t, first.Unlock(ctx))

	_, err = second.Acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, second.Unlock(ctx))
}

func TestLock_ManagerClose(t *testing.T) {
	ctx := context.Background()

	lm, err := NewLockManager(testClient, "/txstatus/locks/close", 5*time.Second, "test")
	require.NoError(t, err)

	l, err := lm.Create(ctx, "ORDER42")
	require.NoError(t, err)

	lostCh, err := l.Acquire(ctx)
	require.NoError(t, err)

	lm.Close()

	select {
	case <-lostCh:
	case <-time.After(10 * time.Second):
		t.Fatal("lost channel not closed after manager close")
	}

	_, err = lm.Create(ctx, "ORDER43")
	require.ErrorIs(t, err, ErrManagerClosed)
}

func TestLockManager_InvalidTTL(t *testing.T) {
	_, err := NewLockManager(testClient, "/txstatus/locks/ttl", 500*time.Millisecond, "test")
	require.Error(t, err)

	_, err = NewLockManager(testClient, "/txstatus/locks/ttl", 2*time.Minute, "test")
	require.Error(t, err)
}
