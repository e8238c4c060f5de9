// internal/infra/etcd/locker.go
package etcd

import (
	"context"
	"fmt"
	"time"

	"rtm-dispatcher/internal/domain"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"
)

const (
	// LockPrefix is the root path for distributed locks in etcd.
	LockPrefix = "/rtm/locks/"
	// LockSessionTTL bounds how long a crashed holder keeps a lock. Seconds.
	LockSessionTTL = 10
)

// etcdLock implements domain.Lock.
type etcdLock struct {
	mutex   *concurrency.Mutex
	session *concurrency.Session
	name    string
}

// Unlock releases the distributed lock and closes its session.
func (l *etcdLock) Unlock(ctx context.Context) error {
	defer func() {
		if l.session != nil {
			_ = l.session.Close()
		}
	}()
	if err := l.mutex.Unlock(ctx); err != nil {
		return fmt.Errorf("failed to unlock %s: %w", l.name, err)
	}
	return nil
}

// etcdLocker implements domain.Locker.
type etcdLocker struct {
	client *clientv3.Client
}

// NewEtcdLocker creates a distributed locker backed by etcd.
func NewEtcdLocker(client *clientv3.Client) domain.Locker {
	return &etcdLocker{client: client}
}

// Lock makes one non-blocking attempt to take the named lock. Each attempt uses
// its own session so an expired lease releases the lock on its own.
func (l *etcdLocker) Lock(ctx context.Context, name string) (domain.Lock, error) {
	session, err := concurrency.NewSession(l.client, concurrency.WithTTL(LockSessionTTL))
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd session for lock %s: %w", name, err)
	}

	mutex := concurrency.NewMutex(session, LockPrefix+name)

	tryCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()

	if err := mutex.TryLock(tryCtx); err != nil {
		_ = session.Close()
		if err == context.DeadlineExceeded || err == concurrency.ErrLocked {
			return nil, domain.ErrLockNotAcquired
		}
		return nil, fmt.Errorf("failed to try acquiring etcd lock %s: %w", name, err)
	}

	return &etcdLock{
		mutex:   mutex,
		session: session,
		name:    name,
	}, nil
}
