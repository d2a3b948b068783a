package importjob

import (
	"context"
	"sync"
)

// tenantLocks serializes executions per tenant within the process.
type tenantLocks struct {
	mu    sync.Mutex
	locks map[string]*tenantLock
}

type tenantLock struct {
	ch   chan struct{}
	refs int
}

func newTenantLocks() *tenantLocks {
	return &tenantLocks{locks: make(map[string]*tenantLock)}
}

// acquire blocks until the tenant's lock is free or ctx is done. The
// returned func releases it.
func (t *tenantLocks) acquire(ctx context.Context, tenantID string) (func(), error) {
	t.mu.Lock()
	l, ok := t.locks[tenantID]
	if !ok {
		l = &tenantLock{ch: make(chan struct{}, 1)}
		t.locks[tenantID] = l
	}
	l.refs++
	t.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
		return func() {
			<-l.ch
			t.release(tenantID, l)
		}, nil
	case <-ctx.Done():
		t.release(tenantID, l)
		return nil, ctx.Err()
	}
}

func (t *tenantLocks) release(tenantID string, l *tenantLock) {
	t.mu.Lock()
	defer t.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(t.locks, tenantID)
	}
}
