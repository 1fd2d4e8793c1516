package service

import (
	"context"
	"sync"
)

// lockTx is the default StoreTx: a single mutex around the callback. It is
// only correct while one process owns the store.
type lockTx struct {
	mu sync.Mutex
}

func (t *lockTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(ctx)
}
