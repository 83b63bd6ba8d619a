package service

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	dErrors "kycdesk/pkg/domain-errors"
)

const (
	numTxShards      = 64
	defaultTxTimeout = 5 * time.Second
)

// InMemoryTx serializes in-memory store mutations per code. Operations on
// different codes proceed in parallel. It gives isolation, not rollback; the
// in-memory stores validate before they write.
type InMemoryTx struct {
	shards  [numTxShards]sync.Mutex
	timeout time.Duration
}

func NewInMemoryTx() *InMemoryTx {
	return &InMemoryTx{timeout: defaultTxTimeout}
}

type txShardKey struct{}

// WithShardKey routes the next RunInTx to the lock shard of key.
func WithShardKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, txShardKey{}, key)
}

func (t *InMemoryTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	shard := t.selectShard(ctx)
	t.shards[shard].Lock()
	defer t.shards[shard].Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return fn(ctx)
}

func (t *InMemoryTx) selectShard(ctx context.Context) uint32 {
	key, _ := ctx.Value(txShardKey{}).(string)
	if key == "" {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32() % numTxShards
}
