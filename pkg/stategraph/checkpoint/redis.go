package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	backend "github.com/redis/go-redis/v9"
)

// RedisStore persists checkpoints to Redis. Suitable for deployments where
// multiple processes resume the same threads and checkpoint history is
// allowed to live in memory-backed storage.
//
// Key layout, under a configurable prefix:
//
//	<prefix><threadID>:<checkpointID>  checkpoint JSON
//	<prefix><threadID>:index           ZSET of checkpoint IDs scored by seq
//	<prefix><threadID>:seq             sequence counter
type RedisStore struct {
	client *backend.Client
	prefix string
	ttl    time.Duration

	mu     sync.RWMutex
	closed bool
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithRedisPrefix sets the key prefix. Defaults to "stategraph:ckpt:".
func WithRedisPrefix(prefix string) RedisOption {
	return func(r *RedisStore) {
		r.prefix = prefix
	}
}

// WithRedisTTL sets an expiration on checkpoint data as a retention policy.
// Zero (the default) keeps checkpoints forever.
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(r *RedisStore) {
		r.ttl = ttl
	}
}

// NewRedisStore creates a Redis-backed checkpoint store.
func NewRedisStore(addr, password string, db int, opts ...RedisOption) *RedisStore {
	client := backend.NewClient(&backend.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisStoreFromClient(client, opts...)
}

// NewRedisStoreFromClient creates a Redis-backed checkpoint store from an
// existing client. The store takes ownership: Close closes the client.
func NewRedisStoreFromClient(client *backend.Client, opts ...RedisOption) *RedisStore {
	store := &RedisStore{
		client: client,
		prefix: "stategraph:ckpt:",
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (r *RedisStore) dataKey(threadID, id string) string {
	return r.prefix + threadID + ":" + id
}

func (r *RedisStore) indexKey(threadID string) string {
	return r.prefix + threadID + ":index"
}

func (r *RedisStore) seqKey(threadID string) string {
	return r.prefix + threadID + ":seq"
}

func (r *RedisStore) isClosed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

// Put implements Store. The sequence counter makes Put safe across
// concurrent writers and processes.
func (r *RedisStore) Put(ctx context.Context, cp *Checkpoint) error {
	if r.isClosed() {
		return ErrStoreClosed
	}

	seq, err := r.client.Incr(ctx, r.seqKey(cp.ThreadID)).Result()
	if err != nil {
		return fmt.Errorf("assign sequence: %w", err)
	}
	cp.Seq = seq

	data, err := cp.Marshal()
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, r.dataKey(cp.ThreadID, cp.ID), data, r.ttl)
	pipe.ZAdd(ctx, r.indexKey(cp.ThreadID), backend.Z{
		Score:  float64(seq),
		Member: cp.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// Get implements Store.
func (r *RedisStore) Get(ctx context.Context, threadID, id string) (*Checkpoint, error) {
	if r.isClosed() {
		return nil, ErrStoreClosed
	}

	val, err := r.client.Get(ctx, r.dataKey(threadID, id)).Bytes()
	if errors.Is(err, backend.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	return Unmarshal(val)
}

// List implements Store. Checkpoints whose data expired under a TTL policy
// are skipped.
func (r *RedisStore) List(ctx context.Context, threadID string) ([]*Checkpoint, error) {
	if r.isClosed() {
		return nil, ErrStoreClosed
	}

	ids, err := r.client.ZRange(ctx, r.indexKey(threadID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list checkpoint index: %w", err)
	}
	if len(ids) == 0 {
		return []*Checkpoint{}, nil
	}

	pipe := r.client.Pipeline()
	gets := make([]*backend.StringCmd, len(ids))
	for i, id := range ids {
		gets[i] = pipe.Get(ctx, r.dataKey(threadID, id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, backend.Nil) {
		return nil, fmt.Errorf("load checkpoints: %w", err)
	}

	cps := make([]*Checkpoint, 0, len(ids))
	for _, get := range gets {
		val, err := get.Bytes()
		if errors.Is(err, backend.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load checkpoint: %w", err)
		}
		cp, err := Unmarshal(val)
		if err != nil {
			return nil, fmt.Errorf("parse checkpoint: %w", err)
		}
		cps = append(cps, cp)
	}
	return cps, nil
}

// Latest implements Store.
func (r *RedisStore) Latest(ctx context.Context, threadID string) (*Checkpoint, error) {
	if r.isClosed() {
		return nil, ErrStoreClosed
	}

	ids, err := r.client.ZRevRange(ctx, r.indexKey(threadID), 0, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("load checkpoint index: %w", err)
	}
	if len(ids) == 0 {
		return nil, ErrNotFound
	}
	return r.Get(ctx, threadID, ids[0])
}

// DeleteThread implements Store.
func (r *RedisStore) DeleteThread(ctx context.Context, threadID string) error {
	if r.isClosed() {
		return ErrStoreClosed
	}

	ids, err := r.client.ZRange(ctx, r.indexKey(threadID), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("load checkpoint index: %w", err)
	}

	pipe := r.client.Pipeline()
	for _, id := range ids {
		pipe.Del(ctx, r.dataKey(threadID, id))
	}
	pipe.Del(ctx, r.indexKey(threadID))
	pipe.Del(ctx, r.seqKey(threadID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete thread checkpoints: %w", err)
	}
	return nil
}

// Close implements Store. It closes the underlying client.
func (r *RedisStore) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	return r.client.Close()
}
