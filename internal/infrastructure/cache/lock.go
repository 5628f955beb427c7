package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/flowcomply/compliance-engine/internal/domain/errors"
	dwqarsvc "github.com/flowcomply/compliance-engine/internal/service/dwqar"
)

// releaseScript deletes the key only while it still holds our token, so an
// expired lease never deletes a successor's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a SET NX PX lock shared by every engine instance.
type RedisLocker struct {
	client redis.Cmdable
	logger *zap.Logger
}

func NewRedisLocker(client redis.Cmdable, logger *zap.Logger) *RedisLocker {
	return &RedisLocker{client: client, logger: logger.Named("lock")}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (dwqarsvc.Lease, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, errors.NewUpsertConflictError(key)
	}
	l.logger.Debug("lock acquired", zap.String("key", key), zap.Duration("ttl", ttl))
	return &redisLease{locker: l, key: key, token: token}, nil
}

type redisLease struct {
	locker *RedisLocker
	key    string
	token  string
}

func (r *redisLease) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, r.locker.client, []string{r.key}, r.token).Int()
	if err != nil {
		return fmt.Errorf("release lock %s: %w", r.key, err)
	}
	if n == 0 {
		r.locker.logger.Warn("lock expired before release", zap.String("key", r.key))
	}
	return nil
}

// LocalLocker serializes recomputation within one process.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]localEntry
	seq  uint64
	now  func() time.Time
}

type localEntry struct {
	token   uint64
	expires time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]localEntry), now: time.Now}
}

func (l *LocalLocker) Acquire(_ context.Context, key string, ttl time.Duration) (dwqarsvc.Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if e, ok := l.held[key]; ok && now.Before(e.expires) {
		return nil, errors.NewUpsertConflictError(key)
	}
	l.seq++
	e := localEntry{token: l.seq, expires: now.Add(ttl)}
	l.held[key] = e
	return &localLease{locker: l, key: key, token: e.token}, nil
}

type localLease struct {
	locker *LocalLocker
	key    string
	token  uint64
}

func (r *localLease) Release(context.Context) error {
	r.locker.mu.Lock()
	defer r.locker.mu.Unlock()
	if e, ok := r.locker.held[r.key]; ok && e.token == r.token {
		delete(r.locker.held, r.key)
	}
	return nil
}
