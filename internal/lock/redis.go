package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mantidproject/mantid-sub073/pkg/types"
)

// DefaultRedisTimeout bounds each Redis round trip.
const DefaultRedisTimeout = 2 * time.Second

// releaseScript deletes the key only while it still carries our owner id.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisOptions configures a RedisRegistry.
type RedisOptions struct {
	// Namespace scopes every key; registries with the same namespace see
	// each other's locks.
	Namespace string

	// TTL expires a held key so a crashed holder cannot keep it forever.
	// Zero means no expiry. A holder that outlives its TTL loses the key
	// without being told; SingleOwnerLock.Locked notices through Owns.
	TTL time.Duration

	// Timeout bounds each Redis call. Zero uses DefaultRedisTimeout.
	Timeout time.Duration

	Logger *slog.Logger
}

// RedisRegistry keeps lock state in Redis so that separate processes share
// one view of which keys are checked out. Each registry has its own owner id;
// only the owner that set a key can release it.
type RedisRegistry struct {
	rdb       *redis.Client
	namespace string
	owner     string
	ttl       time.Duration
	timeout   time.Duration
	logger    *slog.Logger
}

// Compile-time checks that RedisRegistry satisfies Registry and
// OwnershipChecker.
var (
	_ Registry         = (*RedisRegistry)(nil)
	_ OwnershipChecker = (*RedisRegistry)(nil)
)

// NewRedisRegistry connects a registry to Redis.
// Returns an error if the namespace is empty.
func NewRedisRegistry(redisOpts *redis.Options, opts RedisOptions) (*RedisRegistry, error) {
	if opts.Namespace == "" {
		return nil, fmt.Errorf("redis lock namespace cannot be empty")
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultRedisTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &RedisRegistry{
		rdb:       redis.NewClient(redisOpts),
		namespace: opts.Namespace,
		owner:     uuid.NewString(),
		ttl:       opts.TTL,
		timeout:   opts.Timeout,
		logger:    opts.Logger,
	}, nil
}

// RedisKey returns the Redis key that stores the lock for key.
func RedisKey(namespace string, key Key) string {
	return fmt.Sprintf("memento:%s:lock:%s", namespace, key)
}

// Owner returns the id written into every key this registry holds.
func (r *RedisRegistry) Owner() string { return r.owner }

// Ping verifies Redis connectivity.
func (r *RedisRegistry) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection. Held keys are not released.
func (r *RedisRegistry) Close() error {
	return r.rdb.Close()
}

// Acquire sets the key if nobody holds it.
func (r *RedisRegistry) Acquire(key Key) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	ok, err := r.rdb.SetNX(ctx, RedisKey(r.namespace, key), r.owner, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		r.logger.Debug("lock contention", "key", key.String(), "namespace", r.namespace)
		return heldError(key)
	}
	return nil
}

// Release deletes the key if this registry owns it.
func (r *RedisRegistry) Release(key Key) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	n, err := releaseScript.Run(ctx, r.rdb, []string{RedisKey(r.namespace, key)}, r.owner).Int()
	if err != nil {
		return false, fmt.Errorf("release %s: %w", key, err)
	}
	if n == 0 {
		r.logger.Warn("released lock not owned", "key", key.String(), "owner", r.owner)
	}
	return n > 0, nil
}

// Held reports whether anyone holds the key.
func (r *RedisRegistry) Held(key Key) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	n, err := r.rdb.Exists(ctx, RedisKey(r.namespace, key)).Result()
	if err != nil {
		return false, fmt.Errorf("check %s: %w", key, err)
	}
	return n > 0, nil
}

// Owns reports whether the key is set to this registry's owner id.
func (r *RedisRegistry) Owns(key Key) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	owner, err := r.rdb.Get(ctx, RedisKey(r.namespace, key)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check owner of %s: %w", key, err)
	}
	return owner == r.owner, nil
}

// NewRegistry builds the registry selected by cfg.
func NewRegistry(cfg types.Config, logger *slog.Logger) (Registry, error) {
	switch cfg.GetLockBackend() {
	case types.LockBackendMemory:
		return NewMemoryRegistry(logger), nil
	case types.LockBackendRedis:
		return NewRedisRegistry(&redis.Options{Addr: cfg.RedisAddr}, RedisOptions{
			Namespace: cfg.GetRedisNamespace(),
			TTL:       cfg.GetLockTTL(),
			Logger:    logger,
		})
	default:
		return nil, types.ErrLockBackendUnknown
	}
}
