package params

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/example/object-recognition-dummy/internal/logging"
)

// DefaultRedisKey is the hash holding parameters, one field per resolved name.
const DefaultRedisKey = "params"

// Hash abstracts the redis hash read used by Redis to make testing easier.
type Hash interface {
	HGet(ctx context.Context, key, field string) (string, error)
}

// RedisHash is a Hash backed by go-redis.
type RedisHash struct {
	client *redis.Client
}

// NewRedisHash constructs a Hash over client.
func NewRedisHash(client *redis.Client) *RedisHash {
	return &RedisHash{client: client}
}

func (h *RedisHash) HGet(ctx context.Context, key, field string) (string, error) {
	return h.client.HGet(ctx, key, field).Result()
}

// Redis serves parameters stored in a redis hash, retrying transient
// failures with exponential backoff.
type Redis struct {
	hash           Hash
	key            string
	logger         *zap.Logger
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewRedis builds a Redis parameter server reading hash key. An empty key
// uses DefaultRedisKey.
func NewRedis(hash Hash, key string, logger *zap.Logger) *Redis {
	if key == "" {
		key = DefaultRedisKey
	}
	return &Redis{
		hash:           hash,
		key:            key,
		logger:         logger.Named("params.redis"),
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
	}
}

func (r *Redis) Get(ctx context.Context, name string) (string, error) {
	var value string
	err := r.withRetry(ctx, "params.redis.get", func() error {
		v, err := r.hash.HGet(ctx, r.key, name)
		if err != nil {
			return err
		}
		value = v
		return nil
	})
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if value == "" {
		return "", ErrNotFound
	}
	return value, nil
}

func (r *Redis) withRetry(ctx context.Context, operation string, fn func() error) error {
	backoff := r.initialBackoff
	opLogger := logging.WithOperation(r.logger, operation, "")

	attempts := r.retryAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, "", ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= r.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("redis lookup succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}
		if errors.Is(err, redis.Nil) {
			return err
		}

		if !isTransientError(err) || attempt == attempts-1 {
			opLogger.Error("redis lookup failed", zap.Error(err), zap.Int("attempt", attempt+1))
			return logging.NewOperationError(operation, "", err)
		}

		opLogger.Warn("transient redis error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewOperationError(operation, "", err)
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var temporary interface{ Temporary() bool }
	if errors.As(err, &temporary) && temporary.Temporary() {
		return true
	}

	return false
}
