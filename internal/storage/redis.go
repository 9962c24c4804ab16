package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"ai-recruit-go/internal/config"
	"ai-recruit-go/internal/constants"
	"ai-recruit-go/internal/tracing"
)

// ErrLockHeld 锁已被其他持有者占用
var ErrLockHeld = errors.New("lock is held by another owner")

var redisTracer = otel.Tracer("ai-recruit-go/storage/redis")

// 值匹配时才删除，避免误删他人在过期后重新获取的锁
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
else
    return 0
end
`)

// Redis wraps the Redis client
type Redis struct {
	Client *redis.Client
}

// NewRedis 连接 Redis 并挂载 OpenTelemetry 钩子
func NewRedis(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,
		MaxRetries:   cfg.MaxRetries,
	})

	r, err := NewRedisFromClient(client)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}
	return r, nil
}

// NewRedisFromClient 包装已有客户端（测试中指向 miniredis）
func NewRedisFromClient(client *redis.Client) (*Redis, error) {
	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("failed to instrument Redis with OpenTelemetry: %w", err)
	}
	return &Redis{Client: client}, nil
}

func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

func (r *Redis) Ping(ctx context.Context) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	return r.Client.Ping(ctx).Err()
}

// MatchPairLockKey app:match:lock:{candidateID}:{jobID}
func MatchPairLockKey(candidateID, jobID uint) string {
	return fmt.Sprintf(constants.KeyMatchPairLock, candidateID, jobID)
}

// ParseJobLockKey app:parse:lock:{jobID}
func ParseJobLockKey(jobID string) string {
	return fmt.Sprintf(constants.KeyParseJobLock, jobID)
}

// AcquireLock SETNX 获取锁，返回持有者标识；锁已被占用时返回 ErrLockHeld
func (r *Redis) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if r.Client == nil {
		return "", fmt.Errorf("redis client is not initialized")
	}
	ctx, span := redisTracer.Start(ctx, "Redis.AcquireLock", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "redis"),
		attribute.String("db.operation", "SETNX"),
		attribute.String("db.redis.key", tracing.SafeRedisKey(key)),
	)

	token := uuid.NewString()
	ok, err := r.Client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return "", fmt.Errorf("获取锁 %s 失败: %w", key, err)
	}
	span.SetAttributes(attribute.Bool("lock.acquired", ok))
	if !ok {
		return "", ErrLockHeld
	}
	return token, nil
}

// ReleaseLock 仅当 token 仍是当前持有者时删除
func (r *Redis) ReleaseLock(ctx context.Context, key, token string) (bool, error) {
	if r.Client == nil {
		return false, fmt.Errorf("redis client is not initialized")
	}
	n, err := releaseScript.Run(ctx, r.Client, []string{key}, token).Int64()
	if err != nil {
		return false, fmt.Errorf("释放锁 %s 失败: %w", key, err)
	}
	return n == 1, nil
}

// WaitLock 在 wait 时间内轮询获取锁
func (r *Redis) WaitLock(ctx context.Context, key string, ttl, wait time.Duration) (string, error) {
	deadline := time.Now().Add(wait)
	backoff := 50 * time.Millisecond
	for {
		token, err := r.AcquireLock(ctx, key, ttl)
		if !errors.Is(err, ErrLockHeld) {
			return token, err
		}
		if time.Now().After(deadline) {
			return "", err
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 500*time.Millisecond {
			backoff *= 2
		}
	}
}
