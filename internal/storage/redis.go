package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"resume-matcher/internal/config"
	"resume-matcher/internal/constants"
	"resume-matcher/internal/tracing"
)

// ErrNotFound is returned when a key is not found in Redis.
var ErrNotFound = redis.Nil

// ErrLockNotAcquired 在等待期内未拿到锁
var ErrLockNotAcquired = errors.New("未能获取分布式锁")

var redisTracer = otel.Tracer("resume-matcher/storage/redis")

// Redis wraps the Redis client
type Redis struct {
	Client *redis.Client
	config *config.RedisConfig
}

// NewRedisAdapter creates a new Redis client connection
func NewRedisAdapter(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	opt := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,

		// 连接池设置
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,

		// 超时设置
		DialTimeout:  config.Seconds(cfg.DialTimeoutSeconds, 5*time.Second),
		ReadTimeout:  config.Seconds(cfg.ReadTimeoutSeconds, 3*time.Second),
		WriteTimeout: config.Seconds(cfg.WriteTimeoutSeconds, 3*time.Second),

		// 不在客户端层面重试
		MaxRetries: -1,

		// 连接生命周期
		ConnMaxLifetime: time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute,
		ConnMaxIdleTime: time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute,
	}

	client := redis.NewClient(opt)

	// 添加OpenTelemetry钩子, 记录所有Redis操作
	if err := redisotel.InstrumentTracing(client); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to instrument Redis with OpenTelemetry: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	return NewRedisFromClient(client, cfg), nil
}

// NewRedisFromClient 包装一个已有的客户端
func NewRedisFromClient(client *redis.Client, cfg *config.RedisConfig) *Redis {
	if cfg == nil {
		cfg = &config.RedisConfig{}
	}
	return &Redis{Client: client, config: cfg}
}

// Close closes the Redis client connection
func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

// VectorCacheTTL 向量缓存有效期
func (r *Redis) VectorCacheTTL() time.Duration {
	if r.config != nil && r.config.VectorCacheTTLHours > 0 {
		return time.Duration(r.config.VectorCacheTTLHours) * time.Hour
	}
	return constants.VectorCacheDuration
}

// HistoryLockTTL 历史写锁的过期时间
func (r *Redis) HistoryLockTTL() time.Duration {
	if r.config != nil {
		return config.Seconds(r.config.HistoryLockSeconds, 10*time.Second)
	}
	return 10 * time.Second
}

// SetTextVector 将文本向量和模型版本存入 HASH，textHash 为文本的 MD5
func (r *Redis) SetTextVector(ctx context.Context, textHash string, vector []float64, modelVersion string) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}

	ctx, span := redisTracer.Start(ctx, "Redis.SetTextVector", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	cacheKey := fmt.Sprintf(constants.KeyTextEmbedding, textHash)
	span.SetAttributes(attribute.String("db.redis.key", tracing.SafeRedisKey(cacheKey)), attribute.Int("vector.dim", len(vector)))

	vectorJSON, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("序列化向量失败: %w", err)
	}

	// 使用 pipeline 原子化操作
	pipe := r.Client.TxPipeline()
	pipe.HSet(ctx, cacheKey, "vector", vectorJSON, "model_version", modelVersion)
	pipe.Expire(ctx, cacheKey, r.VectorCacheTTL())
	if _, err = pipe.Exec(ctx); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return fmt.Errorf("设置向量缓存失败: %w", err)
	}
	return nil
}

// GetTextVector 读取文本向量和模型版本，不存在时返回 ErrNotFound
func (r *Redis) GetTextVector(ctx context.Context, textHash string) ([]float64, string, error) {
	if r.Client == nil {
		return nil, "", fmt.Errorf("redis client is not initialized")
	}

	cacheKey := fmt.Sprintf(constants.KeyTextEmbedding, textHash)

	vals, err := r.Client.HMGet(ctx, cacheKey, "vector", "model_version").Result()
	if err != nil {
		return nil, "", err
	}
	if len(vals) < 2 || vals[0] == nil {
		return nil, "", ErrNotFound
	}

	vectorJSON, ok := vals[0].(string)
	if !ok || vectorJSON == "" {
		return nil, "", fmt.Errorf("向量缓存格式错误")
	}
	var vector []float64
	if err := json.Unmarshal([]byte(vectorJSON), &vector); err != nil {
		return nil, "", fmt.Errorf("反序列化向量失败: %w", err)
	}

	modelVersion, _ := vals[1].(string)
	return vector, modelVersion, nil
}

// AcquireLock 尝试获取一个分布式锁，返回持有者标识；未获取到时返回空字符串
func (r *Redis) AcquireLock(ctx context.Context, lockKey string, expiration time.Duration) (string, error) {
	if r.Client == nil {
		return "", fmt.Errorf("redis client is not initialized")
	}
	token, err := uuid.NewV4()
	if err != nil {
		return "", fmt.Errorf("生成锁标识失败: %w", err)
	}
	lockValue := token.String()

	ok, err := r.Client.SetNX(ctx, lockKey, lockValue, expiration).Result()
	if err != nil {
		return "", err
	}
	if ok {
		return lockValue, nil
	}
	return "", nil
}

// AcquireLockWait 轮询获取锁，直到成功、ctx 结束或超过 wait
func (r *Redis) AcquireLockWait(ctx context.Context, lockKey string, expiration, wait time.Duration) (string, error) {
	deadline := time.Now().Add(wait)
	backoff := 20 * time.Millisecond
	for {
		lockValue, err := r.AcquireLock(ctx, lockKey, expiration)
		if err != nil {
			return "", err
		}
		if lockValue != "" {
			return lockValue, nil
		}
		if time.Now().After(deadline) {
			return "", ErrLockNotAcquired
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
		if backoff < 200*time.Millisecond {
			backoff *= 2
		}
	}
}

// ReleaseLock 释放一个分布式锁，使用Lua脚本保证原子性
func (r *Redis) ReleaseLock(ctx context.Context, lockKey string, lockValue string) (bool, error) {
	if r.Client == nil {
		return false, fmt.Errorf("redis client is not initialized")
	}
	// 如果key存在且值匹配，则删除key
	script := `
        if redis.call("get", KEYS[1]) == ARGV[1] then
            return redis.call("del", KEYS[1])
        else
            return 0
        end
    `
	res, err := r.Client.Eval(ctx, script, []string{lockKey}, lockValue).Result()
	if err != nil {
		return false, err
	}

	if released, ok := res.(int64); ok && released == 1 {
		return true, nil
	}
	return false, nil
}
