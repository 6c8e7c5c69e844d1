package resolve

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"javmeta/resolverservice/internal/domain"
)

const redisCachePrefix = "jmresolve:cache:"

// RedisCacheBackend stores resolve envelopes in Redis with JSON
// serialization, shared across service replicas.
type RedisCacheBackend struct {
	client *redis.Client
}

func NewRedisCacheBackend(client *redis.Client) *RedisCacheBackend {
	return &RedisCacheBackend{client: client}
}

func (r *RedisCacheBackend) Get(ctx context.Context, key string) (domain.ResolveResult, bool, error) {
	data, err := r.client.Get(ctx, redisCachePrefix+key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return domain.ResolveResult{}, false, nil
		}
		return domain.ResolveResult{}, false, err
	}
	var result domain.ResolveResult
	if err := json.Unmarshal(data, &result); err != nil {
		return domain.ResolveResult{}, false, err
	}
	return result, true, nil
}

func (r *RedisCacheBackend) Set(ctx context.Context, key string, result domain.ResolveResult, ttl time.Duration) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, redisCachePrefix+key, data, ttl).Err()
}

func (r *RedisCacheBackend) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, redisCachePrefix+key).Err()
}

func (r *RedisCacheBackend) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
