package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "barpos:view:"

// RedisCache backs the invalidation port with redis so multiple instances
// share one view cache.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(addr, password string, db int) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisCache{client: client}
}

func (r *RedisCache) Get(kind string) (string, bool) {
	val, err := r.client.Get(context.Background(), redisKeyPrefix+kind).Result()
	if err != nil {
		return "", false
	}
	return val, true
}

func (r *RedisCache) Set(kind, value string, ttl time.Duration) {
	r.client.Set(context.Background(), redisKeyPrefix+kind, value, ttl)
}

func (r *RedisCache) Invalidate(kind string) {
	r.client.Del(context.Background(), redisKeyPrefix+kind)
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
