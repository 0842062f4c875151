package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"accessd.org/internal/obs"
)

const (
	defaultEntryTTL = 15 * time.Minute
	opTimeout       = 3 * time.Second
)

// Redis backs the partition cache with a shared redis instance. Keys are
// namespaced "<partition>:<key>" and Clear scans the partition's keyspace.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(addr, password string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  opTimeout,
		WriteTimeout: opTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &Redis{client: client, ttl: defaultEntryTTL}, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) Get(ctx context.Context, partition, key string) ([]byte, bool) {
	data, err := r.client.Get(ctx, partition+":"+key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		obs.LogRequest(map[string]any{
			"level": "warn", "msg": "cache get failed",
			"partition": partition, "error": err.Error(),
		})
		return nil, false
	}
	return data, true
}

func (r *Redis) Set(ctx context.Context, partition, key string, value []byte) {
	if err := r.client.Set(ctx, partition+":"+key, value, r.ttl).Err(); err != nil {
		obs.LogRequest(map[string]any{
			"level": "warn", "msg": "cache set failed",
			"partition": partition, "error": err.Error(),
		})
	}
}

func (r *Redis) Clear(ctx context.Context, partition string) {
	iter := r.client.Scan(ctx, 0, partition+":*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		obs.LogRequest(map[string]any{
			"level": "warn", "msg": "cache clear scan failed",
			"partition": partition, "error": err.Error(),
		})
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		obs.LogRequest(map[string]any{
			"level": "warn", "msg": "cache clear failed",
			"partition": partition, "error": err.Error(),
		})
	}
}
