package repositories

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"pharmaguard/core/dtos"

	"github.com/go-redis/redis/v8"
)

const cachePrefix = "analysis:"

// ResultCache remembers results for a (VCF, drug list) pair.
type ResultCache interface {
	Get(ctx context.Context, key string) ([]dtos.DrugResult, bool, error)
	Set(ctx context.Context, key string, results []dtos.DrugResult) error
	Delete(ctx context.Context, key string) error
}

// CacheKey derives the cache key from the VCF digest and the ordered drug list.
func CacheKey(vcfHash string, drugs []string) string {
	sum := sha256.Sum256([]byte(vcfHash + "|" + strings.Join(drugs, ",")))
	return cachePrefix + hex.EncodeToString(sum[:])
}

type noopCache struct{}

func NewNoopCache() ResultCache { return noopCache{} }

func (noopCache) Get(context.Context, string) ([]dtos.DrugResult, bool, error) {
	return nil, false, nil
}

func (noopCache) Set(context.Context, string, []dtos.DrugResult) error { return nil }

func (noopCache) Delete(context.Context, string) error { return nil }

type redisCache struct {
	client *redis.Client
	ttl    time.Duration
}

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

func NewRedisCache(ctx context.Context, opts RedisOptions) (ResultCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &redisCache{client: client, ttl: opts.TTL}, nil
}

func (c *redisCache) Get(ctx context.Context, key string) ([]dtos.DrugResult, bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var results []dtos.DrugResult
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, false, fmt.Errorf("decode cached results: %w", err)
	}
	return results, true, nil
}

func (c *redisCache) Set(ctx context.Context, key string, results []dtos.DrugResult) error {
	raw, err := json.Marshal(results)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, c.ttl).Err()
}

func (c *redisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}
