package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cache miss")

// Cache holds a user's cart lines. Product data is never cached.
//
// Every Delete bumps the user's generation. Get reports the generation it
// observed and Set only stores when that generation is still current, so a
// load that raced an invalidation cannot write the old cart back.
type Cache interface {
	Get(ctx context.Context, userID string) ([]Line, int64, error)
	Set(ctx context.Context, userID string, generation int64, lines []Line) error
	Delete(ctx context.Context, userID string) error
}

const generationTTL = 24 * time.Hour

type RedisCache struct {
	client    *redis.Client
	baseTTL   time.Duration
	maxJitter time.Duration
}

func NewRedisCache(client *redis.Client, baseTTL time.Duration) *RedisCache {
	if baseTTL <= 0 {
		baseTTL = 15 * time.Minute
	}
	return &RedisCache{
		client:    client,
		baseTTL:   baseTTL,
		maxJitter: 5 * time.Minute,
	}
}

func (r *RedisCache) Get(ctx context.Context, userID string) ([]Line, int64, error) {
	vals, err := r.client.MGet(ctx, cacheKey(userID), generationKey(userID)).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("redis get failed: %w", err)
	}

	gen, err := parseGeneration(vals[1])
	if err != nil {
		return nil, 0, err
	}
	raw, ok := vals[0].(string)
	if !ok {
		return nil, gen, ErrCacheMiss
	}

	var lines []Line
	if err := json.Unmarshal([]byte(raw), &lines); err != nil {
		return nil, gen, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return lines, gen, nil
}

// Set stores lines if the user's generation still equals generation.
// A superseded write is dropped without error.
func (r *RedisCache) Set(ctx context.Context, userID string, generation int64, lines []Line) error {
	data, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}
	ttl := r.baseTTL + time.Duration(rand.Int63n(int64(r.maxJitter)))

	genKey := generationKey(userID)
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		gen, err := parseGeneration(current)
		if err != nil {
			return err
		}
		if gen != generation {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, cacheKey(userID), data, ttl)
			return nil
		})
		return err
	}, genKey)
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, userID string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey(userID))
		pipe.Expire(ctx, generationKey(userID), generationTTL)
		pipe.Del(ctx, cacheKey(userID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(userID string) string {
	return fmt.Sprintf("cart:%s", userID)
}

func generationKey(userID string) string {
	return fmt.Sprintf("cart:%s:gen", userID)
}

func parseGeneration(v any) (int64, error) {
	switch s := v.(type) {
	case nil:
		return 0, nil
	case string:
		if s == "" {
			return 0, nil
		}
		gen, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse cart generation: %w", err)
		}
		return gen, nil
	default:
		return 0, fmt.Errorf("unexpected cart generation %T", v)
	}
}

// NopCache always misses. Used when Redis is unavailable.
type NopCache struct{}

func (NopCache) Get(context.Context, string) ([]Line, int64, error) { return nil, 0, ErrCacheMiss }
func (NopCache) Set(context.Context, string, int64, []Line) error   { return nil }
func (NopCache) Delete(context.Context, string) error               { return nil }
