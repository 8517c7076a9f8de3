package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"homestay/internal/app/middleware"
)

// Redis keeps entries under "<prefix>:v:<key>" and, per tag, a set of the
// entry keys carrying it under "<prefix>:t:<tag>" and its generation
// counter under "<prefix>:g:<tag>".
type Redis struct {
	client redis.UniversalClient
	prefix string
}

func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	if prefix == "" {
		prefix = "homestay:cache"
	}
	return &Redis{client: client, prefix: prefix}
}

// NewRedisClient connects and pings; callers fall back to the in-process
// cache when it fails.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: ping redis %s: %w", addr, err)
	}
	return client, nil
}

func (r *Redis) valueKey(key string) string { return r.prefix + ":v:" + key }
func (r *Redis) tagKey(tag string) string     { return r.prefix + ":t:" + tag }
func (r *Redis) genKey(tag string) string     { return r.prefix + ":g:" + tag }

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, r.valueKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func (r *Redis) Stamp(ctx context.Context, tags []string) (middleware.Stamp, error) {
	return r.generations(ctx, r.client, tags)
}

// Set watches the generation keys of the stamp's tags, so an Invalidate
// landing between the check and the write aborts the transaction.
func (r *Redis) Set(ctx context.Context, key string, value []byte, stamp middleware.Stamp, ttl time.Duration) (bool, error) {
	tags := make([]string, 0, len(stamp))
	watched := make([]string, 0, len(stamp))
	for tag := range stamp {
		tags = append(tags, tag)
		watched = append(watched, r.genKey(tag))
	}
	vk := r.valueKey(key)
	write := func(p redis.Pipeliner) error {
		p.Set(ctx, vk, value, ttl)
		for _, tag := range tags {
			tk := r.tagKey(tag)
			p.SAdd(ctx, tk, vk)
			if ttl > 0 {
				p.Expire(ctx, tk, ttl)
			}
		}
		return nil
	}
	if len(tags) == 0 {
		_, err := r.client.TxPipelined(ctx, write)
		return err == nil, err
	}

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := r.generations(ctx, tx, tags)
		if err != nil {
			return err
		}
		for tag, gen := range stamp {
			if current[tag] != gen {
				return errStale
			}
		}
		_, err = tx.TxPipelined(ctx, write)
		return err
	}, watched...)
	switch {
	case errors.Is(err, errStale), errors.Is(err, redis.TxFailedErr):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

// Invalidate bumps each tag's generation before dropping its entries.
func (r *Redis) Invalidate(ctx context.Context, tags ...string) error {
	for _, tag := range tags {
		if err := r.client.Incr(ctx, r.genKey(tag)).Err(); err != nil {
			return err
		}
		tk := r.tagKey(tag)
		members, err := r.client.SMembers(ctx, tk).Result()
		if err != nil {
			return err
		}
		if err := r.client.Del(ctx, append(members, tk)...).Err(); err != nil {
			return err
		}
	}
	return nil
}

type multiGetter interface {
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
}

func (r *Redis) generations(ctx context.Context, c multiGetter, tags []string) (middleware.Stamp, error) {
	stamp := make(middleware.Stamp, len(tags))
	if len(tags) == 0 {
		return stamp, nil
	}
	keys := make([]string, len(tags))
	for i, tag := range tags {
		keys[i] = r.genKey(tag)
	}
	values, err := c.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, tag := range tags {
		gen, err := parseGeneration(values[i])
		if err != nil {
			return nil, fmt.Errorf("cache: generation of %s: %w", tag, err)
		}
		stamp[tag] = gen
	}
	return stamp, nil
}

func parseGeneration(v any) (int64, error) {
	switch v := v.(type) {
	case nil:
		return 0, nil
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected %T", v)
	}
}

var errStale = errors.New("cache: tag invalidated while computing")

var _ middleware.Cache = (*Redis)(nil)
