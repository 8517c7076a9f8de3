package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"sync"
	"time"

	"homestay/internal/app/commands"
	"homestay/internal/app/queries"
)

// Stamp records the generation of each cache tag at one moment. Tags are
// its keys.
type Stamp map[string]int64

// Cache stores encoded query results. Tags group entries so they can be
// dropped together when the underlying data changes; every invalidation
// moves a tag to its next generation.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Stamp(ctx context.Context, tags []string) (Stamp, error)
	// Set stores value under the tags of stamp unless one of them was
	// invalidated after stamp was taken. It reports whether value was kept.
	Set(ctx context.Context, key string, value []byte, stamp Stamp, ttl time.Duration) (bool, error)
	Invalidate(ctx context.Context, tags ...string) error
}

type CacheableQuery interface {
	queries.Query
	CacheKey() string
	CacheTags() []string
	ResultPrototype() any
}

// QueryCache serves cacheable queries from cache. Cache failures are logged
// and the query falls through to the handler. Tags are stamped before the
// handler reads, so an answer computed from data that changed meanwhile is
// never stored.
func QueryCache(cache Cache, ttl time.Duration, logger *slog.Logger) QueryMiddleware {
	if cache == nil {
		panic("middleware: cache required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return func(next queries.Bus) queries.Bus {
		nextFn := wrapQuery(next)
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			cq, ok := q.(CacheableQuery)
			if !ok || cq.CacheKey() == "" {
				return nextFn(ctx, q)
			}
			key := q.Key() + ":" + cq.CacheKey()
			data, hit, err := cache.Get(ctx, key)
			if err != nil {
				logger.WarnContext(ctx, "query cache read failed", "key", key, "error", err)
			}
			if hit {
				proto := cq.ResultPrototype()
				if err := json.Unmarshal(data, proto); err == nil {
					return dereference(proto), nil
				}
				logger.WarnContext(ctx, "query cache entry unreadable", "key", key)
			}

			stamp, stampErr := cache.Stamp(ctx, cq.CacheTags())
			res, err := nextFn(ctx, q)
			if err != nil {
				return nil, err
			}
			if stampErr != nil {
				logger.WarnContext(ctx, "query cache stamp failed", "key", key, "error", stampErr)
				return res, nil
			}
			payload, err := json.Marshal(res)
			if err != nil {
				return res, nil
			}
			kept, err := cache.Set(ctx, key, payload, stamp, ttl)
			switch {
			case err != nil:
				logger.WarnContext(ctx, "query cache write failed", "key", key, "error", err)
			case !kept:
				logger.DebugContext(ctx, "query cache write skipped, data changed", "key", key)
			}
			return res, nil
		})
	}
}

type touchedKey struct{}

type touched struct {
	mu   sync.Mutex
	tags []string
}

// TouchCache marks tags stale. They are invalidated once the surrounding
// command succeeds; outside CacheInvalidation it does nothing.
func TouchCache(ctx context.Context, tags ...string) {
	t, ok := ctx.Value(touchedKey{}).(*touched)
	if !ok {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, tag := range tags {
		if !slices.Contains(t.tags, tag) {
			t.tags = append(t.tags, tag)
		}
	}
}

// CacheInvalidation drops the tags touched by a command right after it
// succeeds, so readers of this process never wait for the event relay. It
// must sit outside Transaction.
func CacheInvalidation(cache Cache, logger *slog.Logger) CommandMiddleware {
	if cache == nil {
		panic("middleware: cache required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			t := &touched{}
			res, err := nextFn(context.WithValue(ctx, touchedKey{}, t), cmd)
			if err != nil {
				return nil, err
			}
			t.mu.Lock()
			tags := slices.Clone(t.tags)
			t.mu.Unlock()
			if len(tags) == 0 {
				return res, nil
			}
			if err := cache.Invalidate(context.WithoutCancel(ctx), tags...); err != nil {
				logger.WarnContext(ctx, "cache invalidation failed", "command", cmd.Key(), "tags", tags, "error", err)
			}
			return res, nil
		})
	}
}
