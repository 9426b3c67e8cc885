// Package cache provides a read-through result cache that decorates a
// query.Connection with Redis-backed caching of read queries. Write actions
// invalidate every cached result for the touched entity.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/oriys/strata/entity"
	"github.com/oriys/strata/logging"
	"github.com/oriys/strata/metrics"
	"github.com/oriys/strata/observability"
	"github.com/oriys/strata/query"
)

const (
	resultKeyPrefix = "strata:q:"
	indexKeyPrefix  = "strata:qidx:"
)

// DefaultTTL bounds the staleness window for cached read results.
const DefaultTTL = 5 * time.Second

// NewClient connects a Redis client and verifies connectivity.
func NewClient(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return client, nil
}

// Connection wraps an inner query.Connection with a Redis result cache.
// Cached rows round-trip through JSON, which matches how rows are decoded
// into models, so a cache hit is indistinguishable from a database read.
type Connection struct {
	inner  query.Connection
	client *redis.Client
	ttl    time.Duration
}

// Wrap decorates inner with a result cache. A zero ttl uses DefaultTTL.
func Wrap(inner query.Connection, client *redis.Client, ttl time.Duration) *Connection {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Connection{inner: inner, client: client, ttl: ttl}
}

// Execute serves read queries from the cache when possible and forwards
// everything else, invalidating the entity's cached results after writes.
func (c *Connection) Execute(ctx context.Context, desc query.Description, sink *query.Stream[entity.Row]) error {
	if desc.Action != query.ActionRead {
		if err := c.inner.Execute(ctx, desc, sink); err != nil {
			return err
		}
		c.invalidate(ctx, desc.Entity)
		return nil
	}

	key, ok := cacheKey(desc)
	if ok {
		if rows, hit := c.lookup(ctx, key); hit {
			metrics.CacheHit()
			observability.SpanFromContext(ctx).SetAttributes(observability.AttrCacheHit.Bool(true))
			for _, row := range rows {
				if err := sink.Send(ctx, row); err != nil {
					return err
				}
			}
			return nil
		}
		metrics.CacheMiss()
	}

	// Relay through an intermediate stream so rows reach the caller
	// unbuffered while a copy is captured for the cache.
	mid := query.NewStream[entity.Row]()
	go func() {
		if err := c.inner.Execute(ctx, desc, mid); err != nil {
			mid.Fail(err)
			return
		}
		mid.Close()
	}()

	var captured []entity.Row
	err := mid.Drain(ctx, func(row entity.Row) error {
		captured = append(captured, row)
		return sink.Send(ctx, row)
	})
	if err != nil {
		return err
	}
	if ok {
		c.store(ctx, key, desc.Entity, captured)
	}
	return nil
}

// LastInsertID delegates to the wrapped connection.
func (c *Connection) LastInsertID() (int64, bool) {
	return c.inner.LastInsertID()
}

// Ping forwards a connectivity check to the wrapped connection when it
// supports one.
func (c *Connection) Ping(ctx context.Context) error {
	if p, ok := c.inner.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// cacheKey derives a deterministic key from the serialized description.
// Guard groups are stripped first: they carry the run's timestamp, and the
// IncludeSoftDeleted flag already keys the exclusion, so identical reads of
// a soft-deletable entity share a key across runs. Descriptions that do not
// serialize (exotic filter values) skip the cache.
func cacheKey(desc query.Description) (string, bool) {
	if len(desc.Filters) > 0 {
		kept := make([]query.Filter, 0, len(desc.Filters))
		for _, f := range desc.Filters {
			if g, ok := f.(query.Group); ok && g.Guard {
				continue
			}
			kept = append(kept, f)
		}
		desc.Filters = kept
	}
	data, err := json.Marshal(desc)
	if err != nil {
		return "", false
	}
	sum := sha256.Sum256(data)
	return resultKeyPrefix + desc.Entity + ":" + hex.EncodeToString(sum[:]), true
}

func (c *Connection) lookup(ctx context.Context, key string) ([]entity.Row, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var rows []entity.Row
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, false
	}
	return rows, true
}

func (c *Connection) store(ctx context.Context, key, entityName string, rows []entity.Row) {
	data, err := json.Marshal(rows)
	if err != nil {
		return
	}
	idx := indexKeyPrefix + entityName
	_, err = c.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, data, c.ttl)
		pipe.SAdd(ctx, idx, key)
		pipe.Expire(ctx, idx, 2*c.ttl)
		return nil
	})
	if err != nil {
		logging.Op().Warn("cache store failed", "entity", entityName, "error", err)
	}
}

func (c *Connection) invalidate(ctx context.Context, entityName string) {
	idx := indexKeyPrefix + entityName
	keys, err := c.client.SMembers(ctx, idx).Result()
	if err != nil {
		logging.Op().Warn("cache invalidate failed", "entity", entityName, "error", err)
		return
	}
	keys = append(keys, idx)
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		logging.Op().Warn("cache invalidate failed", "entity", entityName, "error", err)
	}
}
