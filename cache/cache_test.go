package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/oriys/strata/entity"
	"github.com/oriys/strata/future"
	"github.com/oriys/strata/query"
)

// recordingConn records every executed description and produces no rows.
type recordingConn struct {
	mu       sync.Mutex
	executed []query.Description
	pings    int
}

func (r *recordingConn) Execute(ctx context.Context, desc query.Description, sink *query.Stream[entity.Row]) error {
	r.mu.Lock()
	r.executed = append(r.executed, desc)
	r.mu.Unlock()
	return nil
}

func (r *recordingConn) LastInsertID() (int64, bool) { return 0, false }

func (r *recordingConn) Ping(ctx context.Context) error {
	r.pings++
	return nil
}

type doc struct {
	Title     string     `json:"title"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
}

var docMeta = &entity.Metadata{
	Storage: "docs",
	Fields: map[entity.FieldID]string{
		"title":     "title",
		"deletedAt": "deleted_at",
	},
	SoftDelete: &entity.SoftDelete{Field: "deletedAt"},
}

func (doc) Metadata() *entity.Metadata { return docMeta }

func TestCacheKeyIsDeterministic(t *testing.T) {
	d := query.Description{
		Entity: "articles",
		Action: query.ActionRead,
		Filters: []query.Filter{
			query.Predicate{Field: "title", Op: query.OpEqual, Value: "go"},
		},
		Limit: 5,
	}
	k1, ok1 := cacheKey(d)
	k2, ok2 := cacheKey(d.Clone())
	if !ok1 || !ok2 {
		t.Fatal("description did not serialize")
	}
	if k1 != k2 {
		t.Fatalf("same description hashed differently: %s vs %s", k1, k2)
	}

	d.Limit = 6
	k3, _ := cacheKey(d)
	if k3 == k1 {
		t.Fatal("different descriptions share a key")
	}
}

// Identical reads of a soft-deletable entity must share a cache key even
// though each run injects a fresh timestamp into its guard group.
func TestCacheKeyStableAcrossSoftDeleteRuns(t *testing.T) {
	conn := &recordingConn{}
	b := query.New[doc](future.Resolved[query.Connection](conn))
	b.Filter("title", query.OpEqual, "go")

	for run := 0; run < 2; run++ {
		if _, err := b.Run(context.Background(), nil).Await(context.Background()); err != nil {
			t.Fatalf("run %d: %v", run, err)
		}
	}

	conn.mu.Lock()
	execs := append([]query.Description(nil), conn.executed...)
	conn.mu.Unlock()
	if len(execs) != 2 {
		t.Fatalf("executions = %d, want 2", len(execs))
	}
	k1, ok1 := cacheKey(execs[0])
	k2, ok2 := cacheKey(execs[1])
	if !ok1 || !ok2 {
		t.Fatal("executed descriptions did not serialize")
	}
	if k1 != k2 {
		t.Fatalf("identical reads hashed differently: %s vs %s", k1, k2)
	}

	// A caller-written OR group is part of the cache identity; only the
	// injected guard is stripped.
	d := execs[0].Clone()
	d.Filters = append(d.Filters, query.Group{Join: query.JoinOr, Filters: []query.Filter{
		query.Predicate{Field: "title", Op: query.OpIsNotNull},
	}})
	if k3, _ := cacheKey(d); k3 == k1 {
		t.Fatal("caller group did not change the cache key")
	}
}

func TestCacheKeyDistinguishesIncludeSoftDeleted(t *testing.T) {
	conn := &recordingConn{}
	def := query.New[doc](future.Resolved[query.Connection](conn))
	if _, err := def.Run(context.Background(), nil).Await(context.Background()); err != nil {
		t.Fatal(err)
	}
	all := def.Copy().IncludeSoftDeleted()
	if _, err := all.Run(context.Background(), nil).Await(context.Background()); err != nil {
		t.Fatal(err)
	}

	conn.mu.Lock()
	execs := append([]query.Description(nil), conn.executed...)
	conn.mu.Unlock()
	k1, _ := cacheKey(execs[0])
	k2, _ := cacheKey(execs[1])
	if k1 == k2 {
		t.Fatal("default and include-soft-deleted reads share a key")
	}
}

func TestCacheKeySkipsUnserializable(t *testing.T) {
	d := query.Description{
		Entity: "articles",
		Action: query.ActionRead,
		Filters: []query.Filter{
			query.Predicate{Field: "ch", Op: query.OpEqual, Value: make(chan int)},
		},
	}
	if _, ok := cacheKey(d); ok {
		t.Fatal("expected unserializable description to skip the cache")
	}
}

func TestWrapDefaultsTTL(t *testing.T) {
	c := Wrap(nil, nil, 0)
	if c.ttl != DefaultTTL {
		t.Fatalf("ttl = %v, want %v", c.ttl, DefaultTTL)
	}
	c = Wrap(nil, nil, time.Minute)
	if c.ttl != time.Minute {
		t.Fatalf("ttl = %v", c.ttl)
	}
}

func TestPingForwardsToInner(t *testing.T) {
	conn := &recordingConn{}
	c := Wrap(conn, nil, 0)
	if err := c.Ping(context.Background()); err != nil {
		t.Fatal(err)
	}
	if conn.pings != 1 {
		t.Fatalf("inner pinged %d times, want 1", conn.pings)
	}
}
