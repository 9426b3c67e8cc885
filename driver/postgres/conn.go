// Package postgres implements the query.Connection capability on top of a
// pgx connection pool. Descriptions compile to single SQL statements; read
// and create results stream row-by-row into the caller's sink.
package postgres

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oriys/strata/entity"
	"github.com/oriys/strata/future"
	"github.com/oriys/strata/logging"
	"github.com/oriys/strata/query"
)

// Config holds connection settings for a Postgres-backed connection.
type Config struct {
	// DSN is a libpq-style connection string or URL.
	DSN string
	// IAMAuth enables AWS RDS IAM token authentication; the token replaces
	// the DSN password on every new pooled connection.
	IAMAuth bool
	// Region is the AWS region of the RDS instance; required with IAMAuth.
	Region string
	// AccessKeyID and SecretAccessKey override the ambient AWS credential
	// chain when set.
	AccessKeyID     string
	SecretAccessKey string
}

// Conn executes query descriptions against a pgx pool. It satisfies
// query.Connection; the pool owns pooling and health, Conn only borrows.
type Conn struct {
	pool *pgxpool.Pool

	mu     sync.Mutex
	lastID *int64
}

// Connect resolves a connection future off a background goroutine: the pool
// is created and pinged before the future resolves, so a failed setup
// surfaces as the future's error and executions short-circuit.
func Connect(ctx context.Context, cfg Config) *future.Future[query.Connection] {
	fut := future.New[query.Connection]()
	go func() {
		conn, err := open(ctx, cfg)
		if err != nil {
			fut.Fail(err)
			return
		}
		fut.Resolve(conn)
	}()
	return fut
}

func open(ctx context.Context, cfg Config) (*Conn, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if cfg.IAMAuth {
		before, err := iamBeforeConnect(cfg)
		if err != nil {
			return nil, err
		}
		pcfg.BeforeConnect = before
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	logging.Op().Debug("postgres pool ready", "host", pcfg.ConnConfig.Host)
	return &Conn{pool: pool}, nil
}

// Close releases the underlying pool.
func (c *Conn) Close() {
	c.pool.Close()
}

// Ping verifies connectivity.
func (c *Conn) Ping(ctx context.Context) error {
	return c.pool.Ping(ctx)
}

// Execute compiles and runs the description, streaming result rows into
// sink in production order. It never terminates the sink; the core does.
func (c *Conn) Execute(ctx context.Context, desc query.Description, sink *query.Stream[entity.Row]) error {
	sql, args, err := compile(desc)
	if err != nil {
		return err
	}

	switch desc.Action {
	case query.ActionUpdate, query.ActionDelete:
		if _, err := c.pool.Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("%s %s: %w", desc.Action, desc.Entity, err)
		}
		return nil
	}

	rows, err := c.pool.Query(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("%s %s: %w", desc.Action, desc.Entity, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return fmt.Errorf("read row values: %w", err)
		}
		row := make(entity.Row, len(fields))
		for i, fd := range fields {
			row[fd.Name] = values[i]
		}
		if desc.Action == query.ActionCreate {
			c.captureLastID(desc.IdentifierKey, row)
		}
		if err := sink.Send(ctx, row); err != nil {
			return err
		}
	}
	return rows.Err()
}

// LastInsertID returns the autoincrement identifier captured from the most
// recent create, if any.
func (c *Conn) LastInsertID() (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastID == nil {
		return 0, false
	}
	return *c.lastID, true
}

func (c *Conn) captureLastID(key string, row entity.Row) {
	if key == "" {
		return
	}
	var id int64
	switch v := row[key].(type) {
	case int64:
		id = v
	case int32:
		id = int64(v)
	case int16:
		id = int64(v)
	case int:
		id = int64(v)
	default:
		return
	}
	c.mu.Lock()
	c.lastID = &id
	c.mu.Unlock()
}
