// Package store is the gateway to the analytical database: a DuckDB handle
// (local file, in-memory, or MotherDuck) with identifier checks, a single
// reset-and-retry on stale connections, batched upserts, and typed
// repositories over the filing schema.
package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"go.uber.org/zap"

	"github.com/seenimoa/filinglens/internal/config"
)

// Gateway owns the connection handle. All methods are safe for concurrent
// use; database/sql pooling gives each call its own connection.
type Gateway struct {
	cfg    config.StoreConfig
	logger *zap.Logger

	mu sync.RWMutex
	db *sql.DB

	pingMu   sync.Mutex
	lastPing time.Time
	health   time.Duration
	now      func() time.Time
}

// Open connects to the configured database and verifies the connection.
// A remote database without a token is a configuration error.
func Open(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (*Gateway, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Remote() {
		if cfg.Token == "" {
			return nil, &config.ConfigurationError{Key: "store.token", Reason: "MotherDuck token required for a remote database"}
		}
		if _, err := QuoteIdent(cfg.Database); err != nil {
			return nil, err
		}
	}

	g := &Gateway{
		cfg:    cfg,
		logger: logger.Named("store"),
		health: config.Seconds(cfg.HealthInterval),
		now:    time.Now,
	}
	db, err := g.connect(ctx)
	if err != nil {
		return nil, err
	}
	g.db = db
	g.lastPing = g.now()

	target := cfg.Path
	if cfg.Remote() {
		target = "md:" + cfg.Database
	} else if target == "" {
		target = ":memory:"
	}
	g.logger.Info("connected", zap.String("target", target))
	return g, nil
}

func (g *Gateway) connect(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("duckdb", g.cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if g.cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(g.cfg.MaxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}
	return db, nil
}

// Close releases the handle.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.db == nil {
		return nil
	}
	err := g.db.Close()
	g.db = nil
	return err
}

// Ping checks the connection.
func (g *Gateway) Ping(ctx context.Context) error {
	return g.handle().PingContext(ctx)
}

func (g *Gateway) handle() *sql.DB {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.db
}

// reset replaces stale with a fresh handle unless another caller already
// did.
func (g *Gateway) reset(ctx context.Context, stale *sql.DB) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.db != stale {
		return nil
	}
	db, err := g.connect(ctx)
	if err != nil {
		return err
	}
	if stale != nil {
		_ = stale.Close()
	}
	g.db = db

	g.pingMu.Lock()
	g.lastPing = g.now()
	g.pingMu.Unlock()
	return nil
}

// checkHealth pings at most once per health interval and resets the handle
// when the ping fails.
func (g *Gateway) checkHealth(ctx context.Context) {
	if g.health <= 0 {
		return
	}
	g.pingMu.Lock()
	due := g.now().Sub(g.lastPing) >= g.health
	if due {
		g.lastPing = g.now()
	}
	g.pingMu.Unlock()
	if !due {
		return
	}

	db := g.handle()
	if err := db.PingContext(ctx); err != nil && ctx.Err() == nil {
		g.logger.Warn("health check failed, resetting connection", zap.Error(err))
		if rerr := g.reset(ctx, db); rerr != nil {
			g.logger.Error("reset failed", zap.Error(rerr))
		}
	}
}

// do runs fn against the current handle. A failure on a handle that no
// longer answers a ping resets the handle and runs fn once more; statement
// errors on a healthy handle surface immediately.
func (g *Gateway) do(ctx context.Context, op string, fn func(*sql.DB) error) error {
	g.checkHealth(ctx)

	db := g.handle()
	if db == nil {
		return fmt.Errorf("%s: store is closed", op)
	}
	err := fn(db)
	if err == nil || ctx.Err() != nil || errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if !errors.Is(err, driver.ErrBadConn) {
		if perr := db.PingContext(ctx); perr == nil {
			return err
		}
	}

	g.logger.Warn("connection failed, resetting", zap.String("op", op), zap.Error(err))
	if rerr := g.reset(ctx, db); rerr != nil {
		return fmt.Errorf("%s: %w (reset failed: %v)", op, err, rerr)
	}
	return fn(g.handle())
}

// Query runs a read. The caller closes the returned rows.
func (g *Gateway) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	var rows *sql.Rows
	err := g.do(ctx, "query", func(db *sql.DB) error {
		var err error
		rows, err = db.QueryContext(ctx, query, args...)
		return err
	})
	return rows, err
}

// QueryRow runs a single-row read and scans it into dest. No row yields
// ErrNotFound.
func (g *Gateway) QueryRow(ctx context.Context, query string, args []any, dest ...any) error {
	err := g.do(ctx, "query row", func(db *sql.DB) error {
		return db.QueryRowContext(ctx, query, args...).Scan(dest...)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// Exec runs a statement outside a transaction.
func (g *Gateway) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var res sql.Result
	err := g.do(ctx, "exec", func(db *sql.DB) error {
		var err error
		res, err = db.ExecContext(ctx, query, args...)
		return err
	})
	return res, err
}

// Tx runs fn in a transaction, committing when fn returns nil. The whole
// transaction is retried once if the connection was stale.
func (g *Gateway) Tx(ctx context.Context, fn func(w *Writer) error) error {
	return g.do(ctx, "tx", func(db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		if err := fn(&Writer{tx: tx}); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		return nil
	})
}

// Upsert writes rows in one transaction. See Writer.Upsert.
func (g *Gateway) Upsert(ctx context.Context, table string, cols []string, rows [][]any, conflict ...string) (int64, error) {
	var n int64
	err := g.Tx(ctx, func(w *Writer) error {
		var err error
		n, err = w.Upsert(ctx, table, cols, rows, conflict...)
		return err
	})
	return n, err
}

// InsertIgnore writes rows in one transaction. See Writer.InsertIgnore.
func (g *Gateway) InsertIgnore(ctx context.Context, table string, cols []string, rows [][]any, conflict ...string) (int64, error) {
	var n int64
	err := g.Tx(ctx, func(w *Writer) error {
		var err error
		n, err = w.InsertIgnore(ctx, table, cols, rows, conflict...)
		return err
	})
	return n, err
}

// queryAll runs query and scans every row with scan.
func queryAll[T any](ctx context.Context, g *Gateway, scan func(*sql.Rows) (T, error), query string, args ...any) ([]T, error) {
	rows, err := g.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func timeOf(nt sql.NullTime) time.Time {
	if !nt.Valid {
		return time.Time{}
	}
	return nt.Time.UTC()
}
