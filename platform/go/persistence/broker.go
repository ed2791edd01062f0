package persistence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/amianGO/Store-Application/platform/go/tenant"
)

// Querier is the subset of pgx connection behaviour exposed through a lease.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// pooledConn is one physical connection checked out of the pool.
type pooledConn interface {
	Querier
	Release()
}

// connAcquirer abstracts pool acquisition so broker tests can inject fakes.
type connAcquirer interface {
	Acquire(ctx context.Context) (pooledConn, error)
}

// poolAdapter bridges *pgxpool.Pool to connAcquirer.
type poolAdapter struct {
	pool *pgxpool.Pool
}

func (a poolAdapter) Acquire(ctx context.Context) (pooledConn, error) {
	conn, err := a.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// SchemaSwitchError reports a failed schema switch during acquisition. The
// affected connection is never handed to the caller.
type SchemaSwitchError struct {
	Schema tenant.Identifier
	Err    error
}

func (e *SchemaSwitchError) Error() string {
	return fmt.Sprintf("switch connection to schema %q: %v", e.Schema.String(), e.Err)
}

func (e *SchemaSwitchError) Unwrap() error { return e.Err }

// Broker intercepts every pool acquisition and release, scoping each
// connection to the tenant governing the current unit of work and resetting
// it to the default schema before it returns to the shared pool.
//
// The pool itself stays tenant-agnostic; the acquire/switch/use/reset/release
// sequence is the only place tenant state touches a physical connection.
type Broker struct {
	pool   connAcquirer
	logger *zap.Logger
}

// NewBroker wraps the shared pool. The logger is used for release-path
// diagnostics only.
func NewBroker(pool *pgxpool.Pool, logger *zap.Logger) *Broker {
	if pool == nil {
		panic("broker requires pool")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broker{pool: poolAdapter{pool: pool}, logger: logger}
}

// CurrentSchema reports the schema the broker would scope an acquisition to
// right now. Pure read of the execution context; no I/O, no existence check
// (tenant existence was already validated during resolution).
func (b *Broker) CurrentSchema(ctx context.Context) tenant.Identifier {
	return tenant.CurrentSchema(ctx)
}

// Acquire checks a connection out of the pool and switches its active schema
// to the tenant in the execution context (default schema when none is set).
// The schema identifier is interpolated directly: it can only originate from
// the validating tenant.Parse constructor, which is the injection defense.
//
// If the switch fails the connection is released back to the pool immediately
// and a SchemaSwitchError is returned; a connection with unknown schema state
// is never handed out.
func (b *Broker) Acquire(ctx context.Context) (*Lease, error) {
	schema := tenant.CurrentSchema(ctx)

	conn, err := b.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire conn: %w", err)
	}

	if _, err := conn.Exec(ctx, "SET search_path TO "+schema.String()); err != nil {
		conn.Release()
		return nil, &SchemaSwitchError{Schema: schema, Err: err}
	}

	return &Lease{conn: conn, schema: schema, logger: b.logger}, nil
}

// WithConn acquires a scoped connection, runs fn with it, and releases it.
// The release (including the schema reset) runs on every exit path.
func (b *Broker) WithConn(ctx context.Context, fn func(q Querier) error) error {
	lease, err := b.Acquire(ctx)
	if err != nil {
		return err
	}
	defer lease.Release()

	return fn(lease)
}

// releaseResetTimeout bounds the search_path reset on release so a wedged
// connection cannot block Release indefinitely.
const releaseResetTimeout = 5 * time.Second

// Lease is one checked-out connection tagged with the tenant that was active
// at acquisition time. The tag never changes for the lease's lifetime.
type Lease struct {
	conn   pooledConn
	schema tenant.Identifier
	logger *zap.Logger

	releaseOnce sync.Once
}

// Schema returns the tenant the lease was scoped to at acquisition.
func (l *Lease) Schema() tenant.Identifier { return l.schema }

// Release resets the connection to the default schema and returns it to the
// pool. Safe to call more than once; only the first call acts. The reset is
// always attempted, even after an error in the unit of work, so a
// tenant-scoped connection can never become visible to another unit of work.
func (l *Lease) Release() {
	l.releaseOnce.Do(func() {
		// Deliberately not the request context: a cancelled request must not
		// skip the reset. Bounded so Release always returns.
		resetCtx, cancel := context.WithTimeout(context.Background(), releaseResetTimeout)
		defer cancel()
		if _, err := l.conn.Exec(resetCtx, "SET search_path TO "+tenant.DefaultSchema); err != nil {
			l.logger.Warn("reset search_path on release",
				zap.String("schema", l.schema.String()),
				zap.Error(err),
			)
		}
		l.conn.Release()
	})
}

func (l *Lease) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return l.conn.Exec(ctx, sql, args...)
}

func (l *Lease) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return l.conn.Query(ctx, sql, args...)
}

func (l *Lease) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return l.conn.QueryRow(ctx, sql, args...)
}
