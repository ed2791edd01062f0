package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/amianGO/Store-Application/platform/go/tenant"
)

// fakeConn records Exec statements and release calls for one pooled connection.
type fakeConn struct {
	stmts    []string
	ctxs     []context.Context
	released int
	execErr  func(sql string) error
}

func (f *fakeConn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.stmts = append(f.stmts, sql)
	f.ctxs = append(f.ctxs, ctx)
	if f.execErr != nil {
		if err := f.execErr(sql); err != nil {
			return pgconn.CommandTag{}, err
		}
	}
	return pgconn.CommandTag{}, nil
}

func (f *fakeConn) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeConn) QueryRow(context.Context, string, ...any) pgx.Row { return nil }
func (f *fakeConn) Release()                                         { f.released++ }

// fakeAcquirer hands out a preconstructed connection.
type fakeAcquirer struct {
	conn       *fakeConn
	acquireErr error
}

func (p *fakeAcquirer) Acquire(ctx context.Context) (pooledConn, error) {
	if p.acquireErr != nil {
		return nil, p.acquireErr
	}
	return p.conn, nil
}

func newTestBroker(conn *fakeConn) *Broker {
	return &Broker{pool: &fakeAcquirer{conn: conn}, logger: zap.NewNop()}
}

func TestBrokerAcquireDefaultsToPublicSchema(t *testing.T) {
	conn := &fakeConn{}
	broker := newTestBroker(conn)

	lease, err := broker.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, lease.Schema().IsDefault())
	require.Equal(t, []string{"SET search_path TO public"}, conn.stmts)
}

func TestBrokerAcquireSwitchesToContextTenant(t *testing.T) {
	conn := &fakeConn{}
	broker := newTestBroker(conn)
	ctx := tenant.WithSchema(context.Background(), tenant.MustParse("tenant_7"))

	lease, err := broker.Acquire(ctx)
	require.NoError(t, err)
	require.Equal(t, "tenant_7", lease.Schema().String())
	require.Equal(t, []string{"SET search_path TO tenant_7"}, conn.stmts)
	require.Zero(t, conn.released)
}

func TestBrokerAcquireSchemaSwitchFailure(t *testing.T) {
	boom := errors.New("syntax error")
	conn := &fakeConn{execErr: func(sql string) error { return boom }}
	broker := newTestBroker(conn)
	ctx := tenant.WithSchema(context.Background(), tenant.MustParse("tenant_9"))

	lease, err := broker.Acquire(ctx)
	require.Nil(t, lease)

	var switchErr *SchemaSwitchError
	require.ErrorAs(t, err, &switchErr)
	require.Equal(t, "tenant_9", switchErr.Schema.String())
	require.ErrorIs(t, err, boom)

	// Failed acquisitions still hand the physical connection back to the pool.
	require.Equal(t, 1, conn.released)
}

func TestLeaseReleaseResetsBeforeReturningToPool(t *testing.T) {
	conn := &fakeConn{}
	broker := newTestBroker(conn)
	ctx := tenant.WithSchema(context.Background(), tenant.MustParse("tenant_4"))

	lease, err := broker.Acquire(ctx)
	require.NoError(t, err)

	lease.Release()
	require.Equal(t, []string{"SET search_path TO tenant_4", "SET search_path TO public"}, conn.stmts)
	require.Equal(t, 1, conn.released)
}

func TestLeaseReleaseResetIsBounded(t *testing.T) {
	conn := &fakeConn{}
	broker := newTestBroker(conn)
	ctx := tenant.WithSchema(context.Background(), tenant.MustParse("tenant_3"))

	lease, err := broker.Acquire(ctx)
	require.NoError(t, err)

	lease.Release()
	require.Len(t, conn.ctxs, 2)

	// The switch runs under the caller's context; the reset must carry its
	// own deadline so a wedged connection cannot hang Release.
	_, hasDeadline := conn.ctxs[0].Deadline()
	require.False(t, hasDeadline)
	deadline, hasDeadline := conn.ctxs[1].Deadline()
	require.True(t, hasDeadline)
	require.WithinDuration(t, time.Now().Add(releaseResetTimeout), deadline, time.Second)
}

func TestLeaseReleaseIsIdempotent(t *testing.T) {
	conn := &fakeConn{}
	broker := newTestBroker(conn)

	lease, err := broker.Acquire(context.Background())
	require.NoError(t, err)

	lease.Release()
	lease.Release()
	require.Equal(t, 1, conn.released)
	require.Len(t, conn.stmts, 2)
}

func TestLeaseReleaseRunsEvenWhenResetFails(t *testing.T) {
	conn := &fakeConn{execErr: func(sql string) error {
		if sql == "SET search_path TO public" {
			return errors.New("connection gone")
		}
		return nil
	}}
	broker := newTestBroker(conn)
	ctx := tenant.WithSchema(context.Background(), tenant.MustParse("tenant_2"))

	lease, err := broker.Acquire(ctx)
	require.NoError(t, err)

	lease.Release()
	// Best effort: reset attempted, connection still returned to the pool.
	require.Equal(t, 1, conn.released)
}

func TestWithConnReleasesOnError(t *testing.T) {
	conn := &fakeConn{}
	broker := newTestBroker(conn)
	ctx := tenant.WithSchema(context.Background(), tenant.MustParse("tenant_1"))

	boom := errors.New("query failed")
	err := broker.WithConn(ctx, func(q Querier) error { return boom })
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, conn.released)
	require.Equal(t, "SET search_path TO public", conn.stmts[len(conn.stmts)-1])
}

func TestWithConnPropagatesAcquireError(t *testing.T) {
	broker := &Broker{pool: &fakeAcquirer{acquireErr: errors.New("pool exhausted")}, logger: zap.NewNop()}

	err := broker.WithConn(context.Background(), func(q Querier) error { return nil })
	require.Error(t, err)
	require.Contains(t, err.Error(), "acquire conn")
}
