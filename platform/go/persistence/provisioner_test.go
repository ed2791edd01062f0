package persistence

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/amianGO/Store-Application/platform/go/tenant"
)

func TestDropRefusesProtectedSchemas(t *testing.T) {
	t.Parallel()

	p := &Provisioner{logger: zap.NewNop()}
	for _, name := range []string{"public", "template_schema", "pg_catalog", "pg_toast", "information_schema"} {
		err := p.Drop(context.Background(), tenant.MustParse(name))
		require.Error(t, err, "schema %s must be protected", name)
		require.Contains(t, err.Error(), "protected")
	}
}

func TestProvisionRejectsZeroIdentifier(t *testing.T) {
	t.Parallel()

	p := &Provisioner{logger: zap.NewNop()}
	_, err := p.Provision(context.Background(), tenant.Identifier{})
	require.Error(t, err)

	require.Error(t, p.Drop(context.Background(), tenant.Identifier{}))
}

func TestProvisionerLifecycle(t *testing.T) {
	t.Parallel()

	if testing.Short() {
		t.Skip("skipping provisioner integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("store"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(wait.ForListeningPort("5432/tcp").WithStartupTimeout(2*time.Minute)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = pgContainer.Terminate(context.Background())
	})

	connString, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// A single connection makes pool reuse deterministic, so the search_path
	// reset after release is observable.
	pool, err := NewPool(ctx, PoolConfig{ConnString: connString, MaxConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { ClosePool(pool) })

	require.NoError(t, Bootstrap(ctx, pool))

	logger := zap.NewNop()
	provisioner := NewProvisioner(pool, logger)

	tenantA := tenant.MustParse("tenant_7")
	tenantB := tenant.MustParse("tenant_8")

	report, err := provisioner.Provision(ctx, tenantA)
	require.NoError(t, err)
	require.True(t, report.Complete())
	require.Len(t, report.Cloned, len(tenantTables))

	// Re-provisioning an existing schema changes nothing.
	report, err = provisioner.Provision(ctx, tenantA)
	require.NoError(t, err)
	require.True(t, report.Complete())
	require.Empty(t, report.Cloned)

	_, err = provisioner.Provision(ctx, tenantB)
	require.NoError(t, err)

	schemas, err := provisioner.ListTenantSchemas(ctx)
	require.NoError(t, err)
	require.Contains(t, schemas, "tenant_7")
	require.Contains(t, schemas, "tenant_8")

	broker := NewBroker(pool, logger)

	// Writes through the broker land in the resolved tenant's schema only.
	ctxA := tenant.WithSchema(ctx, tenantA)
	require.NoError(t, broker.WithConn(ctxA, func(q Querier) error {
		_, execErr := q.Exec(ctxA,
			"INSERT INTO products (name, price, stock) VALUES ($1, $2, $3)",
			"hammer", 12.50, 3)
		return execErr
	}))

	countProducts := func(ctx context.Context) int {
		var n int
		require.NoError(t, broker.WithConn(ctx, func(q Querier) error {
			return q.QueryRow(ctx, "SELECT COUNT(*) FROM products").Scan(&n)
		}))
		return n
	}

	require.Equal(t, 1, countProducts(ctxA))
	require.Equal(t, 0, countProducts(tenant.WithSchema(ctx, tenantB)))

	// After release the connection is back on the default search_path.
	var searchPath string
	require.NoError(t, pool.QueryRow(ctx, "SHOW search_path").Scan(&searchPath))
	require.Contains(t, searchPath, "public")
	require.NotContains(t, searchPath, "tenant_")

	// A context with no resolved tenant cannot see tenant tables; the
	// default schema has no products relation.
	err = broker.WithConn(ctx, func(q Querier) error {
		var n int
		return q.QueryRow(ctx, "SELECT COUNT(*) FROM products").Scan(&n)
	})
	require.Error(t, err)

	// Acquiring against a schema nobody provisioned still switches; Postgres
	// treats an unknown search_path entry as empty, so tenant relations are
	// simply absent.
	require.NoError(t, provisioner.Drop(ctx, tenantB))
	exists, err := provisioner.SchemaExists(ctx, tenantB.String())
	require.NoError(t, err)
	require.False(t, exists)

	schemas, err = provisioner.ListTenantSchemas(ctx)
	require.NoError(t, err)
	require.NotContains(t, schemas, "tenant_8")
}

func TestBrokerIsolatesConcurrentTenants(t *testing.T) {
	t.Parallel()

	if testing.Short() {
		t.Skip("skipping concurrent isolation integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("store"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(wait.ForListeningPort("5432/tcp").WithStartupTimeout(2*time.Minute)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = pgContainer.Terminate(context.Background())
	})

	connString, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// More connections than workers, so interleaved units of work share and
	// swap physical connections between tenants.
	pool, err := NewPool(ctx, PoolConfig{ConnString: connString, MaxConns: 4})
	require.NoError(t, err)
	t.Cleanup(func() { ClosePool(pool) })

	require.NoError(t, Bootstrap(ctx, pool))

	logger := zap.NewNop()
	provisioner := NewProvisioner(pool, logger)

	tenantA := tenant.MustParse("tenant_7")
	tenantB := tenant.MustParse("tenant_8")
	for _, id := range []tenant.Identifier{tenantA, tenantB} {
		_, provErr := provisioner.Provision(ctx, id)
		require.NoError(t, provErr)
	}

	broker := NewBroker(pool, logger)

	// Each worker inserts under its own tenant and, after every insert,
	// checks it sees exactly its own rows and nothing from the other tenant.
	const rounds = 25
	runTenant := func(ctx context.Context, marker string) error {
		for i := 0; i < rounds; i++ {
			if err := broker.WithConn(ctx, func(q Querier) error {
				_, execErr := q.Exec(ctx,
					"INSERT INTO products (name, price, stock) VALUES ($1, $2, $3)",
					marker, 1.0, i)
				return execErr
			}); err != nil {
				return err
			}

			var total, foreign int
			if err := broker.WithConn(ctx, func(q Querier) error {
				if scanErr := q.QueryRow(ctx, "SELECT COUNT(*) FROM products").Scan(&total); scanErr != nil {
					return scanErr
				}
				return q.QueryRow(ctx, "SELECT COUNT(*) FROM products WHERE name <> $1", marker).Scan(&foreign)
			}); err != nil {
				return err
			}
			if total != i+1 {
				return fmt.Errorf("%s: %d rows after %d inserts", marker, total, i+1)
			}
			if foreign != 0 {
				return fmt.Errorf("%s: %d rows leaked from another tenant", marker, foreign)
			}
		}
		return nil
	}

	ctxA := tenant.WithSchema(ctx, tenantA)
	ctxB := tenant.WithSchema(ctx, tenantB)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); errs <- runTenant(ctxA, "anvil") }()
	go func() { defer wg.Done(); errs <- runTenant(ctxB, "wrench") }()
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	// Every connection ends back on the default search_path.
	for range [4]struct{}{} {
		var searchPath string
		require.NoError(t, pool.QueryRow(ctx, "SHOW search_path").Scan(&searchPath))
		require.NotContains(t, searchPath, "tenant_")
	}
}

func TestCompanyStoreAssignsSchemaName(t *testing.T) {
	t.Parallel()

	if testing.Short() {
		t.Skip("skipping company store integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("store"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(wait.ForListeningPort("5432/tcp").WithStartupTimeout(2*time.Minute)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = pgContainer.Terminate(context.Background())
	})

	connString, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := NewPool(ctx, PoolConfig{ConnString: connString})
	require.NoError(t, err)
	t.Cleanup(func() { ClosePool(pool) })

	require.NoError(t, Bootstrap(ctx, pool))

	store, err := NewCompanyStore(pool)
	require.NoError(t, err)

	rec, err := store.Create(ctx, "Acme Hardware", "owner@acme.test", "$2a$10$hash")
	require.NoError(t, err)
	require.NotZero(t, rec.ID)
	require.Equal(t, fmt.Sprintf("tenant_%d", rec.ID), rec.SchemaName)
	require.NotEmpty(t, rec.TenantKey)
	require.True(t, rec.Active)

	byKey, err := store.FindByTenantKey(ctx, rec.TenantKey)
	require.NoError(t, err)
	require.Equal(t, rec.ID, byKey.ID)

	byEmail, err := store.FindByEmail(ctx, "owner@acme.test")
	require.NoError(t, err)
	require.Equal(t, rec.ID, byEmail.ID)

	_, err = store.FindByTenantKey(ctx, "nope")
	require.ErrorIs(t, err, ErrCompanyNotFound)

	require.NoError(t, store.SetActive(ctx, rec.ID, false))
	byID, err := store.FindByID(ctx, rec.ID)
	require.NoError(t, err)
	require.False(t, byID.Active)
}
