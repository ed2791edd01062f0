package persistence

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/amianGO/Store-Application/platform/go/tenant"
)

// tenantTables is the fixed set of table definitions replicated from the
// template schema into every new tenant schema. Structure only, no data.
var tenantTables = []string{
	"employees",
	"products",
	"clients",
	"invoices",
	"invoice_items",
	"carts",
	"registers",
}

// protectedSchemas can never be dropped, regardless of caller flags.
var protectedSchemas = map[string]struct{}{
	tenant.DefaultSchema:  {},
	tenant.TemplateSchema: {},
	"pg_catalog":          {},
	"pg_toast":            {},
	"information_schema":  {},
}

// CloneReport describes the outcome of replicating template tables into a
// freshly created schema. A provisioning run can partially succeed: failures
// on individual tables are recorded rather than aborting the run, and
// schema-evolution tooling is expected to reconcile the gaps.
type CloneReport struct {
	Cloned []string
	Failed map[string]error
}

// Complete reports whether every template table was replicated.
func (r CloneReport) Complete() bool { return len(r.Failed) == 0 }

// Provisioner creates and removes per-tenant schemas.
type Provisioner struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewProvisioner(pool *pgxpool.Pool, logger *zap.Logger) *Provisioner {
	if pool == nil {
		panic("provisioner requires pool")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provisioner{pool: pool, logger: logger}
}

// Provision creates the schema for the given tenant and replicates the
// template table definitions into it. Idempotent: an existing schema is
// reported as success without modification. When no template schema exists
// the new schema is left empty for migrations to populate on first use.
func (p *Provisioner) Provision(ctx context.Context, id tenant.Identifier) (CloneReport, error) {
	// Defense in depth: re-check the identifier independently of resolution.
	if _, err := tenant.Parse(id.String()); err != nil {
		return CloneReport{}, err
	}

	exists, err := p.SchemaExists(ctx, id.String())
	if err != nil {
		return CloneReport{}, fmt.Errorf("check schema %s: %w", id.String(), err)
	}
	if exists {
		p.logger.Info("schema already provisioned", zap.String("schema", id.String()))
		return CloneReport{}, nil
	}

	if _, err := p.pool.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{id.String()}.Sanitize()); err != nil {
		return CloneReport{}, fmt.Errorf("create schema %s: %w", id.String(), err)
	}

	hasTemplate, err := p.SchemaExists(ctx, tenant.TemplateSchema)
	if err != nil {
		return CloneReport{}, fmt.Errorf("check template schema: %w", err)
	}
	if !hasTemplate {
		p.logger.Warn("template schema missing, leaving tenant schema empty",
			zap.String("schema", id.String()))
		return CloneReport{}, nil
	}

	return p.cloneTemplate(ctx, id), nil
}

func (p *Provisioner) cloneTemplate(ctx context.Context, id tenant.Identifier) CloneReport {
	report := CloneReport{Failed: map[string]error{}}

	for _, table := range tenantTables {
		stmt := fmt.Sprintf(
			"CREATE TABLE IF NOT EXISTS %s.%s (LIKE %s.%s INCLUDING ALL)",
			pgx.Identifier{id.String()}.Sanitize(), pgx.Identifier{table}.Sanitize(),
			tenant.TemplateSchema, pgx.Identifier{table}.Sanitize(),
		)
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			p.logger.Error("clone template table",
				zap.String("schema", id.String()),
				zap.String("table", table),
				zap.Error(err),
			)
			report.Failed[table] = err
			continue
		}
		report.Cloned = append(report.Cloned, table)
	}

	if len(report.Failed) == 0 {
		report.Failed = nil
	}
	return report
}

// SchemaExists checks the catalog for a schema by name.
func (p *Provisioner) SchemaExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := p.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)",
		name,
	).Scan(&exists)
	return exists, err
}

// ListTenantSchemas returns the provisioned tenant schema names.
func (p *Provisioner) ListTenantSchemas(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx,
		"SELECT schema_name FROM information_schema.schemata WHERE schema_name LIKE 'tenant\\_%' ORDER BY schema_name")
	if err != nil {
		return nil, fmt.Errorf("list tenant schemas: %w", err)
	}
	defer rows.Close()

	var schemas []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		schemas = append(schemas, name)
	}
	return schemas, rows.Err()
}

// Drop removes a tenant schema and everything in it. The default schema, the
// template schema, and catalog schemas are refused unconditionally.
func (p *Provisioner) Drop(ctx context.Context, id tenant.Identifier) error {
	if _, err := tenant.Parse(id.String()); err != nil {
		return err
	}
	if _, protected := protectedSchemas[id.String()]; protected {
		return fmt.Errorf("refusing to drop protected schema %q", id.String())
	}

	if _, err := p.pool.Exec(ctx, "DROP SCHEMA IF EXISTS "+pgx.Identifier{id.String()}.Sanitize()+" CASCADE"); err != nil {
		return fmt.Errorf("drop schema %s: %w", id.String(), err)
	}

	p.logger.Info("schema dropped", zap.String("schema", id.String()))
	return nil
}
