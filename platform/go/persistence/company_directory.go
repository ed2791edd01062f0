package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/amianGO/Store-Application/platform/go/tenant"
)

// CompaniesTable is the fully-qualified tenant directory table. Every
// statement in this store is schema-qualified so directory lookups stay
// pinned to the default schema no matter which tenant the surrounding unit
// of work resolved to.
const CompaniesTable = tenant.DefaultSchema + ".companies"

// ErrCompanyNotFound is returned when no directory row matches the lookup.
var ErrCompanyNotFound = errors.New("company not found")

// CompanyRecord is one row of the tenant directory. TenantKey is the only
// identifier ever shown to unauthenticated callers; SchemaName is derived
// once at creation and immutable thereafter.
type CompanyRecord struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	TenantKey    string
	SchemaName   string
	Active       bool
	CreatedAt    time.Time
}

// Schema returns the company's schema as a validated identifier.
func (r CompanyRecord) Schema() (tenant.Identifier, error) {
	return tenant.Parse(r.SchemaName)
}

// CompanyStore provides access to the tenant directory.
type CompanyStore struct {
	pool *pgxpool.Pool
}

func NewCompanyStore(pool *pgxpool.Pool) (*CompanyStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &CompanyStore{pool: pool}, nil
}

const companyColumns = "id, name, email, password_hash, tenant_key, schema_name, active, created_at"

// Create inserts a company and derives its tenant key and schema name in one
// transaction. The schema name depends on the generated id, so the insert and
// the derivation commit together or not at all.
func (s *CompanyStore) Create(ctx context.Context, name, email, passwordHash string) (CompanyRecord, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" || email == "" {
		return CompanyRecord{}, errors.New("company name and email are required")
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return CompanyRecord{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	tenantKey := newTenantKey()

	var id int64
	var createdAt time.Time
	err = tx.QueryRow(ctx, `
        INSERT INTO `+CompaniesTable+` (name, email, password_hash, tenant_key, schema_name, active, created_at)
        VALUES ($1, $2, $3, $4, '', TRUE, NOW())
        RETURNING id, created_at`,
		name, email, passwordHash, tenantKey,
	).Scan(&id, &createdAt)
	if err != nil {
		return CompanyRecord{}, fmt.Errorf("insert company: %w", err)
	}

	schema := tenant.SchemaForCompany(id)
	if _, err := tx.Exec(ctx,
		"UPDATE "+CompaniesTable+" SET schema_name = $1 WHERE id = $2",
		schema.String(), id,
	); err != nil {
		return CompanyRecord{}, fmt.Errorf("assign schema name: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return CompanyRecord{}, fmt.Errorf("commit: %w", err)
	}

	return CompanyRecord{
		ID:           id,
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		TenantKey:    tenantKey,
		SchemaName:   schema.String(),
		Active:       true,
		CreatedAt:    createdAt,
	}, nil
}

// FindByTenantKey looks up the directory by public tenant key.
func (s *CompanyStore) FindByTenantKey(ctx context.Context, key string) (CompanyRecord, error) {
	return s.findOne(ctx, "tenant_key = $1", key)
}

// FindByEmail looks up the directory by company email.
func (s *CompanyStore) FindByEmail(ctx context.Context, email string) (CompanyRecord, error) {
	return s.findOne(ctx, "email = $1", strings.ToLower(strings.TrimSpace(email)))
}

// FindByID looks up the directory by numeric company id.
func (s *CompanyStore) FindByID(ctx context.Context, id int64) (CompanyRecord, error) {
	return s.findOne(ctx, "id = $1", id)
}

// FindBySchemaName looks up the directory by assigned schema name.
func (s *CompanyStore) FindBySchemaName(ctx context.Context, schemaName string) (CompanyRecord, error) {
	return s.findOne(ctx, "schema_name = $1", schemaName)
}

func (s *CompanyStore) findOne(ctx context.Context, where string, arg any) (CompanyRecord, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+companyColumns+" FROM "+CompaniesTable+" WHERE "+where, arg)

	var rec CompanyRecord
	err := row.Scan(&rec.ID, &rec.Name, &rec.Email, &rec.PasswordHash,
		&rec.TenantKey, &rec.SchemaName, &rec.Active, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return CompanyRecord{}, ErrCompanyNotFound
	}
	if err != nil {
		return CompanyRecord{}, fmt.Errorf("query company: %w", err)
	}
	return rec, nil
}

// List returns every directory row, newest first.
func (s *CompanyStore) List(ctx context.Context) ([]CompanyRecord, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+companyColumns+" FROM "+CompaniesTable+" ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	defer rows.Close()

	var out []CompanyRecord
	for rows.Next() {
		var rec CompanyRecord
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Email, &rec.PasswordHash,
			&rec.TenantKey, &rec.SchemaName, &rec.Active, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SetActive flips a company's active flag. Used when provisioning fails after
// the record was created, so the inconsistency is visible and repairable.
func (s *CompanyStore) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE "+CompaniesTable+" SET active = $1 WHERE id = $2", active, id)
	if err != nil {
		return fmt.Errorf("update company: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCompanyNotFound
	}
	return nil
}

// newTenantKey generates the opaque public handle for a company.
func newTenantKey() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
