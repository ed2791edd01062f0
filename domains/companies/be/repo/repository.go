package repo

import (
	"context"

	"github.com/amianGO/Store-Application/platform/go/persistence"
)

// Repository defines the directory operations required by the companies service.
type Repository interface {
	Create(ctx context.Context, name, email, passwordHash string) (persistence.CompanyRecord, error)
	FindByEmail(ctx context.Context, email string) (persistence.CompanyRecord, error)
	FindByTenantKey(ctx context.Context, key string) (persistence.CompanyRecord, error)
	FindByID(ctx context.Context, id int64) (persistence.CompanyRecord, error)
	List(ctx context.Context) ([]persistence.CompanyRecord, error)
	SetActive(ctx context.Context, id int64, active bool) error
}

type postgresRepository struct {
	store *persistence.CompanyStore
}

// NewPostgresRepository constructs a repository backed by the shared company directory.
func NewPostgresRepository(store *persistence.CompanyStore) Repository {
	if store == nil {
		panic("company store is required")
	}
	return &postgresRepository{store: store}
}

func (r *postgresRepository) Create(ctx context.Context, name, email, passwordHash string) (persistence.CompanyRecord, error) {
	return r.store.Create(ctx, name, email, passwordHash)
}

func (r *postgresRepository) FindByEmail(ctx context.Context, email string) (persistence.CompanyRecord, error) {
	return r.store.FindByEmail(ctx, email)
}

func (r *postgresRepository) FindByTenantKey(ctx context.Context, key string) (persistence.CompanyRecord, error) {
	return r.store.FindByTenantKey(ctx, key)
}

func (r *postgresRepository) FindByID(ctx context.Context, id int64) (persistence.CompanyRecord, error) {
	return r.store.FindByID(ctx, id)
}

func (r *postgresRepository) List(ctx context.Context) ([]persistence.CompanyRecord, error) {
	return r.store.List(ctx)
}

func (r *postgresRepository) SetActive(ctx context.Context, id int64, active bool) error {
	return r.store.SetActive(ctx, id, active)
}
