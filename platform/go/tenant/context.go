package tenant

import (
	"context"
)

type ctxKey struct{}

// WithSchema returns a derived context carrying the tenant schema for the
// current unit of work. The value lives and dies with the request context:
// there is no global to clear, so a tenant can never leak into a request that
// did not explicitly set one.
func WithSchema(ctx context.Context, id Identifier) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// SchemaFromContext extracts the tenant schema and a boolean indicating
// whether one was set for this unit of work.
func SchemaFromContext(ctx context.Context) (Identifier, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identifier)
	if !ok || id.IsZero() {
		return Identifier{}, false
	}
	return id, true
}

// CurrentSchema resolves the schema governing the current unit of work,
// falling back to the default schema when none was set. This is the supplier
// the connection broker consults on every acquisition; it performs no I/O.
func CurrentSchema(ctx context.Context) Identifier {
	if id, ok := SchemaFromContext(ctx); ok {
		return id
	}
	return Default()
}
