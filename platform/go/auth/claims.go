package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v4"

	"github.com/amianGO/Store-Application/platform/go/tenant"
)

// Roles carried in the rol claim.
const (
	RoleCompany = "EMPRESA"
	RoleAdmin   = "ADMIN"
	RoleManager = "GERENTE"
	RoleSeller  = "VENDEDOR"
)

// TokenClaims is the typed shape of every bearer token this service issues
// and consumes. Claims are parsed once into named fields; nothing downstream
// looks claims up by string key. The JSON claim names are wire contract and
// must not change.
type TokenClaims struct {
	SchemaName string `json:"schemaName"`
	CompanyID  int64  `json:"empresaId"`
	TenantKey  string `json:"tenantKey"`
	Role       string `json:"rol"`
	EmployeeID int64  `json:"empleadoId,omitempty"`

	jwt.RegisteredClaims
}

// HasTenant reports whether the claims carry a usable tenant schema. Absence
// or equality to the default schema both mean "no tenant".
func (c *TokenClaims) HasTenant() bool {
	return c != nil && c.SchemaName != "" && c.SchemaName != tenant.DefaultSchema
}

type ctxKey struct{}

// WithClaims stores verified token claims on the context.
func WithClaims(ctx context.Context, claims *TokenClaims) context.Context {
	return context.WithValue(ctx, ctxKey{}, claims)
}

// ClaimsFromContext extracts the verified claims for the current request.
func ClaimsFromContext(ctx context.Context) (*TokenClaims, bool) {
	claims, ok := ctx.Value(ctxKey{}).(*TokenClaims)
	return claims, ok && claims != nil
}
