package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/amianGO/Store-Application/platform/go/auth"
	platformlogging "github.com/amianGO/Store-Application/platform/go/logging"
	"github.com/amianGO/Store-Application/platform/go/persistence"
	"github.com/amianGO/Store-Application/platform/go/tenant"
)

// Directory is the read path into the tenant directory used by the
// member-login special case. Lookups run against the default schema.
type Directory interface {
	FindByTenantKey(ctx context.Context, key string) (persistence.CompanyRecord, error)
}

// Config controls resolution behaviour.
type Config struct {
	// PublicPaths are exact-match tenant-agnostic operations (registration,
	// company login, health checks).
	PublicPaths []string
	// PublicPrefixes are prefix-match tenant-agnostic operations (public
	// catalog browsing).
	PublicPrefixes []string
	// MemberLoginPath is the one endpoint whose tenant is read out of the
	// request body instead of a credential.
	MemberLoginPath string
	// MaxLoginBodyBytes bounds how much of the login body is buffered.
	MaxLoginBodyBytes int64
}

const defaultMaxLoginBodyBytes = 1 << 20 // 1 MiB

// WithTenantResolution decides the tenant for every inbound request and scopes
// the request context to it before forwarding control.
//
// Priority order: allow-listed public path, then the body-sniffed member
// login, then the schemaName claim of a verified bearer token. Every failure
// mode degrades to the default schema; resolution is advisory plumbing, never
// an authorization gate. The resolved schema lives only on the derived
// request context, so it is gone the moment the request ends, on every exit
// path including panics and client disconnects.
func WithTenantResolution(directory Directory, cfg Config) func(http.Handler) http.Handler {
	if directory == nil {
		panic("tenant resolution: directory is required")
	}
	if cfg.MaxLoginBodyBytes <= 0 {
		cfg.MaxLoginBodyBytes = defaultMaxLoginBodyBytes
	}

	publicPaths := make(map[string]struct{}, len(cfg.PublicPaths))
	for _, p := range cfg.PublicPaths {
		publicPaths[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			logger := platformlogging.FromRequest(r, zap.NewNop())

			if _, ok := publicPaths[r.URL.Path]; ok || hasPrefix(r.URL.Path, cfg.PublicPrefixes) {
				// Tenant-agnostic operation: default schema throughout.
				next.ServeHTTP(w, r)
				return
			}

			if r.URL.Path == cfg.MemberLoginPath && r.Method == http.MethodPost {
				r, dec := resolveFromLoginBody(r, directory, cfg.MaxLoginBodyBytes, logger)
				next.ServeHTTP(w, applyDecision(r, dec, logger))
				return
			}

			next.ServeHTTP(w, applyDecision(r, resolveFromClaims(r, logger), logger))
		})
	}
}

// decision is the outcome of resolving one unit of work. A zero schema means
// "use the default schema".
type decision struct {
	schema    tenant.Identifier
	companyID int64
}

// applyDecision scopes the request context to the decided tenant and tags the
// request logger with the routing metadata.
func applyDecision(r *http.Request, dec decision, logger *zap.Logger) *http.Request {
	if dec.schema.IsZero() || dec.schema.IsDefault() {
		return r
	}

	ctx := tenant.WithSchema(r.Context(), dec.schema)

	scoped := logger.With(zap.String("tenant_schema", dec.schema.String()))
	if dec.companyID != 0 {
		scoped = scoped.With(zap.Int64("company_id", dec.companyID))
	}
	ctx = platformlogging.WithLogger(ctx, scoped)

	return r.WithContext(ctx)
}

// resolveFromLoginBody handles the member-login special case: the tenant key
// is inside the request payload, which must stay readable for the downstream
// handler. The body is buffered and restored; a missing key or unknown tenant
// degrades to the default schema and lets authentication fail downstream.
func resolveFromLoginBody(r *http.Request, directory Directory, maxBytes int64, logger *zap.Logger) (*http.Request, decision) {
	body, err := bufferRequestBody(r, maxBytes)
	if err != nil {
		logger.Warn("buffer login body", zap.Error(err))
		return r, decision{}
	}

	var payload struct {
		TenantKey string `json:"tenantKey"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.TenantKey == "" {
		return r, decision{}
	}

	// Directory lookups are pinned to the default schema; the request context
	// has no tenant yet, so this is already the case.
	rec, err := directory.FindByTenantKey(r.Context(), payload.TenantKey)
	if err != nil {
		logger.Info("tenant key not resolved", zap.String("tenant_key", payload.TenantKey))
		return r, decision{}
	}
	if !rec.Active {
		logger.Warn("tenant disabled", zap.Int64("company_id", rec.ID))
		return r, decision{}
	}

	schema, err := rec.Schema()
	if err != nil {
		logger.Error("directory holds invalid schema name", zap.Int64("company_id", rec.ID), zap.Error(err))
		return r, decision{}
	}

	return r, decision{schema: schema, companyID: rec.ID}
}

// resolveFromClaims reads the schemaName claim of an already-verified bearer
// credential. Absent, malformed, or default-schema claims all mean "no
// tenant"; authorization downstream decides whether that is acceptable.
func resolveFromClaims(r *http.Request, logger *zap.Logger) decision {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok || !claims.HasTenant() {
		return decision{}
	}

	schema, err := tenant.Parse(claims.SchemaName)
	if err != nil {
		// Fail closed: a claim that would not survive validation never
		// reaches a schema-switch statement.
		logger.Warn("rejecting unsafe schema claim", zap.Error(err))
		return decision{}
	}

	return decision{schema: schema, companyID: claims.CompanyID}
}

func hasPrefix(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
