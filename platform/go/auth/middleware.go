package auth

import (
	"net/http"
)

// Verifier validates a raw bearer token and returns its typed claims.
// Implemented by TokenService; narrowed to an interface so middleware tests
// can stub verification.
type Verifier interface {
	Verify(tokenString string) (*TokenClaims, error)
}

// Middleware attaches verified claims to the request context. Requests
// without a credential, or with one that fails verification, continue as
// anonymous: rejecting them is the authorization layer's job (RequireAuth),
// which keeps public endpoints reachable and makes tenant resolution purely
// advisory.
func Middleware(verifier Verifier) func(http.Handler) http.Handler {
	if verifier == nil {
		panic("auth middleware: verifier is required")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, found := ExtractBearerToken(r)
			if !found {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// RequireAuth rejects requests that carry no verified claims.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := ClaimsFromContext(r.Context()); !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole gates an endpoint to one of the listed roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if _, found := allowed[claims.Role]; !found {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
