package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *TokenService {
	t.Helper()
	svc, err := NewTokenService([]byte("test-secret"), "store-api", time.Hour)
	require.NoError(t, err)
	return svc
}

func TestCompanyTokenRoundTrip(t *testing.T) {
	svc := newTestService(t)

	signed, err := svc.IssueCompanyToken(7, "owner@acme.test", "abc123", "tenant_7")
	require.NoError(t, err)

	claims, err := svc.Verify(signed)
	require.NoError(t, err)
	require.Equal(t, "tenant_7", claims.SchemaName)
	require.Equal(t, int64(7), claims.CompanyID)
	require.Equal(t, "abc123", claims.TenantKey)
	require.Equal(t, RoleCompany, claims.Role)
	require.Equal(t, "owner@acme.test", claims.Subject)
	require.True(t, claims.HasTenant())
}

func TestEmployeeTokenRoundTrip(t *testing.T) {
	svc := newTestService(t)

	signed, err := svc.IssueEmployeeToken(7, 42, "jdoe", "abc123", "tenant_7", RoleSeller)
	require.NoError(t, err)

	claims, err := svc.Verify(signed)
	require.NoError(t, err)
	require.Equal(t, int64(42), claims.EmployeeID)
	require.Equal(t, RoleSeller, claims.Role)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	svc := newTestService(t)
	other, err := NewTokenService([]byte("other-secret"), "store-api", time.Hour)
	require.NoError(t, err)

	signed, err := svc.IssueCompanyToken(1, "a@b.test", "k", "tenant_1")
	require.NoError(t, err)

	_, err = other.Verify(signed)
	require.Error(t, err)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	svc, err := NewTokenService([]byte("test-secret"), "store-api", -time.Minute)
	require.NoError(t, err)
	// ttl <= 0 falls back to the default, so build a dedicated short-lived one.
	svc.ttl = time.Nanosecond

	signed, err := svc.IssueCompanyToken(1, "a@b.test", "k", "tenant_1")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	_, err = svc.Verify(signed)
	require.Error(t, err)
}

func TestHasTenant(t *testing.T) {
	require.False(t, (&TokenClaims{}).HasTenant())
	require.False(t, (&TokenClaims{SchemaName: "public"}).HasTenant())
	require.True(t, (&TokenClaims{SchemaName: "tenant_3"}).HasTenant())

	var nilClaims *TokenClaims
	require.False(t, nilClaims.HasTenant())
}

func TestExtractBearerToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	_, found := ExtractBearerToken(r)
	require.False(t, found)

	r.Header.Set("Authorization", "Bearer abc.def.ghi")
	token, found := ExtractBearerToken(r)
	require.True(t, found)
	require.Equal(t, "abc.def.ghi", token)

	r.Header.Set("Authorization", "bearer abc.def.ghi")
	_, found = ExtractBearerToken(r)
	require.True(t, found)

	r.Header.Set("Authorization", "Basic Zm9vOmJhcg==")
	_, found = ExtractBearerToken(r)
	require.False(t, found)
}
