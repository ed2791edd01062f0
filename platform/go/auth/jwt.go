package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// TokenService signs and verifies HS256 bearer tokens carrying TokenClaims.
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

func NewTokenService(secret []byte, issuer string, ttl time.Duration) (*TokenService, error) {
	if len(secret) == 0 {
		return nil, errors.New("jwt secret is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenService{secret: secret, issuer: issuer, ttl: ttl}, nil
}

// IssueCompanyToken mints a token for a company account session.
func (s *TokenService) IssueCompanyToken(companyID int64, email, tenantKey, schemaName string) (string, error) {
	return s.sign(&TokenClaims{
		SchemaName: schemaName,
		CompanyID:  companyID,
		TenantKey:  tenantKey,
		Role:       RoleCompany,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: email,
		},
	})
}

// IssueEmployeeToken mints a token for an employee session inside a tenant.
func (s *TokenService) IssueEmployeeToken(companyID, employeeID int64, username, tenantKey, schemaName, role string) (string, error) {
	return s.sign(&TokenClaims{
		SchemaName: schemaName,
		CompanyID:  companyID,
		TenantKey:  tenantKey,
		Role:       role,
		EmployeeID: employeeID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: username,
		},
	})
}

func (s *TokenService) sign(claims *TokenClaims) (string, error) {
	now := time.Now()
	claims.Issuer = s.issuer
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.ttl))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token, returning its typed claims.
func (s *TokenService) Verify(tokenString string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// ExtractBearerToken pulls the bearer credential from the Authorization
// header, if any.
func ExtractBearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	const prefix = "Bearer "
	if len(authHeader) < len(prefix) || !strings.EqualFold(authHeader[:len(prefix)], prefix) {
		return "", false
	}

	return strings.TrimSpace(authHeader[len(prefix):]), true
}
