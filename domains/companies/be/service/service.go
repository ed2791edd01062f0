package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/amianGO/Store-Application/domains/companies/be/repo"
	"github.com/amianGO/Store-Application/platform/go/persistence"
	"github.com/amianGO/Store-Application/platform/go/tenant"
)

// FieldErrors maps request fields to validation issues.
type FieldErrors map[string][]string

// ValidationError is returned when the input payload is invalid.
type ValidationError struct {
	Fields FieldErrors
}

func (v *ValidationError) Error() string {
	return "validation error"
}

// Domain sentinel errors.
var (
	ErrNotFound           = errors.New("company not found")
	ErrConflict           = errors.New("company already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactive           = errors.New("company is inactive")
)

// Company represents the domain view of a registered company.
type Company struct {
	ID         int64
	Name       string
	Email      string
	TenantKey  string
	SchemaName string
	Active     bool
	CreatedAt  time.Time
}

// RegisterInput represents the payload required to register a company.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// RegisterResult carries the new company and the outcome of its schema
// provisioning. Provisioning may succeed partially; the report says which
// template tables made it.
type RegisterResult struct {
	Company Company
	Report  persistence.CloneReport
}

// LoginResult carries the authenticated company and its signed token.
type LoginResult struct {
	Company Company
	Token   string
}

// Provisioner creates the per-company schema during registration.
type Provisioner interface {
	Provision(ctx context.Context, id tenant.Identifier) (persistence.CloneReport, error)
}

// TokenIssuer signs tokens for authenticated companies.
type TokenIssuer interface {
	IssueCompanyToken(companyID int64, email, tenantKey, schemaName string) (string, error)
}

// Service defines the business operations for the companies domain.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (RegisterResult, error)
	Login(ctx context.Context, email, password string) (LoginResult, error)
	Get(ctx context.Context, id int64) (Company, error)
	List(ctx context.Context) ([]Company, error)
}

type service struct {
	repo        repo.Repository
	provisioner Provisioner
	tokens      TokenIssuer
	logger      *zap.Logger
}

// New constructs a companies Service instance.
func New(r repo.Repository, p Provisioner, tokens TokenIssuer, logger *zap.Logger) Service {
	if r == nil {
		panic("companies repository is required")
	}
	if p == nil {
		panic("provisioner is required")
	}
	if tokens == nil {
		panic("token issuer is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{repo: r, provisioner: p, tokens: tokens, logger: logger}
}

func (s *service) Register(ctx context.Context, input RegisterInput) (RegisterResult, error) {
	if err := validateRegisterInput(input); err != nil {
		return RegisterResult{}, err
	}

	if _, err := s.repo.FindByEmail(ctx, input.Email); err == nil {
		return RegisterResult{}, ErrConflict
	} else if !errors.Is(err, persistence.ErrCompanyNotFound) {
		return RegisterResult{}, fmt.Errorf("check existing company: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return RegisterResult{}, fmt.Errorf("hash password: %w", err)
	}

	rec, err := s.repo.Create(ctx, strings.TrimSpace(input.Name), normalizeEmail(input.Email), string(hash))
	if err != nil {
		return RegisterResult{}, fmt.Errorf("create company: %w", err)
	}

	schema, err := rec.Schema()
	if err != nil {
		return RegisterResult{}, fmt.Errorf("company %d schema: %w", rec.ID, err)
	}

	report, err := s.provisioner.Provision(ctx, schema)
	if err != nil {
		// The directory row stays so the failure is visible and retryable,
		// but the company must not log in against a missing schema.
		s.logger.Error("provision company schema",
			zap.Int64("company_id", rec.ID),
			zap.String("schema", schema.String()),
			zap.Error(err),
		)
		if deactivateErr := s.repo.SetActive(ctx, rec.ID, false); deactivateErr != nil {
			s.logger.Error("deactivate company after failed provisioning",
				zap.Int64("company_id", rec.ID), zap.Error(deactivateErr))
		}
		return RegisterResult{}, fmt.Errorf("provision schema %s: %w", schema.String(), err)
	}

	if !report.Complete() {
		s.logger.Warn("company schema provisioned with missing tables",
			zap.Int64("company_id", rec.ID),
			zap.String("schema", schema.String()),
			zap.Int("cloned", len(report.Cloned)),
			zap.Int("failed", len(report.Failed)),
		)
	}

	return RegisterResult{Company: toCompany(rec), Report: report}, nil
}

func (s *service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	rec, err := s.repo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, persistence.ErrCompanyNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, fmt.Errorf("find company: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(password)); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	if !rec.Active {
		return LoginResult{}, ErrInactive
	}

	token, err := s.tokens.IssueCompanyToken(rec.ID, rec.Email, rec.TenantKey, rec.SchemaName)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue company token: %w", err)
	}

	return LoginResult{Company: toCompany(rec), Token: token}, nil
}

func (s *service) Get(ctx context.Context, id int64) (Company, error) {
	rec, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, persistence.ErrCompanyNotFound) {
			return Company{}, ErrNotFound
		}
		return Company{}, err
	}
	return toCompany(rec), nil
}

func (s *service) List(ctx context.Context) ([]Company, error) {
	recs, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Company, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toCompany(rec))
	}
	return out, nil
}

func validateRegisterInput(input RegisterInput) error {
	fields := FieldErrors{}
	if strings.TrimSpace(input.Name) == "" {
		fields["nombre"] = append(fields["nombre"], "is required")
	}
	email := normalizeEmail(input.Email)
	if email == "" {
		fields["email"] = append(fields["email"], "is required")
	} else if !strings.Contains(email, "@") {
		fields["email"] = append(fields["email"], "must be a valid email address")
	}
	if len(input.Password) < 8 {
		fields["password"] = append(fields["password"], "must be at least 8 characters")
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func toCompany(rec persistence.CompanyRecord) Company {
	return Company{
		ID:         rec.ID,
		Name:       rec.Name,
		Email:      rec.Email,
		TenantKey:  rec.TenantKey,
		SchemaName: rec.SchemaName,
		Active:     rec.Active,
		CreatedAt:  rec.CreatedAt,
	}
}
