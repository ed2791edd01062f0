package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/amianGO/Store-Application/domains/employees/be/repo"
	"github.com/amianGO/Store-Application/platform/go/auth"
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
	ErrNotFound           = errors.New("employee not found")
	ErrConflict           = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNoTenant           = errors.New("no tenant resolved for request")
)

var allowedRoles = map[string]struct{}{
	auth.RoleAdmin:   {},
	auth.RoleManager: {},
	auth.RoleSeller:  {},
}

// Employee represents the domain view of a tenant staff member.
type Employee struct {
	ID        int64
	Username  string
	FullName  string
	Email     string
	Role      string
	Active    bool
	CreatedAt time.Time
}

// CreateInput represents the payload required to add an employee.
type CreateInput struct {
	Username string
	FullName string
	Email    string
	Password string
	Role     string
}

// LoginInput carries member login credentials. TenantKey is consumed by the
// resolution middleware before the service runs; the service only checks that
// a tenant actually got resolved.
type LoginInput struct {
	Username string
	Password string
}

// LoginResult carries the authenticated employee and its signed token.
type LoginResult struct {
	Employee Employee
	Token    string
}

// CompanyLookup resolves the directory record for the resolved tenant, so
// tokens carry the company identity alongside the schema.
type CompanyLookup interface {
	FindBySchema(ctx context.Context, schema string) (companyID int64, tenantKey string, err error)
}

// TokenIssuer signs tokens for authenticated employees.
type TokenIssuer interface {
	IssueEmployeeToken(companyID, employeeID int64, username, tenantKey, schemaName, role string) (string, error)
}

// Service defines the business operations for the employees domain.
type Service interface {
	Login(ctx context.Context, input LoginInput) (LoginResult, error)
	Create(ctx context.Context, input CreateInput) (Employee, error)
	List(ctx context.Context) ([]Employee, error)
	SetActive(ctx context.Context, id int64, active bool) error
}

type service struct {
	repo      repo.Repository
	companies CompanyLookup
	tokens    TokenIssuer
	logger    *zap.Logger
}

// New constructs an employees Service instance.
func New(r repo.Repository, companies CompanyLookup, tokens TokenIssuer, logger *zap.Logger) Service {
	if r == nil {
		panic("employees repository is required")
	}
	if companies == nil {
		panic("company lookup is required")
	}
	if tokens == nil {
		panic("token issuer is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{repo: r, companies: companies, tokens: tokens, logger: logger}
}

func (s *service) Login(ctx context.Context, input LoginInput) (LoginResult, error) {
	schema, ok := tenant.SchemaFromContext(ctx)
	if !ok {
		// Resolution could not place the request: unknown tenant key, or
		// none supplied. Either way the credentials cannot be checked.
		return LoginResult{}, ErrNoTenant
	}

	emp, err := s.repo.FindByUsername(ctx, strings.TrimSpace(input.Username))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, fmt.Errorf("find employee: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(emp.PasswordHash), []byte(input.Password)); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}
	if !emp.Active {
		return LoginResult{}, ErrInvalidCredentials
	}

	companyID, tenantKey, err := s.companies.FindBySchema(ctx, schema.String())
	if err != nil {
		return LoginResult{}, fmt.Errorf("resolve company for schema %s: %w", schema.String(), err)
	}

	token, err := s.tokens.IssueEmployeeToken(companyID, emp.ID, emp.Username, tenantKey, schema.String(), emp.Role)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue employee token: %w", err)
	}

	return LoginResult{Employee: toEmployee(emp), Token: token}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (Employee, error) {
	if err := validateCreateInput(input); err != nil {
		return Employee{}, err
	}

	if _, err := s.repo.FindByUsername(ctx, input.Username); err == nil {
		return Employee{}, ErrConflict
	} else if !errors.Is(err, repo.ErrNotFound) {
		return Employee{}, fmt.Errorf("check existing employee: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return Employee{}, fmt.Errorf("hash password: %w", err)
	}

	emp, err := s.repo.Create(ctx, repo.CreateParams{
		Username:     strings.TrimSpace(input.Username),
		FullName:     strings.TrimSpace(input.FullName),
		Email:        strings.TrimSpace(input.Email),
		PasswordHash: string(hash),
		Role:         input.Role,
	})
	if err != nil {
		return Employee{}, err
	}
	return toEmployee(emp), nil
}

func (s *service) List(ctx context.Context) ([]Employee, error) {
	emps, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Employee, 0, len(emps))
	for _, emp := range emps {
		out = append(out, toEmployee(emp))
	}
	return out, nil
}

func (s *service) SetActive(ctx context.Context, id int64, active bool) error {
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func validateCreateInput(input CreateInput) error {
	fields := FieldErrors{}
	if strings.TrimSpace(input.Username) == "" {
		fields["usuario"] = append(fields["usuario"], "is required")
	}
	if strings.TrimSpace(input.FullName) == "" {
		fields["nombre"] = append(fields["nombre"], "is required")
	}
	if len(input.Password) < 8 {
		fields["password"] = append(fields["password"], "must be at least 8 characters")
	}
	if _, ok := allowedRoles[input.Role]; !ok {
		fields["rol"] = append(fields["rol"], "must be one of ADMIN, GERENTE, VENDEDOR")
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func toEmployee(emp repo.Employee) Employee {
	return Employee{
		ID:        emp.ID,
		Username:  emp.Username,
		FullName:  emp.FullName,
		Email:     emp.Email,
		Role:      emp.Role,
		Active:    emp.Active,
		CreatedAt: emp.CreatedAt,
	}
}
