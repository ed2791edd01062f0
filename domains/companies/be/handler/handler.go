package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/amianGO/Store-Application/domains/companies/be/service"
	platformauth "github.com/amianGO/Store-Application/platform/go/auth"
	platformlogging "github.com/amianGO/Store-Application/platform/go/logging"
)

const (
	problemTypeValidation = "https://store.app/problems/validation-error"
	problemTypeNotFound   = "https://store.app/problems/not-found"
	problemTypeConflict   = "https://store.app/problems/conflict"
	problemTypeAuth       = "https://store.app/problems/authentication-failed"
	problemTypeInternal   = "https://store.app/problems/internal-error"
)

// problem is the application/problem+json error body.
type problem struct {
	Type   string         `json:"type"`
	Title  string         `json:"title"`
	Detail string         `json:"detail,omitempty"`
	Status int            `json:"status"`
	Errors map[string]any `json:"errors,omitempty"`
}

type registerRequest struct {
	Name     string `json:"nombre"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type companyResponse struct {
	ID         int64     `json:"id"`
	Name       string    `json:"nombre"`
	Email      string    `json:"email"`
	TenantKey  string    `json:"tenantKey"`
	SchemaName string    `json:"schemaName"`
	Active     bool      `json:"activa"`
	CreatedAt  time.Time `json:"createdAt"`
}

type loginResponse struct {
	Token   string          `json:"token"`
	Company companyResponse `json:"empresa"`
}

// Handler exposes the company registration and login endpoints.
type Handler struct {
	svc       service.Service
	validator *payloadValidator
	logger    *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) (*Handler, error) {
	if svc == nil {
		panic("companies service is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	validator, err := newPayloadValidator()
	if err != nil {
		return nil, err
	}
	return &Handler{svc: svc, validator: validator, logger: logger}, nil
}

// PublicRoutes returns the unauthenticated registration and login surface.
func (h *Handler) PublicRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/register", h.register)
	r.Post("/login", h.login)
	return r
}

// AdminRoutes returns the directory listing surface for platform operators.
func (h *Handler) AdminRoutes() chi.Router {
	r := chi.NewRouter()
	r.Use(platformauth.RequireAuth)
	r.Use(platformauth.RequireRole(platformauth.RoleCompany, platformauth.RoleAdmin))
	r.Get("/", h.list)
	r.Get("/{companyID}", h.get)
	return r
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	payload, err := h.validator.validateRegister(r)
	if err != nil {
		writeProblem(w, problem{
			Type:   problemTypeValidation,
			Title:  "Invalid registration payload",
			Detail: err.Error(),
			Status: http.StatusBadRequest,
		})
		return
	}

	var req registerRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		writeProblem(w, problem{
			Type:   problemTypeValidation,
			Title:  "Invalid registration payload",
			Detail: "request body must be a JSON object",
			Status: http.StatusBadRequest,
		})
		return
	}

	result, err := h.svc.Register(r.Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if !result.Report.Complete() {
		// Registration stands, the schema is just missing some tables.
		// The operator re-runs provisioning from the CLI.
		platformlogging.FromRequest(r, h.logger).Warn("registration completed with partial schema",
			zap.Int64("company_id", result.Company.ID))
	}

	writeJSON(w, http.StatusCreated, toCompanyResponse(result.Company))
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, problem{
			Type:   problemTypeValidation,
			Title:  "Invalid login payload",
			Detail: "request body must be a JSON object",
			Status: http.StatusBadRequest,
		})
		return
	}

	result, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:   result.Token,
		Company: toCompanyResponse(result.Company),
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	companies, err := h.svc.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out := make([]companyResponse, 0, len(companies))
	for _, c := range companies {
		out = append(out, toCompanyResponse(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "companyID"), 10, 64)
	if err != nil {
		writeProblem(w, problem{
			Type:   problemTypeValidation,
			Title:  "Invalid company id",
			Status: http.StatusBadRequest,
		})
		return
	}

	company, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCompanyResponse(company))
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *service.ValidationError
	switch {
	case errors.As(err, &validationErr):
		errs := make(map[string]any, len(validationErr.Fields))
		for field, issues := range validationErr.Fields {
			errs[field] = issues
		}
		writeProblem(w, problem{
			Type:   problemTypeValidation,
			Title:  "Invalid request",
			Status: http.StatusBadRequest,
			Errors: errs,
		})
	case errors.Is(err, service.ErrConflict):
		writeProblem(w, problem{
			Type:   problemTypeConflict,
			Title:  "Company already registered",
			Status: http.StatusConflict,
		})
	case errors.Is(err, service.ErrNotFound):
		writeProblem(w, problem{
			Type:   problemTypeNotFound,
			Title:  "Company not found",
			Status: http.StatusNotFound,
		})
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrInactive):
		writeProblem(w, problem{
			Type:   problemTypeAuth,
			Title:  "Authentication failed",
			Status: http.StatusUnauthorized,
		})
	default:
		platformlogging.FromRequest(r, h.logger).Error("companies handler", zap.Error(err))
		writeProblem(w, problem{
			Type:   problemTypeInternal,
			Title:  "Internal error",
			Status: http.StatusInternalServerError,
		})
	}
}

func toCompanyResponse(c service.Company) companyResponse {
	return companyResponse{
		ID:         c.ID,
		Name:       c.Name,
		Email:      c.Email,
		TenantKey:  c.TenantKey,
		SchemaName: c.SchemaName,
		Active:     c.Active,
		CreatedAt:  c.CreatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeProblem(w http.ResponseWriter, p problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}
