package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/amianGO/Store-Application/domains/employees/be/service"
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

type problem struct {
	Type   string         `json:"type"`
	Title  string         `json:"title"`
	Detail string         `json:"detail,omitempty"`
	Status int            `json:"status"`
	Errors map[string]any `json:"errors,omitempty"`
}

// loginRequest mirrors the member login body. tenantKey is read by the
// resolution middleware before this handler runs, but decoding it here keeps
// the contract in one place.
type loginRequest struct {
	TenantKey string `json:"tenantKey"`
	Username  string `json:"usuario"`
	Password  string `json:"password"`
}

type createRequest struct {
	Username string `json:"usuario"`
	FullName string `json:"nombre"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"rol"`
}

type employeeResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"usuario"`
	FullName  string    `json:"nombre"`
	Email     string    `json:"email,omitempty"`
	Role      string    `json:"rol"`
	Active    bool      `json:"activo"`
	CreatedAt time.Time `json:"createdAt"`
}

type loginResponse struct {
	Token    string           `json:"token"`
	Employee employeeResponse `json:"empleado"`
}

// Handler exposes member login and employee management endpoints.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("employees service is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// LoginHandler returns the member login endpoint. It is mounted on the path
// the tenant resolution middleware treats as the member login route.
func (h *Handler) LoginHandler() http.HandlerFunc {
	return h.login
}

// Routes returns the authenticated employee management surface.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(platformauth.RequireAuth)
	r.Get("/", h.list)
	r.With(platformauth.RequireRole(platformauth.RoleCompany, platformauth.RoleAdmin, platformauth.RoleManager)).
		Post("/", h.create)
	r.With(platformauth.RequireRole(platformauth.RoleCompany, platformauth.RoleAdmin)).
		Patch("/{employeeID}/active", h.setActive)
	return r
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

	result, err := h.svc.Login(r.Context(), service.LoginInput{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:    result.Token,
		Employee: toEmployeeResponse(result.Employee),
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	employees, err := h.svc.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out := make([]employeeResponse, 0, len(employees))
	for _, emp := range employees {
		out = append(out, toEmployeeResponse(emp))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, problem{
			Type:   problemTypeValidation,
			Title:  "Invalid employee payload",
			Detail: "request body must be a JSON object",
			Status: http.StatusBadRequest,
		})
		return
	}

	emp, err := h.svc.Create(r.Context(), service.CreateInput{
		Username: req.Username,
		FullName: req.FullName,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeResponse(emp))
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "employeeID"), 10, 64)
	if err != nil {
		writeProblem(w, problem{
			Type:   problemTypeValidation,
			Title:  "Invalid employee id",
			Status: http.StatusBadRequest,
		})
		return
	}

	var req struct {
		Active bool `json:"activo"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, problem{
			Type:   problemTypeValidation,
			Title:  "Invalid payload",
			Status: http.StatusBadRequest,
		})
		return
	}

	if err := h.svc.SetActive(r.Context(), id, req.Active); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
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
			Title:  "Username already taken",
			Status: http.StatusConflict,
		})
	case errors.Is(err, service.ErrNotFound):
		writeProblem(w, problem{
			Type:   problemTypeNotFound,
			Title:  "Employee not found",
			Status: http.StatusNotFound,
		})
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrNoTenant):
		writeProblem(w, problem{
			Type:   problemTypeAuth,
			Title:  "Authentication failed",
			Status: http.StatusUnauthorized,
		})
	default:
		platformlogging.FromRequest(r, h.logger).Error("employees handler", zap.Error(err))
		writeProblem(w, problem{
			Type:   problemTypeInternal,
			Title:  "Internal error",
			Status: http.StatusInternalServerError,
		})
	}
}

func toEmployeeResponse(emp service.Employee) employeeResponse {
	return employeeResponse{
		ID:        emp.ID,
		Username:  emp.Username,
		FullName:  emp.FullName,
		Email:     emp.Email,
		Role:      emp.Role,
		Active:    emp.Active,
		CreatedAt: emp.CreatedAt,
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
