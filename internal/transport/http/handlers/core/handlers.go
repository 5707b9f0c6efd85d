package corehandler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"hrpayroll/internal/domain/audit"
	"hrpayroll/internal/domain/core"
	"hrpayroll/internal/transport/http/api"
	"hrpayroll/internal/transport/http/middleware"
	"hrpayroll/internal/transport/http/shared"
)

type Service interface {
	ListEmployees(ctx context.Context, activeOnly bool, limit, offset int) ([]core.Employee, int, error)
	GetEmployee(ctx context.Context, employeeID string) (core.Employee, error)
	CreateEmployee(ctx context.Context, input core.EmployeeInput) (core.Employee, error)
	UpdateEmployee(ctx context.Context, employeeID string, input core.EmployeeInput) (core.Employee, error)
	DeleteEmployee(ctx context.Context, employeeID string) error
	ListDepartments(ctx context.Context, limit, offset int) ([]core.Department, int, error)
	CreateDepartment(ctx context.Context, input core.DepartmentInput) (core.Department, error)
}

type Handler struct {
	Service Service
	Audit   shared.AuditRecorder
}

func NewHandler(service Service, recorder shared.AuditRecorder) *Handler {
	return &Handler{Service: service, Audit: recorder}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/employees", func(r chi.Router) {
		r.Get("/", h.handleListEmployees)
		r.Post("/", h.handleCreateEmployee)
		r.Get("/{employeeID}", h.handleGetEmployee)
		r.Put("/{employeeID}", h.handleUpdateEmployee)
		r.Delete("/{employeeID}", h.handleDeleteEmployee)
	})
	r.Route("/departments", func(r chi.Router) {
		r.Get("/", h.handleListDepartments)
		r.Post("/", h.handleCreateDepartment)
	})
}

func (h *Handler) handleListEmployees(w http.ResponseWriter, r *http.Request) {
	page := shared.ParsePagination(r, shared.DefaultLimit, shared.MaxLimit)
	employees, total, err := h.Service.ListEmployees(r.Context(), shared.QueryBool(r, "active"), page.Limit, page.Offset)
	if err != nil {
		writeError(w, r, err, "employee_list_failed")
		return
	}
	if employees == nil {
		employees = []core.Employee{}
	}
	api.Page(w, employees, page.Meta(total), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetEmployee(w http.ResponseWriter, r *http.Request) {
	employee, err := h.Service.GetEmployee(r.Context(), chi.URLParam(r, "employeeID"))
	if err != nil {
		writeError(w, r, err, "employee_get_failed")
		return
	}
	api.Success(w, employee, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateEmployee(w http.ResponseWriter, r *http.Request) {
	var payload core.EmployeeInput
	if !shared.DecodeJSON(w, r, &payload, middleware.GetRequestID(r.Context())) {
		return
	}
	employee, err := h.Service.CreateEmployee(r.Context(), payload)
	if err != nil {
		writeError(w, r, err, "employee_create_failed")
		return
	}
	shared.Audit(r, h.Audit, audit.Entry{Action: "core.employee.create", EntityType: audit.EntityEmployee, EntityID: employee.ID, After: employee})
	api.Created(w, employee, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdateEmployee(w http.ResponseWriter, r *http.Request) {
	var payload core.EmployeeInput
	if !shared.DecodeJSON(w, r, &payload, middleware.GetRequestID(r.Context())) {
		return
	}
	employee, err := h.Service.UpdateEmployee(r.Context(), chi.URLParam(r, "employeeID"), payload)
	if err != nil {
		writeError(w, r, err, "employee_update_failed")
		return
	}
	shared.Audit(r, h.Audit, audit.Entry{Action: "core.employee.update", EntityType: audit.EntityEmployee, EntityID: employee.ID, After: employee})
	api.Success(w, employee, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDeleteEmployee(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "employeeID")
	if err := h.Service.DeleteEmployee(r.Context(), employeeID); err != nil {
		writeError(w, r, err, "employee_delete_failed")
		return
	}
	shared.Audit(r, h.Audit, audit.Entry{Action: "core.employee.delete", EntityType: audit.EntityEmployee, EntityID: employeeID})
	api.Success(w, map[string]string{"status": "deleted"}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListDepartments(w http.ResponseWriter, r *http.Request) {
	page := shared.ParsePagination(r, shared.DefaultLimit, shared.MaxLimit)
	departments, total, err := h.Service.ListDepartments(r.Context(), page.Limit, page.Offset)
	if err != nil {
		writeError(w, r, err, "department_list_failed")
		return
	}
	if departments == nil {
		departments = []core.Department{}
	}
	api.Page(w, departments, page.Meta(total), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateDepartment(w http.ResponseWriter, r *http.Request) {
	var payload core.DepartmentInput
	if !shared.DecodeJSON(w, r, &payload, middleware.GetRequestID(r.Context())) {
		return
	}
	department, err := h.Service.CreateDepartment(r.Context(), payload)
	if err != nil {
		writeError(w, r, err, "department_create_failed")
		return
	}
	api.Created(w, department, middleware.GetRequestID(r.Context()))
}

func writeError(w http.ResponseWriter, r *http.Request, err error, fallbackCode string) {
	requestID := middleware.GetRequestID(r.Context())
	var fieldErr *core.FieldError
	switch {
	case errors.As(err, &fieldErr):
		shared.FailField(w, requestID, fieldErr.Field, fieldErr.Reason)
	case errors.Is(err, core.ErrEmployeeNotFound):
		api.Fail(w, http.StatusNotFound, "employee_not_found", "employee not found", requestID)
	case errors.Is(err, core.ErrDepartmentNotFound):
		shared.FailField(w, requestID, "departmentId", "department does not exist")
	case errors.Is(err, core.ErrDuplicateEmail):
		api.Fail(w, http.StatusConflict, "employee_exists", "employee email already exists", requestID)
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("code", fallbackCode).Msg("employee request failed")
		api.Fail(w, http.StatusInternalServerError, fallbackCode, "request failed", requestID)
	}
}
