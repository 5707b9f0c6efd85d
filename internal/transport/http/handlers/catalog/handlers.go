package cataloghandler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"hrpayroll/internal/domain/audit"
	"hrpayroll/internal/domain/catalog"
	"hrpayroll/internal/domain/payroll"
	"hrpayroll/internal/transport/http/api"
	"hrpayroll/internal/transport/http/middleware"
	"hrpayroll/internal/transport/http/shared"
)

type Service interface {
	ListAllowances(ctx context.Context) ([]catalog.Allowance, error)
	ListActiveAllowances(ctx context.Context) ([]catalog.Allowance, error)
	GetAllowance(ctx context.Context, id string) (catalog.Allowance, error)
	CreateAllowance(ctx context.Context, input catalog.AllowanceInput) (catalog.Allowance, error)
	UpdateAllowance(ctx context.Context, id string, input catalog.AllowanceInput) (catalog.Allowance, error)
	DeleteAllowance(ctx context.Context, id string) error

	ListCategories(ctx context.Context) ([]payroll.DeductionCategory, error)
	GetCategory(ctx context.Context, raw string) (payroll.DeductionCategory, error)
	AppendRules(ctx context.Context, raw string, data json.RawMessage) (payroll.DeductionCategory, error)
	UpdateRule(ctx context.Context, raw, ruleID string, patch json.RawMessage) (payroll.DeductionCategory, error)
	DeleteRule(ctx context.Context, raw, ruleID string) (payroll.DeductionCategory, error)
}

type Handler struct {
	Service Service
	Audit   shared.AuditRecorder
}

func NewHandler(service Service, recorder shared.AuditRecorder) *Handler {
	return &Handler{Service: service, Audit: recorder}
}

type appendPayload struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/allowances", func(r chi.Router) {
		r.Get("/", h.handleListAllowances)
		r.Post("/", h.handleCreateAllowance)
		r.Get("/active", h.handleListActiveAllowances)
		r.Get("/{allowanceID}", h.handleGetAllowance)
		r.Put("/{allowanceID}", h.handleUpdateAllowance)
		r.Delete("/{allowanceID}", h.handleDeleteAllowance)
	})
	r.Route("/deductions", func(r chi.Router) {
		r.Get("/", h.handleListCategories)
		r.Post("/", h.handleAppendRules)
		r.Get("/{category}", h.handleGetCategory)
		r.Put("/{category}/{ruleID}", h.handleUpdateRule)
		r.Delete("/{category}/{ruleID}", h.handleDeleteRule)
	})
}

func (h *Handler) handleListAllowances(w http.ResponseWriter, r *http.Request) {
	h.listAllowances(w, r, h.Service.ListAllowances)
}

func (h *Handler) handleListActiveAllowances(w http.ResponseWriter, r *http.Request) {
	h.listAllowances(w, r, h.Service.ListActiveAllowances)
}

func (h *Handler) listAllowances(w http.ResponseWriter, r *http.Request, list func(context.Context) ([]catalog.Allowance, error)) {
	allowances, err := list(r.Context())
	if err != nil {
		writeError(w, r, err, "allowance_list_failed")
		return
	}
	if allowances == nil {
		allowances = []catalog.Allowance{}
	}
	api.Success(w, allowances, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetAllowance(w http.ResponseWriter, r *http.Request) {
	allowance, err := h.Service.GetAllowance(r.Context(), chi.URLParam(r, "allowanceID"))
	if err != nil {
		writeError(w, r, err, "allowance_get_failed")
		return
	}
	api.Success(w, allowance, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateAllowance(w http.ResponseWriter, r *http.Request) {
	var payload catalog.AllowanceInput
	if !shared.DecodeJSON(w, r, &payload, middleware.GetRequestID(r.Context())) {
		return
	}
	allowance, err := h.Service.CreateAllowance(r.Context(), payload)
	if err != nil {
		writeError(w, r, err, "allowance_create_failed")
		return
	}
	shared.Audit(r, h.Audit, audit.Entry{Action: "catalog.allowance.create", EntityType: audit.EntityAllowance, EntityID: allowance.ID, After: allowance})
	api.Created(w, allowance, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdateAllowance(w http.ResponseWriter, r *http.Request) {
	var payload catalog.AllowanceInput
	if !shared.DecodeJSON(w, r, &payload, middleware.GetRequestID(r.Context())) {
		return
	}
	allowance, err := h.Service.UpdateAllowance(r.Context(), chi.URLParam(r, "allowanceID"), payload)
	if err != nil {
		writeError(w, r, err, "allowance_update_failed")
		return
	}
	shared.Audit(r, h.Audit, audit.Entry{Action: "catalog.allowance.update", EntityType: audit.EntityAllowance, EntityID: allowance.ID, After: allowance})
	api.Success(w, allowance, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDeleteAllowance(w http.ResponseWriter, r *http.Request) {
	allowanceID := chi.URLParam(r, "allowanceID")
	if err := h.Service.DeleteAllowance(r.Context(), allowanceID); err != nil {
		writeError(w, r, err, "allowance_delete_failed")
		return
	}
	shared.Audit(r, h.Audit, audit.Entry{Action: "catalog.allowance.delete", EntityType: audit.EntityAllowance, EntityID: allowanceID})
	api.Success(w, map[string]string{"status": "deleted"}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.Service.ListCategories(r.Context())
	if err != nil {
		writeError(w, r, err, "deduction_list_failed")
		return
	}
	if categories == nil {
		categories = []payroll.DeductionCategory{}
	}
	api.Success(w, categories, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	category, err := h.Service.GetCategory(r.Context(), chi.URLParam(r, "category"))
	if err != nil {
		writeError(w, r, err, "deduction_get_failed")
		return
	}
	api.Success(w, category, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleAppendRules(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var payload appendPayload
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	v := shared.NewValidator()
	v.Required("type", payload.Type)
	if len(payload.Data) == 0 {
		v.Add("data", "is required")
	}
	if v.Reject(w, requestID) {
		return
	}
	category, err := h.Service.AppendRules(r.Context(), payload.Type, payload.Data)
	if err != nil {
		writeError(w, r, err, "deduction_append_failed")
		return
	}
	shared.Audit(r, h.Audit, audit.Entry{Action: "catalog.deduction.append", EntityType: audit.EntityDeduction, EntityID: string(category.Type), After: payload.Data})
	api.Created(w, category, requestID)
}

func (h *Handler) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	var patch json.RawMessage
	if !shared.DecodeJSON(w, r, &patch, middleware.GetRequestID(r.Context())) {
		return
	}
	before := h.snapshot(r)
	category, err := h.Service.UpdateRule(r.Context(), chi.URLParam(r, "category"), chi.URLParam(r, "ruleID"), patch)
	if err != nil {
		writeError(w, r, err, "deduction_update_failed")
		return
	}
	h.auditRule(r, "catalog.deduction.update", category, before)
	api.Success(w, category, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	before := h.snapshot(r)
	category, err := h.Service.DeleteRule(r.Context(), chi.URLParam(r, "category"), chi.URLParam(r, "ruleID"))
	if err != nil {
		writeError(w, r, err, "deduction_delete_failed")
		return
	}
	h.auditRule(r, "catalog.deduction.delete", category, before)
	api.Success(w, category, middleware.GetRequestID(r.Context()))
}

// snapshot loads the container about to change so the audit entry can carry
// its previous rules. It returns nil when auditing is off or the load fails.
func (h *Handler) snapshot(r *http.Request) json.RawMessage {
	if h.Audit == nil {
		return nil
	}
	category, err := h.Service.GetCategory(r.Context(), chi.URLParam(r, "category"))
	if err != nil {
		return nil
	}
	return category.Data
}

func (h *Handler) auditRule(r *http.Request, action string, category payroll.DeductionCategory, before json.RawMessage) {
	entry := audit.Entry{
		Action:     action,
		EntityType: audit.EntityDeduction,
		EntityID:   string(category.Type) + "/" + chi.URLParam(r, "ruleID"),
		After:      category.Data,
	}
	if before != nil {
		entry.Before = before
	}
	shared.Audit(r, h.Audit, entry)
}

func writeError(w http.ResponseWriter, r *http.Request, err error, fallbackCode string) {
	requestID := middleware.GetRequestID(r.Context())
	if verr, ok := catalog.AsValidation(err); ok {
		issues := make([]shared.ValidationIssue, 0, len(verr.Issues))
		for _, issue := range verr.Issues {
			issues = append(issues, shared.ValidationIssue{Field: issue.Field, Reason: issue.Reason})
		}
		shared.FailValidation(w, requestID, issues)
		return
	}
	switch {
	case errors.Is(err, catalog.ErrAllowanceNotFound):
		api.Fail(w, http.StatusNotFound, "allowance_not_found", "allowance not found", requestID)
	case errors.Is(err, catalog.ErrRuleNotFound):
		api.Fail(w, http.StatusNotFound, "deduction_rule_not_found", "deduction rule not found", requestID)
	case errors.Is(err, payroll.ErrUnknownCategory), errors.Is(err, payroll.ErrCategoryNotFound):
		api.Fail(w, http.StatusNotFound, "deduction_category_not_found", "deduction category not found", requestID)
	case errors.Is(err, catalog.ErrDuplicateName):
		api.Fail(w, http.StatusConflict, "allowance_exists", "an allowance with this name already exists", requestID)
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("code", fallbackCode).Msg("catalog request failed")
		api.Fail(w, http.StatusInternalServerError, fallbackCode, "catalog request failed", requestID)
	}
}
