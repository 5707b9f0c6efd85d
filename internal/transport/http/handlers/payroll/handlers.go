package payrollhandler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"hrpayroll/internal/domain/audit"
	"hrpayroll/internal/domain/payroll"
	"hrpayroll/internal/platform/jobs"
	"hrpayroll/internal/transport/http/api"
	"hrpayroll/internal/transport/http/middleware"
	"hrpayroll/internal/transport/http/shared"
)

type Service interface {
	List(ctx context.Context, employeeID string, limit, offset int) ([]payroll.Payroll, int, error)
	Get(ctx context.Context, payrollID, employeeID string) (payroll.Payroll, error)
	CreateForEmployee(ctx context.Context, employeeID, paymentDate string) (payroll.Payroll, error)
	CreateForAll(ctx context.Context, paymentDate string) (payroll.RunResult, error)
	Preview(ctx context.Context, input payroll.PreviewInput) (payroll.Preview, error)
	Resolve(ctx context.Context, category string, ids []string) (payroll.Resolution, error)
	Payslip(ctx context.Context, payrollID string) ([]byte, error)
	SendPayslip(ctx context.Context, payrollID string) error
}

type RunLister interface {
	ListRuns(ctx context.Context, jobType string, limit int) ([]jobs.Run, error)
}

type Handler struct {
	Service Service
	Runs    RunLister
	Audit   shared.AuditRecorder
	// RunLimiter guards batch runs and payslip emails. Nil disables limiting.
	RunLimiter *middleware.RateLimiter
	// Idempotency replays repeated creates. Nil disables it.
	Idempotency *middleware.Idempotency
}

func NewHandler(service Service, runs RunLister, recorder shared.AuditRecorder, limiter *middleware.RateLimiter) *Handler {
	return &Handler{Service: service, Runs: runs, Audit: recorder, RunLimiter: limiter}
}

func (h *Handler) WithIdempotency(idempotency *middleware.Idempotency) *Handler {
	h.Idempotency = idempotency
	return h
}

type createPayload struct {
	PaymentDate string `json:"paymentDate"`
}

type previewPayload struct {
	BasicSalary  *decimal.Decimal `json:"basicSalary"`
	AllowanceIDs []string         `json:"allowanceIds"`
	DeductionIDs []string         `json:"deductionIds"`
}

type resolution struct {
	Category string                `json:"category"`
	Tax      []payroll.TaxRule     `json:"tax,omitempty"`
	Pension  []payroll.PensionRule `json:"pension,omitempty"`
	Other    []payroll.OtherRule   `json:"other,omitempty"`
	Dropped  []string              `json:"dropped,omitempty"`
	Inactive []string              `json:"inactive,omitempty"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	limited := func(next http.Handler) http.Handler {
		if h.RunLimiter == nil {
			return next
		}
		return h.RunLimiter.Handler(next)
	}
	r.Route("/payrolls", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Method(http.MethodPost, "/", limited(h.Idempotency.Require(http.HandlerFunc(h.handleCreateForAll))))
		r.Post("/preview", h.handlePreview)
		r.Get("/runs", h.handleListRuns)
		r.Get("/resolve/{category}", h.handleResolve)
		r.Get("/employee/{employeeID}", h.handleListForEmployee)
		r.Method(http.MethodPost, "/employee/{employeeID}", h.Idempotency.Optional(http.HandlerFunc(h.handleCreateForEmployee)))
		r.Get("/{payrollID}", h.handleGet)
		r.Get("/{payrollID}/employee/{employeeID}", h.handleGetForEmployee)
		r.Get("/{payrollID}/payslip", h.handlePayslip)
		r.Method(http.MethodPost, "/{payrollID}/payslip/send", limited(http.HandlerFunc(h.handleSendPayslip)))
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, "")
}

func (h *Handler) handleListForEmployee(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, chi.URLParam(r, "employeeID"))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, employeeID string) {
	page := shared.ParsePagination(r, shared.DefaultLimit, shared.MaxLimit)
	records, total, err := h.Service.List(r.Context(), employeeID, page.Limit, page.Offset)
	if err != nil {
		writeError(w, r, err, "payroll_list_failed")
		return
	}
	if records == nil {
		records = []payroll.Payroll{}
	}
	api.Page(w, records, page.Meta(total), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	h.get(w, r, "")
}

func (h *Handler) handleGetForEmployee(w http.ResponseWriter, r *http.Request) {
	h.get(w, r, chi.URLParam(r, "employeeID"))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request, employeeID string) {
	record, err := h.Service.Get(r.Context(), chi.URLParam(r, "payrollID"), employeeID)
	if err != nil {
		writeError(w, r, err, "payroll_get_failed")
		return
	}
	api.Success(w, record, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateForAll(w http.ResponseWriter, r *http.Request) {
	var payload createPayload
	if !shared.DecodeJSON(w, r, &payload, middleware.GetRequestID(r.Context())) {
		return
	}
	result, err := h.Service.CreateForAll(r.Context(), payload.PaymentDate)
	if err != nil {
		writeError(w, r, err, "payroll_run_failed")
		return
	}
	shared.Audit(r, h.Audit, audit.Entry{Action: "payroll.run", EntityType: audit.EntityPayroll, EntityID: payload.PaymentDate, After: result.Summary()})
	api.Created(w, result, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateForEmployee(w http.ResponseWriter, r *http.Request) {
	var payload createPayload
	if !shared.DecodeJSON(w, r, &payload, middleware.GetRequestID(r.Context())) {
		return
	}
	record, err := h.Service.CreateForEmployee(r.Context(), chi.URLParam(r, "employeeID"), payload.PaymentDate)
	if err != nil {
		writeError(w, r, err, "payroll_create_failed")
		return
	}
	shared.Audit(r, h.Audit, audit.Entry{Action: "payroll.create", EntityType: audit.EntityPayroll, EntityID: record.ID})
	api.Created(w, record, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var payload previewPayload
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	v := shared.NewValidator()
	salary := v.NonNegative("basicSalary", payload.BasicSalary)
	if v.Reject(w, requestID) {
		return
	}
	preview, err := h.Service.Preview(r.Context(), payroll.PreviewInput{
		BasicSalary:  salary,
		AllowanceIDs: payload.AllowanceIDs,
		DeductionIDs: payload.DeductionIDs,
	})
	if err != nil {
		writeError(w, r, err, "payroll_preview_failed")
		return
	}
	api.Success(w, preview, requestID)
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	var ids []string
	if raw := r.URL.Query().Get("ids"); raw != "" {
		ids = strings.Split(raw, ",")
	}
	res, err := h.Service.Resolve(r.Context(), category, ids)
	if err != nil {
		writeError(w, r, err, "deduction_resolve_failed")
		return
	}
	parsed, _ := payroll.ParseCategory(category)
	api.Success(w, resolution{
		Category: string(parsed),
		Tax:      res.Tax,
		Pension:  res.Pension,
		Other:    res.Other,
		Dropped:  res.Dropped,
		Inactive: res.Inactive,
	}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= shared.MaxLimit {
		limit = v
	}
	runs, err := h.Runs.ListRuns(r.Context(), payroll.JobPayrollRun, limit)
	if err != nil {
		writeError(w, r, err, "payroll_runs_failed")
		return
	}
	if runs == nil {
		runs = []jobs.Run{}
	}
	api.Success(w, runs, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handlePayslip(w http.ResponseWriter, r *http.Request) {
	payrollID := chi.URLParam(r, "payrollID")
	pdf, err := h.Service.Payslip(r.Context(), payrollID)
	if err != nil {
		writeError(w, r, err, "payslip_failed")
		return
	}
	if err := api.Attachment(w, "application/pdf", fmt.Sprintf("payslip-%s.pdf", payrollID), pdf); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("payslip write failed")
	}
}

func (h *Handler) handleSendPayslip(w http.ResponseWriter, r *http.Request) {
	payrollID := chi.URLParam(r, "payrollID")
	if err := h.Service.SendPayslip(r.Context(), payrollID); err != nil {
		writeError(w, r, err, "payslip_send_failed")
		return
	}
	shared.Audit(r, h.Audit, audit.Entry{Action: "payroll.payslip.send", EntityType: audit.EntityPayroll, EntityID: payrollID})
	api.Success(w, map[string]string{"status": "sent"}, middleware.GetRequestID(r.Context()))
}

func writeError(w http.ResponseWriter, r *http.Request, err error, fallbackCode string) {
	requestID := middleware.GetRequestID(r.Context())
	switch {
	case errors.Is(err, payroll.ErrInvalidPaymentDate):
		shared.FailField(w, requestID, "paymentDate", strings.TrimPrefix(err.Error(), payroll.ErrInvalidPaymentDate.Error()+": "))
	case errors.Is(err, payroll.ErrPayrollNotFound):
		api.Fail(w, http.StatusNotFound, "payroll_not_found", "payroll not found", requestID)
	case errors.Is(err, payroll.ErrEmployeeNotFound):
		api.Fail(w, http.StatusNotFound, "employee_not_found", "employee not found", requestID)
	case errors.Is(err, payroll.ErrUnknownCategory), errors.Is(err, payroll.ErrCategoryNotFound):
		api.Fail(w, http.StatusNotFound, "deduction_category_not_found", "deduction category not found", requestID)
	case errors.Is(err, payroll.ErrEmployeeNotPayable):
		api.Fail(w, http.StatusUnprocessableEntity, "employee_not_payable", err.Error(), requestID)
	case errors.Is(err, payroll.ErrNoRecipient):
		api.Fail(w, http.StatusUnprocessableEntity, "payslip_no_recipient", err.Error(), requestID)
	case errors.Is(err, payroll.ErrPayslipsDisabled), errors.Is(err, payroll.ErrEmailDisabled):
		api.Fail(w, http.StatusServiceUnavailable, "feature_disabled", err.Error(), requestID)
	case errors.Is(err, payroll.ErrConfigurationMissing):
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("payroll configuration missing")
		api.Fail(w, http.StatusInternalServerError, "payroll_configuration_missing", "tax or pension deduction configuration is missing", requestID)
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("code", fallbackCode).Msg("payroll request failed")
		api.Fail(w, http.StatusInternalServerError, fallbackCode, "payroll request failed", requestID)
	}
}
