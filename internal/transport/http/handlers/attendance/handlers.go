package attendancehandler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"hrpayroll/internal/domain/attendance"
	"hrpayroll/internal/domain/audit"
	"hrpayroll/internal/transport/http/api"
	"hrpayroll/internal/transport/http/middleware"
	"hrpayroll/internal/transport/http/shared"
)

type Service interface {
	CheckIn(ctx context.Context, input attendance.CheckInInput) (attendance.Record, error)
	CheckOut(ctx context.Context, attendanceID string, input attendance.CheckOutInput) (attendance.Record, error)
	List(ctx context.Context, filter attendance.Filter, limit, offset int) ([]attendance.Record, int, error)
	Get(ctx context.Context, attendanceID string) (attendance.Record, error)
	Delete(ctx context.Context, attendanceID string) error
}

type Handler struct {
	Service Service
	Audit   shared.AuditRecorder
}

func NewHandler(service Service, recorder shared.AuditRecorder) *Handler {
	return &Handler{Service: service, Audit: recorder}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/attendance", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleCheckIn)
		r.Get("/{attendanceID}", h.handleGet)
		r.Put("/{attendanceID}", h.handleCheckOut)
		r.Delete("/{attendanceID}", h.handleDelete)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	page := shared.ParsePagination(r, shared.DefaultLimit, shared.MaxLimit)
	filter := attendance.Filter{
		EmployeeID: r.URL.Query().Get("employeeId"),
		Date:       r.URL.Query().Get("date"),
	}
	records, total, err := h.Service.List(r.Context(), filter, page.Limit, page.Offset)
	if err != nil {
		writeError(w, r, err, "attendance_list_failed")
		return
	}
	if records == nil {
		records = []attendance.Record{}
	}
	api.Page(w, records, page.Meta(total), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	record, err := h.Service.Get(r.Context(), chi.URLParam(r, "attendanceID"))
	if err != nil {
		writeError(w, r, err, "attendance_get_failed")
		return
	}
	api.Success(w, record, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	var payload attendance.CheckInInput
	if !shared.DecodeJSON(w, r, &payload, middleware.GetRequestID(r.Context())) {
		return
	}
	record, err := h.Service.CheckIn(r.Context(), payload)
	if err != nil {
		writeError(w, r, err, "attendance_check_in_failed")
		return
	}
	shared.Audit(r, h.Audit, audit.Entry{Action: "attendance.check_in", EntityType: audit.EntityAttendance, EntityID: record.ID, After: record})
	api.Created(w, record, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCheckOut(w http.ResponseWriter, r *http.Request) {
	var payload attendance.CheckOutInput
	if !shared.DecodeJSON(w, r, &payload, middleware.GetRequestID(r.Context())) {
		return
	}
	record, err := h.Service.CheckOut(r.Context(), chi.URLParam(r, "attendanceID"), payload)
	if err != nil {
		writeError(w, r, err, "attendance_check_out_failed")
		return
	}
	shared.Audit(r, h.Audit, audit.Entry{Action: "attendance.check_out", EntityType: audit.EntityAttendance, EntityID: record.ID, After: record})
	api.Success(w, record, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	attendanceID := chi.URLParam(r, "attendanceID")
	if err := h.Service.Delete(r.Context(), attendanceID); err != nil {
		writeError(w, r, err, "attendance_delete_failed")
		return
	}
	shared.Audit(r, h.Audit, audit.Entry{Action: "attendance.delete", EntityType: audit.EntityAttendance, EntityID: attendanceID})
	api.Success(w, map[string]string{"status": "deleted"}, middleware.GetRequestID(r.Context()))
}

func writeError(w http.ResponseWriter, r *http.Request, err error, fallbackCode string) {
	requestID := middleware.GetRequestID(r.Context())
	var fieldErr *attendance.FieldError
	switch {
	case errors.As(err, &fieldErr):
		shared.FailField(w, requestID, fieldErr.Field, fieldErr.Reason)
	case errors.Is(err, attendance.ErrAttendanceNotFound):
		api.Fail(w, http.StatusNotFound, "attendance_not_found", "attendance record not found", requestID)
	case errors.Is(err, attendance.ErrEmployeeNotFound):
		api.Fail(w, http.StatusNotFound, "employee_not_found", "employee not found", requestID)
	case errors.Is(err, attendance.ErrAlreadyCheckedIn):
		api.Fail(w, http.StatusConflict, "attendance_exists", "attendance for this employee and date already exists", requestID)
	case errors.Is(err, attendance.ErrAlreadyCheckedOut):
		api.Fail(w, http.StatusConflict, "already_checked_out", "employee has already checked out", requestID)
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("code", fallbackCode).Msg("attendance request failed")
		api.Fail(w, http.StatusInternalServerError, fallbackCode, "request failed", requestID)
	}
}
