package corehandler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrpayroll/internal/domain/core"
)

type fakeService struct {
	employees  []core.Employee
	lastLimit  int
	lastOffset int
	activeOnly bool
	err        error
}

func (f *fakeService) ListEmployees(_ context.Context, activeOnly bool, limit, offset int) ([]core.Employee, int, error) {
	f.activeOnly, f.lastLimit, f.lastOffset = activeOnly, limit, offset
	return f.employees, len(f.employees), nil
}

func (f *fakeService) GetEmployee(_ context.Context, employeeID string) (core.Employee, error) {
	for _, emp := range f.employees {
		if emp.ID == employeeID {
			return emp, nil
		}
	}
	return core.Employee{}, core.ErrEmployeeNotFound
}

func (f *fakeService) CreateEmployee(_ context.Context, input core.EmployeeInput) (core.Employee, error) {
	if f.err != nil {
		return core.Employee{}, f.err
	}
	return core.Employee{ID: "e-new", FirstName: input.FirstName, BasicSalary: *input.BasicSalary}, nil
}

func (f *fakeService) UpdateEmployee(ctx context.Context, employeeID string, _ core.EmployeeInput) (core.Employee, error) {
	return f.GetEmployee(ctx, employeeID)
}

func (f *fakeService) DeleteEmployee(ctx context.Context, employeeID string) error {
	_, err := f.GetEmployee(ctx, employeeID)
	return err
}

func (f *fakeService) ListDepartments(context.Context, int, int) ([]core.Department, int, error) {
	return nil, 0, nil
}

func (f *fakeService) CreateDepartment(_ context.Context, input core.DepartmentInput) (core.Department, error) {
	if strings.TrimSpace(input.Name) == "" {
		return core.Department{}, &core.FieldError{Field: "name", Reason: "is required"}
	}
	return core.Department{ID: "d1", Name: input.Name}, nil
}

func serve(t *testing.T, svc Service, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	router := chi.NewRouter()
	NewHandler(svc, nil).RegisterRoutes(router)

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return rec, out
}

func TestListEmployeesPaginates(t *testing.T) {
	svc := &fakeService{employees: []core.Employee{{ID: "e1"}, {ID: "e2"}}}
	rec, body := serve(t, svc, http.MethodGet, "/employees?limit=1&offset=1&active=true", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, svc.lastLimit)
	assert.Equal(t, 1, svc.lastOffset)
	assert.True(t, svc.activeOnly)
	meta := body["meta"].(map[string]any)
	assert.Equal(t, float64(2), meta["total"])
}

func TestEmptyDepartmentListIsArray(t *testing.T) {
	rec, body := serve(t, &fakeService{}, http.MethodGet, "/departments", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, body["data"])
}

func TestCreateEmployee(t *testing.T) {
	rec, body := serve(t, &fakeService{}, http.MethodPost, "/employees", `{"firstName":"Abebe","basicSalary":"4500.50"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	data := body["data"].(map[string]any)
	assert.Equal(t, "Abebe", data["firstName"])
	assert.Equal(t, decimal.RequireFromString("4500.5").String(), data["basicSalary"])
}

func TestEmployeeErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "field", err: &core.FieldError{Field: "email", Reason: "must be a valid email"}, status: http.StatusBadRequest, code: "validation_error"},
		{name: "department", err: fmt.Errorf("%w: d9", core.ErrDepartmentNotFound), status: http.StatusBadRequest, code: "validation_error"},
		{name: "duplicate", err: core.ErrDuplicateEmail, status: http.StatusConflict, code: "employee_exists"},
		{name: "internal", err: fmt.Errorf("boom"), status: http.StatusInternalServerError, code: "employee_create_failed"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec, body := serve(t, &fakeService{err: tc.err}, http.MethodPost, "/employees", `{"firstName":"x","basicSalary":1}`)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.code, body["error"].(map[string]any)["code"])
		})
	}
}

func TestGetMissingEmployee(t *testing.T) {
	rec, body := serve(t, &fakeService{}, http.MethodGet, "/employees/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "employee_not_found", body["error"].(map[string]any)["code"])
}

func TestCreateDepartmentValidation(t *testing.T) {
	rec, _ := serve(t, &fakeService{}, http.MethodPost, "/departments", `{"name":" "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = serve(t, &fakeService{}, http.MethodPost, "/departments", `{"name":"Finance"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
}
