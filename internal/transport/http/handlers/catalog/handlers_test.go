package cataloghandler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrpayroll/internal/domain/audit"
	"hrpayroll/internal/domain/catalog"
	"hrpayroll/internal/domain/payroll"
)

type fakeService struct {
	allowances map[string]catalog.Allowance
	created    catalog.AllowanceInput
	appended   json.RawMessage
	createErr  error
	ruleErr    error
}

func newFakeService() *fakeService {
	return &fakeService{allowances: map[string]catalog.Allowance{
		"a1": {ID: "a1", Name: "Housing", Kind: payroll.KindFixed, Amount: decimal.NewFromInt(300), IsActive: true},
	}}
}

func (f *fakeService) ListAllowances(context.Context) ([]catalog.Allowance, error) {
	out := make([]catalog.Allowance, 0, len(f.allowances))
	for _, a := range f.allowances {
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeService) ListActiveAllowances(context.Context) ([]catalog.Allowance, error) {
	return nil, nil
}

func (f *fakeService) GetAllowance(_ context.Context, id string) (catalog.Allowance, error) {
	a, ok := f.allowances[id]
	if !ok {
		return catalog.Allowance{}, catalog.ErrAllowanceNotFound
	}
	return a, nil
}

func (f *fakeService) CreateAllowance(_ context.Context, input catalog.AllowanceInput) (catalog.Allowance, error) {
	f.created = input
	if f.createErr != nil {
		return catalog.Allowance{}, f.createErr
	}
	return catalog.Allowance{ID: "new", Name: input.Name, Kind: payroll.Kind(input.Kind), Amount: input.Amount}, nil
}

func (f *fakeService) UpdateAllowance(ctx context.Context, id string, input catalog.AllowanceInput) (catalog.Allowance, error) {
	if _, err := f.GetAllowance(ctx, id); err != nil {
		return catalog.Allowance{}, err
	}
	return catalog.Allowance{ID: id, Name: input.Name}, nil
}

func (f *fakeService) DeleteAllowance(ctx context.Context, id string) error {
	_, err := f.GetAllowance(ctx, id)
	return err
}

func (f *fakeService) ListCategories(context.Context) ([]payroll.DeductionCategory, error) {
	return []payroll.DeductionCategory{{ID: "t", Type: payroll.CategoryTax, IsActive: true, Data: json.RawMessage(`[]`)}}, nil
}

func (f *fakeService) GetCategory(_ context.Context, raw string) (payroll.DeductionCategory, error) {
	category, err := payroll.ParseCategory(raw)
	if err != nil {
		return payroll.DeductionCategory{}, err
	}
	return payroll.DeductionCategory{ID: "c", Type: category, Data: json.RawMessage(`[]`)}, nil
}

func (f *fakeService) AppendRules(_ context.Context, raw string, data json.RawMessage) (payroll.DeductionCategory, error) {
	f.appended = data
	category, err := payroll.ParseCategory(raw)
	if err != nil {
		return payroll.DeductionCategory{}, err
	}
	return payroll.DeductionCategory{ID: "c", Type: category, Data: data}, nil
}

func (f *fakeService) UpdateRule(_ context.Context, raw, ruleID string, patch json.RawMessage) (payroll.DeductionCategory, error) {
	if f.ruleErr != nil {
		return payroll.DeductionCategory{}, f.ruleErr
	}
	return payroll.DeductionCategory{ID: "c", Type: payroll.Category(raw), Data: patch}, nil
}

func (f *fakeService) DeleteRule(context.Context, string, string) (payroll.DeductionCategory, error) {
	return payroll.DeductionCategory{}, catalog.ErrRuleNotFound
}

func newRouter(svc Service) http.Handler {
	router := chi.NewRouter()
	NewHandler(svc, nil).RegisterRoutes(router)
	return router
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Details struct {
			Fields []struct {
				Field  string `json:"field"`
				Reason string `json:"reason"`
			} `json:"fields"`
		} `json:"details"`
	} `json:"error"`
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func TestAllowanceRoutes(t *testing.T) {
	svc := newFakeService()
	router := newRouter(svc)

	rec, env := do(t, router, http.MethodGet, "/allowances", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	rec, env = do(t, router, http.MethodGet, "/allowances/active", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, string(env.Data))

	rec, env = do(t, router, http.MethodGet, "/allowances/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "allowance_not_found", env.Error.Code)

	rec, _ = do(t, router, http.MethodPost, "/allowances", `{"name":"Transport","kind":"fixed","amount":"150"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Transport", svc.created.Name)
	assert.True(t, decimal.NewFromInt(150).Equal(svc.created.Amount))

	rec, _ = do(t, router, http.MethodDelete, "/allowances/a1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateAllowanceErrors(t *testing.T) {
	svc := newFakeService()
	router := newRouter(svc)

	svc.createErr = &catalog.ValidationError{Issues: []catalog.Issue{{Field: "amount", Reason: "must be > 0"}}}
	rec, env := do(t, router, http.MethodPost, "/allowances", `{"name":"x","kind":"fixed"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "validation_error", env.Error.Code)
	require.Len(t, env.Error.Details.Fields, 1)
	assert.Equal(t, "amount", env.Error.Details.Fields[0].Field)

	svc.createErr = catalog.ErrDuplicateName
	rec, env = do(t, router, http.MethodPost, "/allowances", `{"name":"Housing","kind":"fixed","amount":1}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "allowance_exists", env.Error.Code)

	svc.createErr = errors.New("db down")
	rec, env = do(t, router, http.MethodPost, "/allowances", `{"name":"x"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "allowance_create_failed", env.Error.Code)

	rec, env = do(t, router, http.MethodPost, "/allowances", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_payload", env.Error.Code)
}

func TestDeductionRoutes(t *testing.T) {
	svc := newFakeService()
	router := newRouter(svc)

	rec, env := do(t, router, http.MethodGet, "/deductions/pension", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var category payroll.DeductionCategory
	require.NoError(t, json.Unmarshal(env.Data, &category))
	assert.Equal(t, payroll.CategoryPension, category.Type)

	rec, env = do(t, router, http.MethodGet, "/deductions/bonus", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "deduction_category_not_found", env.Error.Code)

	rec, _ = do(t, router, http.MethodPost, "/deductions", `{"type":"Other","data":[{"name":"Loan","kind":"fixed","amount":50,"description":"loan"}]}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, string(svc.appended), "Loan")

	rec, env = do(t, router, http.MethodPost, "/deductions", `{"data":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "type", env.Error.Details.Fields[0].Field)

	rec, env = do(t, router, http.MethodDelete, "/deductions/Other/r1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "deduction_rule_not_found", env.Error.Code)

	svc.ruleErr = &catalog.ValidationError{Issues: []catalog.Issue{{Field: "data.id", Reason: "cannot be changed"}}}
	rec, env = do(t, router, http.MethodPut, "/deductions/Other/r1", `{"id":"r2"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "data.id", env.Error.Details.Fields[0].Field)
}

type captureAudit struct {
	entries []audit.Entry
}

func (c *captureAudit) Record(_ context.Context, entry audit.Entry) error {
	c.entries = append(c.entries, entry)
	return nil
}

func TestRuleUpdateIsAudited(t *testing.T) {
	recorder := &captureAudit{}
	router := chi.NewRouter()
	NewHandler(newFakeService(), recorder).RegisterRoutes(router)

	rec, _ := do(t, router, http.MethodPut, "/deductions/Other/r1", `{"amount":75}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, recorder.entries, 1)
	entry := recorder.entries[0]
	assert.Equal(t, "catalog.deduction.update", entry.Action)
	assert.Equal(t, "Other/r1", entry.EntityID)
	assert.Equal(t, json.RawMessage(`[]`), entry.Before)

	rec, _ = do(t, router, http.MethodGet, "/allowances", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, recorder.entries, 1)
}
