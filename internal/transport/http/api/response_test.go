package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFailWithDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	FailWithDetails(rec, http.StatusBadRequest, "validation_error", "payload validation failed", map[string]any{"fields": []string{"name"}}, "req-1")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "req-1", body["requestId"])
	errBody := body["error"].(map[string]any)
	assert.Equal(t, "validation_error", errBody["code"])
	assert.NotNil(t, errBody["details"])
}

func TestPageIncludesMeta(t *testing.T) {
	rec := httptest.NewRecorder()
	Page(rec, []int{1, 2}, Meta{Total: 10, Limit: 2, Offset: 4}, "")

	var body struct {
		Success bool  `json:"success"`
		Data    []int `json:"data"`
		Meta    Meta  `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, []int{1, 2}, body.Data)
	assert.Equal(t, Meta{Total: 10, Limit: 2, Offset: 4}, body.Meta)
}

func TestAttachmentSetsDownloadHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, Attachment(rec, "application/pdf", "payslip-1.pdf", []byte("%PDF")))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="payslip-1.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "4", rec.Header().Get("Content-Length"))
	assert.Equal(t, "%PDF", rec.Body.String())
}
