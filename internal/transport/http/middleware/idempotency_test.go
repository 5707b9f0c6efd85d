package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryIdempotency struct {
	mu      sync.Mutex
	entries map[IdempotencyScope]memoryEntry
}

type memoryEntry struct {
	hash     string
	response StoredResponse
}

func newMemoryIdempotency() *memoryIdempotency {
	return &memoryIdempotency{entries: map[IdempotencyScope]memoryEntry{}}
}

func (m *memoryIdempotency) Check(_ context.Context, scope IdempotencyScope, hash string) (*StoredResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[scope]
	if !ok {
		return nil, nil
	}
	if entry.hash != hash {
		return nil, ErrIdempotencyConflict
	}
	return &entry.response, nil
}

func (m *memoryIdempotency) Save(_ context.Context, scope IdempotencyScope, hash string, response StoredResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, ok := m.entries[scope]; ok && entry.hash != hash {
		return ErrIdempotencyConflict
	}
	m.entries[scope] = memoryEntry{hash: hash, response: response}
	return nil
}

func TestRequestHashDeterministic(t *testing.T) {
	assert.Equal(t, RequestHash([]byte("payload")), RequestHash([]byte("payload")))
	assert.NotEqual(t, RequestHash([]byte("payload")), RequestHash([]byte("other")))
}

func idempotentPost(h http.Handler, path, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.RemoteAddr = "10.0.0.5:4000"
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestIdempotencyReplaysAndDetectsConflicts(t *testing.T) {
	calls := 0
	handler := NewIdempotency(newMemoryIdempotency()).Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"success":true,"data":{"run":1}}`))
	}))

	rec := idempotentPost(handler, "/payrolls", "", `{"paymentDate":"2026-03-01"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), IdempotencyKeyHeader)
	assert.Zero(t, calls)

	first := idempotentPost(handler, "/payrolls", "run-1", `{"paymentDate":"2026-03-01"}`)
	require.Equal(t, http.StatusCreated, first.Code)
	assert.Empty(t, first.Header().Get(IdempotentReplayedHeader))

	replay := idempotentPost(handler, "/payrolls", "run-1", `{"paymentDate":"2026-03-01"}`)
	assert.Equal(t, http.StatusCreated, replay.Code)
	assert.Equal(t, "true", replay.Header().Get(IdempotentReplayedHeader))
	assert.JSONEq(t, first.Body.String(), replay.Body.String())
	assert.Equal(t, 1, calls)

	conflict := idempotentPost(handler, "/payrolls", "run-1", `{"paymentDate":"2026-02-01"}`)
	assert.Equal(t, http.StatusConflict, conflict.Code)
	assert.Contains(t, conflict.Body.String(), "idempotency_conflict")
	assert.Equal(t, 1, calls)

	other := idempotentPost(handler, "/payrolls/employee/e1", "run-1", `{"paymentDate":"2026-02-01"}`)
	assert.Equal(t, http.StatusCreated, other.Code)
	assert.Equal(t, 2, calls)
}

func TestIdempotencyDoesNotStoreFailures(t *testing.T) {
	calls := 0
	handler := NewIdempotency(newMemoryIdempotency()).Optional(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))

	idempotentPost(handler, "/payrolls/employee/e1", "k", `{}`)
	rec := idempotentPost(handler, "/payrolls/employee/e1", "k", `{}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Empty(t, rec.Header().Get(IdempotentReplayedHeader))
	assert.Equal(t, 2, calls)

	idempotentPost(handler, "/payrolls/employee/e1", "", `{}`)
	assert.Equal(t, 3, calls)
}

func TestIdempotencyRejectsConcurrentDuplicate(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	handler := NewIdempotency(newMemoryIdempotency()).Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		w.WriteHeader(http.StatusCreated)
	}))

	done := make(chan *httptest.ResponseRecorder)
	go func() { done <- idempotentPost(handler, "/payrolls", "k", `{}`) }()
	<-started

	rec := idempotentPost(handler, "/payrolls", "k", `{}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "idempotency_in_progress")

	close(release)
	assert.Equal(t, http.StatusCreated, (<-done).Code)
}

func TestNilIdempotencyPassesThrough(t *testing.T) {
	var idem *Idempotency
	calls := 0
	handler := idem.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls++ }))
	idempotentPost(handler, "/payrolls", "", `{}`)
	assert.Equal(t, 1, calls)
}
