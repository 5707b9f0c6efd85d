package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"hrpayroll/internal/platform/querier"
	"hrpayroll/internal/requestctx"
	"hrpayroll/internal/transport/http/api"
	"hrpayroll/internal/transport/http/shared"
)

const (
	IdempotencyKeyHeader      = "Idempotency-Key"
	IdempotentReplayedHeader  = "Idempotent-Replayed"
	maxIdempotencyKeyLength   = 128
	idempotencyRetentionHours = 24
)

var ErrIdempotencyConflict = errors.New("idempotency key conflicts with existing request")

// IdempotencyScope identifies one logical write: the same key sent by the
// same client to the same endpoint.
type IdempotencyScope struct {
	Client   string
	Endpoint string
	Key      string
}

type StoredResponse struct {
	Status int
	Body   json.RawMessage
}

type IdempotencyBackend interface {
	Check(ctx context.Context, scope IdempotencyScope, requestHash string) (*StoredResponse, error)
	Save(ctx context.Context, scope IdempotencyScope, requestHash string, response StoredResponse) error
}

type IdempotencyStore struct {
	db querier.Querier
}

func NewIdempotencyStore(db querier.Querier) *IdempotencyStore {
	return &IdempotencyStore{db: db}
}

func RequestHash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Check returns the stored response for scope, nil when the key is unused or
// expired, and ErrIdempotencyConflict when the key was used with another body.
func (s *IdempotencyStore) Check(ctx context.Context, scope IdempotencyScope, requestHash string) (*StoredResponse, error) {
	var storedHash string
	var stored StoredResponse
	err := s.db.QueryRow(ctx, `
    SELECT request_hash, status_code, response_json
    FROM idempotency_keys
    WHERE client_ip = $1 AND endpoint = $2 AND key = $3
      AND created_at > now() - make_interval(hours => $4)
  `, scope.Client, scope.Endpoint, scope.Key, idempotencyRetentionHours).Scan(&storedHash, &stored.Status, &stored.Body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if storedHash != requestHash {
		return nil, ErrIdempotencyConflict
	}
	return &stored, nil
}

// Save stores the response. An expired row for the same scope is replaced.
func (s *IdempotencyStore) Save(ctx context.Context, scope IdempotencyScope, requestHash string, response StoredResponse) error {
	tag, err := s.db.Exec(ctx, `
    INSERT INTO idempotency_keys (client_ip, endpoint, key, request_hash, status_code, response_json)
    VALUES ($1, $2, $3, $4, $5, $6)
    ON CONFLICT (client_ip, endpoint, key)
    DO UPDATE SET request_hash = EXCLUDED.request_hash,
                  status_code = EXCLUDED.status_code,
                  response_json = EXCLUDED.response_json,
                  created_at = now()
    WHERE idempotency_keys.request_hash = EXCLUDED.request_hash
       OR idempotency_keys.created_at <= now() - make_interval(hours => $7)
  `, scope.Client, scope.Endpoint, scope.Key, requestHash, response.Status, response.Body, idempotencyRetentionHours)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrIdempotencyConflict
	}
	return nil
}

// Idempotency replays the stored response of a repeated write instead of
// running it again. Only successful responses are stored.
type Idempotency struct {
	backend IdempotencyBackend

	mu       sync.Mutex
	inflight map[IdempotencyScope]struct{}
}

func NewIdempotency(backend IdempotencyBackend) *Idempotency {
	return &Idempotency{backend: backend, inflight: map[IdempotencyScope]struct{}{}}
}

// Require rejects requests without an Idempotency-Key header.
func (i *Idempotency) Require(next http.Handler) http.Handler {
	return i.wrap(next, true)
}

// Optional guards requests that carry a key and passes the rest through.
func (i *Idempotency) Optional(next http.Handler) http.Handler {
	return i.wrap(next, false)
}

func (i *Idempotency) wrap(next http.Handler, required bool) http.Handler {
	if i == nil || i.backend == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := GetRequestID(r.Context())
		key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
		if key == "" {
			if required {
				shared.FailField(w, reqID, IdempotencyKeyHeader, "header is required")
				return
			}
			next.ServeHTTP(w, r)
			return
		}
		if len(key) > maxIdempotencyKeyLength {
			shared.FailField(w, reqID, IdempotencyKeyHeader, "must be at most 128 characters")
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				api.Fail(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request payload is too large", reqID)
				return
			}
			api.Fail(w, http.StatusBadRequest, "invalid_payload", "request body could not be read", reqID)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		client := requestctx.FromContext(r.Context()).ClientIP
		if client == "" {
			client = shared.ClientIP(r)
		}
		scope := IdempotencyScope{Client: client, Endpoint: r.Method + " " + r.URL.Path, Key: key}
		hash := RequestHash(body)
		logger := zerolog.Ctx(r.Context())

		stored, err := i.backend.Check(r.Context(), scope, hash)
		if errors.Is(err, ErrIdempotencyConflict) {
			api.Fail(w, http.StatusConflict, "idempotency_conflict", "idempotency key was used with a different payload", reqID)
			return
		}
		if err != nil {
			logger.Error().Err(err).Msg("idempotency lookup failed")
			failInternal(w, r)
			return
		}
		if stored != nil {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set(IdempotentReplayedHeader, "true")
			w.WriteHeader(stored.Status)
			_, _ = w.Write(stored.Body)
			return
		}

		if !i.acquire(scope) {
			api.Fail(w, http.StatusConflict, "idempotency_in_progress", "a request with this idempotency key is still running", reqID)
			return
		}
		defer i.release(scope)

		capture := &captureWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(capture, r)
		if capture.status < 200 || capture.status >= 300 {
			return
		}
		response := StoredResponse{Status: capture.status, Body: json.RawMessage(capture.body.Bytes())}
		if err := i.backend.Save(r.Context(), scope, hash, response); err != nil {
			logger.Warn().Err(err).Str("key", key).Msg("idempotency save failed")
		}
	})
}

func (i *Idempotency) acquire(scope IdempotencyScope) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, busy := i.inflight[scope]; busy {
		return false
	}
	i.inflight[scope] = struct{}{}
	return true
}

func (i *Idempotency) release(scope IdempotencyScope) {
	i.mu.Lock()
	delete(i.inflight, scope)
	i.mu.Unlock()
}

type captureWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (c *captureWriter) WriteHeader(status int) {
	if !c.wroteHeader {
		c.status = status
		c.wroteHeader = true
	}
	c.ResponseWriter.WriteHeader(status)
}

func (c *captureWriter) Write(p []byte) (int, error) {
	c.wroteHeader = true
	c.body.Write(p)
	return c.ResponseWriter.Write(p)
}
