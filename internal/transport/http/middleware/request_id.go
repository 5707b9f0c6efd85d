package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"hrpayroll/internal/requestctx"
	"hrpayroll/internal/transport/http/shared"
)

const (
	RequestIDHeader = "X-Request-ID"

	maxRequestIDLength = 128
)

// RequestID propagates a caller supplied request id or assigns a new one and
// attaches a request scoped logger to the context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if reqID == "" || len(reqID) > maxRequestIDLength {
			reqID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, reqID)

		meta := requestctx.Meta{RequestID: reqID, ClientIP: shared.ClientIP(r)}
		ctx := requestctx.WithMeta(r.Context(), meta)
		logger := zerolog.Ctx(r.Context()).With().Str("requestId", reqID).Str("ip", meta.ClientIP).Logger()
		ctx = logger.WithContext(ctx)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetRequestID(ctx context.Context) string {
	return requestctx.GetRequestID(ctx)
}
