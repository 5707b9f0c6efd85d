package shared

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"hrpayroll/internal/domain/audit"
	"hrpayroll/internal/requestctx"
)

type AuditRecorder interface {
	Record(ctx context.Context, entry audit.Entry) error
}

// Audit records a change made by r. Failures are logged and never fail the
// request. A nil recorder is a no-op.
func Audit(r *http.Request, recorder AuditRecorder, entry audit.Entry) {
	if recorder == nil {
		return
	}
	meta := requestctx.FromContext(r.Context())
	entry.RequestID = meta.RequestID
	entry.IP = meta.ClientIP
	if entry.IP == "" {
		entry.IP = ClientIP(r)
	}
	if err := recorder.Record(r.Context(), entry); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Str("action", entry.Action).Msg("audit record failed")
	}
}

// ClientIP prefers the first X-Forwarded-For hop over the socket address.
func ClientIP(r *http.Request) string {
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
