package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/vicinaehq/backend/internal/common/httpx"
	"github.com/vicinaehq/backend/internal/common/logtrace"
)

const RequestIdHeader = "X-Request-ID"

const maxRequestIdLen = 64

// RequestLogger tags the request with an id, carried in the context logger and echoed
// in the response, and logs one line per request once the handler returns.
// A well formed X-Request-ID from an upstream proxy is reused.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get(RequestIdHeader)
		if !validRequestId(requestID) {
			requestID = uuid.NewString()
		}
		ctx := logtrace.WithRequestId(r.Context(), requestID)
		ctx = log.With().Str("request_id", requestID).Logger().WithContext(ctx)
		w.Header().Set(RequestIdHeader, requestID)

		rw := httpx.NewResponseWriter(w)
		next.ServeHTTP(rw, r.WithContext(ctx))

		status := rw.Status()
		var ev *zerolog.Event
		switch {
		case status >= 500:
			ev = log.Ctx(ctx).Error()
		case status >= 400:
			ev = log.Ctx(ctx).Warn()
		default:
			ev = log.Ctx(ctx).Info()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Str("proto", r.Proto).
			Int("status", status).
			Int64("bytes", rw.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func validRequestId(id string) bool {
	if id == "" || len(id) > maxRequestIdLen {
		return false
	}
	for _, c := range id {
		if c < '!' || c > '~' {
			return false
		}
	}
	return true
}
