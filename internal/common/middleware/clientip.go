package middleware

import (
	"context"
	"net/http"
	"strings"
)

// UnknownClient is the identity given to requests that carry none of the forwarding headers.
const UnknownClient = "unknown"

type clientIPContextKey string

const clientIPKey = clientIPContextKey("clientIP")

// forwarding headers in order of precedence
var clientIPHeaders = []string{
	"X-Forwarded-For",
	"X-Real-IP",
	"CF-Connecting-IP",
	"True-Client-IP",
}

// ClientIP resolves the client identity used for download deduplication and stores it in the context.
func ClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), clientIPKey, ResolveClientIP(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ResolveClientIP returns the first non-empty forwarding header value. For
// X-Forwarded-For only the first entry of the list is used.
func ResolveClientIP(r *http.Request) string {
	for _, h := range clientIPHeaders {
		v := r.Header.Get(h)
		if v == "" {
			continue
		}
		if h == "X-Forwarded-For" {
			v, _, _ = strings.Cut(v, ",")
		}
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return UnknownClient
}

// ClientIPFromContext returns the identity stored by ClientIP, or UnknownClient.
func ClientIPFromContext(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPKey).(string); ok && ip != "" {
		return ip
	}
	return UnknownClient
}
