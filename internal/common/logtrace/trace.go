package logtrace

import (
	"context"

	"github.com/rs/zerolog"
)

type requestIdContextKey string

const requestIdKey = requestIdContextKey("requestId")

// WithRequestId returns a copy of ctx carrying the request id.
func WithRequestId(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIdKey, id)
}

func RequestIdFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	r, ok := ctx.Value(requestIdKey).(string)
	if !ok {
		return ""
	}
	return r
}

func IsTraceEnabled() bool {
	return zerolog.GlobalLevel() <= zerolog.TraceLevel
}
