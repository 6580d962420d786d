package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog/log"
	"github.com/vicinaehq/backend/internal/common/httpx"
)

// PanicHandler turns a handler panic into a 500 with the usual error body.
// http.ErrAbortHandler is re-raised so net/http can drop the connection.
func PanicHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			log.Ctx(r.Context()).Error().
				Str("path", r.URL.Path).
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("handler panicked")
			httpx.ErrApplicationError("Unable to process request. Please try again later.").Send(w)
		}()
		next.ServeHTTP(w, r)
	})
}
