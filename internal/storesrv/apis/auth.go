package apis

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/vicinaehq/backend/internal/common/httpx"
	"github.com/vicinaehq/backend/internal/storesrv/catcommon"
)

const (
	authHeaderPrefix = "Bearer "
	genericAuthError = "Unauthorized"
)

// AdminAuth admits requests carrying the store secret as a bearer token. The secret is
// compared in constant time against secret, or verified against the argon2id secretHash.
// With neither configured every request is rejected.
func AdminAuth(secret, secretHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			logger := log.Ctx(ctx)

			if catcommon.TestContextFromContext(ctx) {
				next.ServeHTTP(w, r.WithContext(catcommon.SetAdminInContext(ctx)))
				return
			}

			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, authHeaderPrefix) {
				logger.Debug().Msg("missing or malformed authorization header")
				httpx.ErrUnAuthorized(genericAuthError).Send(w)
				return
			}
			token := strings.TrimSpace(strings.TrimPrefix(authHeader, authHeaderPrefix))
			if token == "" || !secretMatches(token, secret, secretHash) {
				logger.Warn().Str("path", r.URL.Path).Msg("admin authentication failed")
				httpx.ErrUnAuthorized(genericAuthError).Send(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(catcommon.SetAdminInContext(ctx)))
		})
	}
}

func secretMatches(token, secret, secretHash string) bool {
	if secret != "" && catcommon.SecretEquals(token, secret) {
		return true
	}
	if secretHash == "" {
		return false
	}
	ok, err := catcommon.VerifySecret(token, secretHash)
	if err != nil {
		log.Error().Err(err).Msg("invalid api_secret_hash")
		return false
	}
	return ok
}
