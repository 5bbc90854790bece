package middleware

import (
	"net/http"

	"onetee-be/internal/auth"
	"onetee-be/internal/logger"
	"onetee-be/internal/utils"

	"go.uber.org/zap"
)

type TokenParser interface {
	Parse(token string) (auth.Identity, error)
}

// AuthMiddleware attaches the caller identity when a token is presented.
// Requests without a token continue anonymously; a bad token is rejected.
func AuthMiddleware(tokens TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := auth.ExtractAccessToken(r)
			if tokenStr == "" {
				next.ServeHTTP(w, r)
				return
			}

			identity, err := tokens.Parse(tokenStr)
			if err != nil {
				logger.FromCtx(r.Context()).Debug("rejected access token", zap.Error(err))
				utils.WriteJSONError(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}

			ctx := auth.WithIdentity(r.Context(), identity)
			ctx = logger.WithUserID(ctx, identity.UserID.String())

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
