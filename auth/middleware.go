package auth

import (
	"context"
	"fmt"
	"log/slog"
	"match-chat/errors"
	"net/http"
)

type contextKey string

const userIDKey contextKey = "user_id"

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func UserIDFrom(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok && userID != ""
}

// Middleware rejects requests without a valid bearer token and stores the caller id in the context.
// onError renders the failure, it receives an ErrUnauthenticated.
func Middleware(tokens *TokenService, log *slog.Logger, onError func(http.ResponseWriter, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok {
				onError(w, fmt.Errorf("%w: authorization header is missing", errors.ErrUnauthenticated))
				return
			}
			claims, err := tokens.Validate(raw)
			if err != nil {
				log.Debug("Rejected bearer token", "path", r.URL.Path, "error", err)
				onError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), claims.UserID())))
		})
	}
}
