package middleware

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/hlog"

	"github.com/pliu/pairchat/internal/auth"
)

type contextKey string

const UserIDKey contextKey = "user_id"

// UserID returns the authenticated user id stored by AuthMiddleware.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(UserIDKey).(string)
	return id, ok && id != ""
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// AuthMiddleware requires a valid bearer token. Websocket upgrades may pass
// the token in the "token" query parameter instead, since browsers can't set
// headers on them.
func AuthMiddleware(tokens *auth.Tokens) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := auth.BearerToken(r.Header.Get("Authorization"))
			if err != nil && websocket.IsWebSocketUpgrade(r) {
				token, err = r.URL.Query().Get("token"), nil
			}
			if err != nil || token == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := tokens.Parse(token)
			if err != nil {
				hlog.FromRequest(r).Debug().Err(err).Msg("Rejected bearer token")
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			log := hlog.FromRequest(r).With().Str("user_id", claims.UserID).Logger()
			ctx := log.WithContext(WithUserID(r.Context(), claims.UserID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
