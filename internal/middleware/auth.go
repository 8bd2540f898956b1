package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/Vasu1712/scenyx-chatsync/internal/models"
)

// TokenVerifier resolves a bearer token to the participant it was issued for.
type TokenVerifier interface {
	Verify(token string) (models.ParticipantID, error)
}

type ctxKey struct{}

// ParticipantFromContext returns the authenticated participant set by Authenticate.
func ParticipantFromContext(ctx context.Context) (models.ParticipantID, bool) {
	id, ok := ctx.Value(ctxKey{}).(models.ParticipantID)
	return id, ok && id != ""
}

func WithParticipant(ctx context.Context, id models.ParticipantID) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// Authenticate rejects requests without a valid token. Browsers cannot set
// headers on a websocket upgrade, so the token may also come in the "token"
// query parameter.
func Authenticate(v TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				http.Error(w, "missing token", http.StatusUnauthorized)
				return
			}
			id, err := v.Verify(token)
			if err != nil {
				log.Debug().Err(err).Str("path", r.URL.Path).Msg("rejected token")
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithParticipant(r.Context(), id)))
		})
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}
