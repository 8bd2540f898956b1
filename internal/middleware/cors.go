package middleware

import (
	"net/http"

	"github.com/rs/zerolog/log"
)

// CORS allows the configured front-end origin to call the relay.
func CORS(allowedOrigin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
			w.Header().Set("Access-Control-Allow-Credentials", "true")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				log.Debug().Str("path", r.URL.Path).Msg("handled CORS preflight")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
