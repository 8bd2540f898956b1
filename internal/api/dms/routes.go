package dms

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// RegisterDMRoutes registers all DM-related HTTP and WebSocket routes.
// authn guards everything except login; loginLimit throttles login attempts.
func RegisterDMRoutes(r *mux.Router, handler *DMHandler, authn, loginLimit func(http.Handler) http.Handler) {
	r.Use(logRequests)

	r.Handle("/api/v1/auth/login", loginLimit(http.HandlerFunc(handler.Login))).Methods(http.MethodPost)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(authn)
	api.HandleFunc("/participants", handler.ListParticipants).Methods(http.MethodGet)
	api.HandleFunc("/dms/messages", handler.GetMessages).Methods(http.MethodGet)

	r.Handle("/ws/dms", authn(http.HandlerFunc(handler.ServeWS))).Methods(http.MethodGet)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Debug().Str("method", r.Method).Str("path", r.URL.Path).Msg("[DM] request")
		next.ServeHTTP(w, r)
	})
}
