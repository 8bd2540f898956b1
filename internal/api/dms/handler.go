package dms

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/Vasu1712/scenyx-chatsync/internal/auth"
	"github.com/Vasu1712/scenyx-chatsync/internal/middleware"
	"github.com/Vasu1712/scenyx-chatsync/internal/models"
	"github.com/Vasu1712/scenyx-chatsync/internal/roomkey"
	"github.com/Vasu1712/scenyx-chatsync/internal/storage"
	"github.com/Vasu1712/scenyx-chatsync/internal/ws"
)

const maxHistoryLimit = 500

type DMHandler struct {
	Store        storage.MessageStore
	Directory    storage.Directory
	Hub          *ws.Hub
	Tokens       *auth.Manager
	Upgrader     websocket.Upgrader
	WS           ws.Config
	HistoryLimit int
}

// Login exchanges a participant id and password for a token.
func (h *DMHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	p, err := h.Directory.GetParticipant(r.Context(), req.ID)
	if errors.Is(err, models.ErrNotFound) {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("login lookup failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if err := auth.CheckPassword(p.PasswordHash, req.Password); err != nil {
		log.Info().Str("participant", req.ID.String()).Msg("login rejected")
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	token, expiresAt, err := h.Tokens.Issue(p.ID)
	if err != nil {
		log.Error().Err(err).Msg("token issue failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	p.Online = h.Hub.IsOnline(p.ID)
	writeJSON(w, http.StatusOK, models.LoginResponse{Token: token, ExpiresAt: expiresAt, Participant: p})
}

// ListParticipants returns the directory as seen by the caller, without the
// caller's own entry.
func (h *DMHandler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	self, ok := middleware.ParticipantFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	all, err := h.Directory.ListParticipants(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("list participants failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	entries := make([]models.Participant, 0, len(all))
	for _, p := range all {
		if p.ID == self {
			continue
		}
		p.Online = h.Hub.IsOnline(p.ID)
		p.PasswordHash = ""
		entries = append(entries, p)
	}
	writeJSON(w, http.StatusOK, models.Directory{Self: self, Entries: entries})
}

// GetMessages returns the stored history between the caller and ?with=.
func (h *DMHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	self, ok := middleware.ParticipantFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	with, err := models.ParseParticipantID(r.URL.Query().Get("with"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	room, err := roomkey.Derive(self, with)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	limit := h.HistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	if limit <= 0 || limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	msgs, err := h.Store.GetMessages(r.Context(), room, limit)
	if err != nil {
		log.Error().Err(err).Str("room", string(room)).Msg("get messages failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

// ServeWS upgrades the request and relays frames until the connection ends.
func (h *DMHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	self, ok := middleware.ParticipantFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	conn, err := h.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	ws.NewClient(self, h.Hub, conn, h.Store, h.WS).Serve(r.Context())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to write response")
	}
}
