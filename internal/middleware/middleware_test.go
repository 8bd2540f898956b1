package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Vasu1712/scenyx-chatsync/internal/models"
)

type staticVerifier map[string]models.ParticipantID

func (v staticVerifier) Verify(token string) (models.ParticipantID, error) {
	if id, ok := v[token]; ok {
		return id, nil
	}
	return "", errors.New("bad token")
}

func whoami() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := ParticipantFromContext(r.Context())
		w.Write([]byte(id))
	})
}

func TestAuthenticate(t *testing.T) {
	h := Authenticate(staticVerifier{"good": "7"})(whoami())

	cases := []struct {
		name   string
		header string
		query  string
		status int
		body   string
	}{
		{"bearer header", "Bearer good", "", http.StatusOK, "7"},
		{"lowercase scheme", "bearer good", "", http.StatusOK, "7"},
		{"query token", "", "?token=good", http.StatusOK, "7"},
		{"missing", "", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic good", "", http.StatusUnauthorized, ""},
		{"bad token", "Bearer nope", "", http.StatusUnauthorized, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x"+tc.query, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tc.status, rec.Code)
			if tc.status == http.StatusOK {
				assert.Equal(t, tc.body, rec.Body.String())
			}
		})
	}
}

func TestParticipantFromContextEmpty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := ParticipantFromContext(req.Context())
	assert.False(t, ok)
}

func TestCORS(t *testing.T) {
	called := false
	h := CORS("http://127.0.0.1:5173")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/v1/participants", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://127.0.0.1:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.False(t, called)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/participants", nil))
	assert.True(t, called)
}

func TestLimiterStoreAllow(t *testing.T) {
	s := NewLimiterStore(60, 2, time.Minute)
	defer s.Stop()

	assert.True(t, s.Allow("a"))
	assert.True(t, s.Allow("a"))
	assert.False(t, s.Allow("a"), "burst exhausted")
	assert.True(t, s.Allow("b"), "keys are independent")
}

func TestRateLimitMiddleware(t *testing.T) {
	s := NewLimiterStore(1, 1, time.Minute)
	defer s.Stop()
	h := RateLimit(s)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	req.RemoteAddr = "10.0.0.1:5555"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req.RemoteAddr = "10.0.0.1:6666"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
