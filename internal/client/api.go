// Package client talks to the relay: REST calls for login, directory and
// history, and the websocket dialer for the live connection.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Vasu1712/scenyx-chatsync/internal/models"
)

// APIError is a non-2xx relay response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("relay returned %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return models.ErrUnauthorized
	case http.StatusNotFound:
		return models.ErrNotFound
	}
	return nil
}

// API is an authenticated relay client. It implements the directory and
// history collaborators of a chat session.
type API struct {
	base         *url.URL
	http         *http.Client
	historyLimit int

	mu    sync.RWMutex
	token string
}

func New(baseURL string, httpClient *http.Client) (*API, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server url %q must be http or https", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &API{base: u, http: httpClient}, nil
}

// SetHistoryLimit caps how many messages GetHistory asks for. Zero leaves it
// to the relay.
func (a *API) SetHistoryLimit(n int) { a.historyLimit = n }

func (a *API) Token() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.token
}

func (a *API) SetToken(token string) {
	a.mu.Lock()
	a.token = token
	a.mu.Unlock()
}

// Login authenticates and keeps the returned token for later calls.
func (a *API) Login(ctx context.Context, id models.ParticipantID, password string) (models.LoginResponse, error) {
	var out models.LoginResponse
	err := a.do(ctx, http.MethodPost, "/api/v1/auth/login", nil, models.LoginRequest{ID: id, Password: password}, &out)
	if err != nil {
		return models.LoginResponse{}, fmt.Errorf("login: %w", err)
	}
	a.SetToken(out.Token)
	return out, nil
}

func (a *API) ListParticipants(ctx context.Context) (models.Directory, error) {
	var out models.Directory
	if err := a.do(ctx, http.MethodGet, "/api/v1/participants", nil, nil, &out); err != nil {
		return models.Directory{}, fmt.Errorf("list participants: %w", err)
	}
	return out, nil
}

// GetHistory returns the stored conversation with counterpart, oldest first.
func (a *API) GetHistory(ctx context.Context, counterpart models.ParticipantID) ([]models.MessageRecord, error) {
	q := url.Values{"with": {string(counterpart)}}
	if a.historyLimit > 0 {
		q.Set("limit", strconv.Itoa(a.historyLimit))
	}
	var out []models.MessageRecord
	if err := a.do(ctx, http.MethodGet, "/api/v1/dms/messages", q, nil, &out); err != nil {
		return nil, fmt.Errorf("get history with %s: %w", counterpart, err)
	}
	return out, nil
}

func (a *API) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	u := *a.base
	u.Path += path
	u.RawQuery = query.Encode()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := a.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// IsUnauthorized reports whether err is an authentication failure.
func IsUnauthorized(err error) bool {
	return errors.Is(err, models.ErrUnauthorized)
}
