package client

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vasu1712/scenyx-chatsync/internal/api/dms"
	"github.com/Vasu1712/scenyx-chatsync/internal/auth"
	"github.com/Vasu1712/scenyx-chatsync/internal/chatsync"
	"github.com/Vasu1712/scenyx-chatsync/internal/middleware"
	"github.com/Vasu1712/scenyx-chatsync/internal/models"
	"github.com/Vasu1712/scenyx-chatsync/internal/retry"
	"github.com/Vasu1712/scenyx-chatsync/internal/storage/memory"
	"github.com/Vasu1712/scenyx-chatsync/internal/ws"
)

func startRelay(t *testing.T) *httptest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	dir := memory.NewDirectory()
	for _, p := range []models.Participant{{ID: "1", Name: "Asha"}, {ID: "2", Name: "Ravi"}} {
		hash, err := auth.HashPassword("pw")
		require.NoError(t, err)
		p.PasswordHash = hash
		require.NoError(t, dir.UpsertParticipant(ctx, p))
	}
	hub := ws.NewHub()
	go hub.Run(ctx)

	tokens := auth.NewManager("secret", time.Hour)
	limiter := middleware.NewLimiterStore(600, 100, time.Minute)
	t.Cleanup(limiter.Stop)

	r := mux.NewRouter()
	dms.RegisterDMRoutes(r, &dms.DMHandler{
		Store:        memory.NewDMStore(),
		Directory:    dir,
		Hub:          hub,
		Tokens:       tokens,
		WS:           ws.DefaultConfig(),
		HistoryLimit: 100,
	}, middleware.Authenticate(tokens), middleware.RateLimit(limiter))

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

type participant struct {
	api     *API
	conn    *chatsync.ConnectionManager
	session *chatsync.Session
}

func connect(t *testing.T, srv *httptest.Server, id models.ParticipantID) *participant {
	t.Helper()
	api, err := New(srv.URL, nil)
	require.NoError(t, err)
	_, err = api.Login(context.Background(), id, "pw")
	require.NoError(t, err)

	backoff := retry.Backoff{BaseDelay: 5 * time.Millisecond, MaxDelay: 50 * time.Millisecond, Multiplier: 2}
	conn := chatsync.NewConnectionManager(api.Dialer(), backoff, zerolog.Nop())
	session := chatsync.NewSession(chatsync.NewIdentity(""), api, conn, chatsync.SessionOptions{
		HistoryTimeout: 2 * time.Second,
		Logger:         zerolog.Nop(),
	})
	_, err = session.Bootstrap(context.Background(), api)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		conn.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		session.Close()
		cancel()
		<-done
	})
	require.Eventually(t, func() bool { return conn.State() == chatsync.Connected }, 2*time.Second, 5*time.Millisecond)
	return &participant{api: api, conn: conn, session: session}
}

func TestLoginAndDirectory(t *testing.T) {
	srv := startRelay(t)
	api, err := New(srv.URL, nil)
	require.NoError(t, err)

	_, err = api.ListParticipants(context.Background())
	assert.True(t, IsUnauthorized(err))

	_, err = api.Login(context.Background(), "1", "wrong")
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))

	resp, err := api.Login(context.Background(), "1", "pw")
	require.NoError(t, err)
	assert.Equal(t, "Asha", resp.Participant.Name)
	assert.NotEmpty(t, api.Token())

	dir, err := api.ListParticipants(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.ParticipantID("1"), dir.Self)
	require.Len(t, dir.Entries, 1)
	assert.Equal(t, "Ravi", dir.Entries[0].Name)
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New("ftp://example.com", nil)
	assert.Error(t, err)
	_, err = New("://nope", nil)
	assert.Error(t, err)
}

func TestConversationEndToEnd(t *testing.T) {
	srv := startRelay(t)
	asha := connect(t, srv, "1")
	ravi := connect(t, srv, "2")

	require.NoError(t, asha.session.SelectConversation("2"))
	require.NoError(t, ravi.session.SelectConversation("1"))
	asha.session.Wait()
	ravi.session.Wait()
	require.Eventually(t, func() bool {
		return asha.conn.Pending() == 0 && ravi.conn.Pending() == 0
	}, 2*time.Second, 5*time.Millisecond)
	// joins are acknowledged asynchronously; give the relay a moment to apply them
	time.Sleep(50 * time.Millisecond)

	sent, err := asha.session.SendMessage("hello Ravi")
	require.NoError(t, err)
	assert.True(t, sent.IsMine)

	require.Eventually(t, func() bool {
		return len(ravi.session.Conversation("1").Messages) == 1
	}, 2*time.Second, 5*time.Millisecond)
	got := ravi.session.Conversation("1").Messages[0]
	assert.Equal(t, "hello Ravi", got.Text)
	assert.False(t, got.IsMine)
	assert.NotEmpty(t, got.ID)

	time.Sleep(50 * time.Millisecond)
	assert.Len(t, asha.session.Conversation("2").Messages, 1, "echo must not duplicate the optimistic copy")

	history, err := ravi.api.GetHistory(context.Background(), "1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, sent.ClientID, history[0].ClientID)
}

func TestHistoryLoadsOnSelect(t *testing.T) {
	srv := startRelay(t)
	asha := connect(t, srv, "1")

	_, err := asha.session.SendTo("2", "left while you were away")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return asha.conn.Pending() == 0 }, 2*time.Second, 5*time.Millisecond)

	ravi := connect(t, srv, "2")
	require.Eventually(t, func() bool {
		h, err := ravi.api.GetHistory(context.Background(), "1")
		return err == nil && len(h) == 1
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, ravi.session.SelectConversation("1"))
	ravi.session.Wait()

	msgs := ravi.session.Conversation("1").Messages
	require.Len(t, msgs, 1)
	assert.Equal(t, "left while you were away", msgs[0].Text)
	assert.Equal(t, chatsync.Live, ravi.session.State("1"))
}

func TestDialerRejectsMissingToken(t *testing.T) {
	srv := startRelay(t)
	api, err := New(srv.URL, nil)
	require.NoError(t, err)

	_, err = api.Dialer().Dial(context.Background())
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
}
