package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vasu1712/scenyx-chatsync/internal/models"
	"github.com/Vasu1712/scenyx-chatsync/internal/roomkey"
)

func openTestDB(t *testing.T) *DMStore {
	t.Helper()
	dsn := os.Getenv("SCENYX_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SCENYX_TEST_POSTGRES_DSN not set; skipping PostgreSQL integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := Open(ctx, dsn)
	require.NoError(t, err)
	store := NewDMStore(db)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestDMStoreRoundTrip(t *testing.T) {
	store := openTestDB(t)
	ctx := context.Background()
	a := models.ParticipantID("t-" + uuid.NewString()[:8])
	room, err := roomkey.Derive(a, "peer")
	require.NoError(t, err)

	for _, text := range []string{"first", "second", "third"} {
		_, err := store.AddMessage(ctx, room, models.MessageRecord{
			ClientID: uuid.NewString(), SenderID: a, Text: text, SendDate: "2024-05-01", SendTime: "09:00 AM",
		})
		require.NoError(t, err)
	}

	all, err := store.GetMessages(ctx, room, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "first", all[0].Text)
	assert.NotEmpty(t, all[0].ID)
	assert.NotEmpty(t, all[0].ClientID)
	assert.Equal(t, a, all[0].SenderID)

	recent, err := store.GetMessages(ctx, room, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "second", recent[0].Text)
	assert.Equal(t, "third", recent[1].Text)
}

func TestDirectoryRoundTrip(t *testing.T) {
	store := openTestDB(t)
	dir := NewDirectory(store.db)
	ctx := context.Background()
	id := models.ParticipantID("t-" + uuid.NewString()[:8])

	require.NoError(t, dir.UpsertParticipant(ctx, models.Participant{ID: id, Name: "Asha", PasswordHash: "x"}))
	require.NoError(t, dir.UpsertParticipant(ctx, models.Participant{ID: id, Name: "Asha K", Role: "admin", PasswordHash: "y"}))

	p, err := dir.GetParticipant(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Asha K", p.Name)
	assert.Equal(t, "y", p.PasswordHash)

	_, err = dir.GetParticipant(ctx, "missing-"+id)
	assert.ErrorIs(t, err, models.ErrNotFound)

	all, err := dir.ListParticipants(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, all)
}
