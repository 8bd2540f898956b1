package valkey

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valkey-io/valkey-go"

	"github.com/Vasu1712/scenyx-chatsync/internal/models"
)

func TestDMStoreRoundTrip(t *testing.T) {
	addr := os.Getenv("SCENYX_TEST_VALKEY_ADDR")
	if addr == "" {
		t.Skip("SCENYX_TEST_VALKEY_ADDR not set; skipping Valkey integration test")
	}
	client, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{addr}})
	require.NoError(t, err)
	prefix := "scenyx-test:" + uuid.NewString() + ":"
	store := NewDMStore(client, prefix)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	t.Cleanup(func() {
		keys := []string{prefix + seqKey, store.roomKey("1:2")}
		client.Do(context.Background(), client.B().Del().Key(keys...).Build())
		store.Close()
	})

	for _, text := range []string{"first", "second", "third"} {
		_, err := store.AddMessage(ctx, "1:2", models.MessageRecord{SenderID: "1", Text: text, ClientID: "c-" + text})
		require.NoError(t, err)
	}

	all, err := store.GetMessages(ctx, "1:2", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "1", all[0].ID)
	assert.Equal(t, "c-first", all[0].ClientID)

	recent, err := store.GetMessages(ctx, "1:2", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "second", recent[0].Text)

	none, err := store.GetMessages(ctx, "3:4", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}
