package chatsync

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vasu1712/scenyx-chatsync/internal/models"
)

func TestStoreGetCreatesEmptyEntry(t *testing.T) {
	s := NewStore()

	c := s.Get("7")
	assert.Equal(t, models.ParticipantID("7"), c.Counterpart)
	assert.Empty(t, c.Messages)
	assert.Equal(t, "", c.Preview)
	assert.Equal(t, []models.ParticipantID{"7"}, s.Counterparts())
}

func TestStoreIsolatesConversations(t *testing.T) {
	s := NewStore()
	s.Append("a", msg("a", "for a", "2024-05-01", "09:00"))
	s.Append("b", msg("b", "for b", "2024-05-01", "09:00"))

	assert.Equal(t, []string{"for a"}, texts(s.Get("a").Messages))
	assert.Equal(t, []string{"for b"}, texts(s.Get("b").Messages))
	assert.Equal(t, []models.ParticipantID{"a", "b"}, s.Counterparts())
}

func TestStorePreviewFollowsLastMessage(t *testing.T) {
	s := NewStore()
	s.Append("a", msg("a", "first", "", ""))
	s.Append("a", msg("a", "second", "", ""))

	assert.Equal(t, "second", s.Preview("a"))
	assert.Equal(t, "second", s.Get("a").Preview)

	s.ReplaceAll("a", nil)
	assert.Equal(t, "", s.Preview("a"))
}

func TestStoreSnapshotsAreCopies(t *testing.T) {
	s := NewStore()
	s.Append("a", msg("a", "original", "", ""))

	snap := s.Get("a")
	snap.Messages[0].Text = "mutated"

	assert.Equal(t, "original", s.Get("a").Messages[0].Text)
}

func TestStoreReplaceAllCopiesInput(t *testing.T) {
	s := NewStore()
	in := []models.MessageRecord{msg("a", "one", "", "")}
	s.ReplaceAll("a", in)
	in[0].Text = "changed"

	assert.Equal(t, "one", s.Get("a").Messages[0].Text)
}

func TestStoreSubscribe(t *testing.T) {
	s := NewStore()
	var got []Conversation
	cancel := s.Subscribe("a", func(c Conversation) { got = append(got, c) })

	s.Append("a", msg("a", "one", "", ""))
	s.Append("b", msg("b", "elsewhere", "", ""))
	s.Append("a", msg("a", "two", "", ""))
	cancel()
	cancel()
	s.Append("a", msg("a", "three", "", ""))

	require.Len(t, got, 2)
	assert.Equal(t, []string{"one"}, texts(got[0].Messages))
	assert.Equal(t, []string{"one", "two"}, texts(got[1].Messages))
	assert.Equal(t, "two", got[1].Preview)
}

func TestStoreConcurrentAppendsAreSerialized(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Append("a", msg("a", "x", "", ""))
		}()
	}
	wg.Wait()

	assert.Len(t, s.Get("a").Messages, 50)
}

func TestStoreSubscribersSeeIncreasingSnapshots(t *testing.T) {
	s := NewStore()
	var mu sync.Mutex
	last := -1
	monotonic := true
	s.Subscribe("a", func(c Conversation) {
		mu.Lock()
		defer mu.Unlock()
		if len(c.Messages) <= last {
			monotonic = false
		}
		last = len(c.Messages)
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Append("a", msg("a", "x", "", ""))
		}()
	}
	wg.Wait()

	assert.True(t, monotonic)
	assert.Equal(t, 20, last)
}

func TestStoreReset(t *testing.T) {
	s := NewStore()
	s.Append("a", msg("a", "one", "", ""))
	s.Reset()

	assert.Empty(t, s.Counterparts())
	assert.Empty(t, s.Get("a").Messages)
}

func TestStoreResetDropsSubscribers(t *testing.T) {
	s := NewStore()
	calls := 0
	s.Subscribe("a", func(Conversation) { calls++ })
	e := s.entry("a")

	s.Reset()
	e.notify(e.version+1, Conversation{Counterpart: "a"})
	s.Append("a", msg("a", "after reset", "", ""))

	assert.Zero(t, calls)
}

func TestStoreSubscriberMayWriteSameConversation(t *testing.T) {
	s := NewStore()
	var seen [][]string
	s.Subscribe("a", func(c Conversation) {
		seen = append(seen, texts(c.Messages))
		if len(c.Messages) == 1 {
			s.Append("a", msg("me", "reply", "", ""))
		}
	})

	done := make(chan struct{})
	go func() {
		s.Append("a", msg("a", "ping", "", ""))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("append from inside a subscriber did not return")
	}

	assert.Equal(t, []string{"ping", "reply"}, texts(s.Get("a").Messages))
	assert.Equal(t, [][]string{{"ping"}, {"ping", "reply"}}, seen)
}
