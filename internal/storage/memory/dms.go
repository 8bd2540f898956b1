package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/Vasu1712/scenyx-chatsync/internal/models"
	"github.com/Vasu1712/scenyx-chatsync/internal/roomkey"
)

// DMStore keeps every room's messages in insertion order.
type DMStore struct {
	mu    sync.RWMutex
	rooms map[roomkey.Key][]models.MessageRecord
}

func NewDMStore() *DMStore {
	return &DMStore{rooms: make(map[roomkey.Key][]models.MessageRecord)}
}

func (s *DMStore) AddMessage(_ context.Context, room roomkey.Key, m models.MessageRecord) (models.MessageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = uuid.NewString()
	m.IsMine = false
	s.rooms[room] = append(s.rooms[room], m)
	return m, nil
}

// GetMessages returns the newest limit messages of room, oldest first. A
// non-positive limit returns everything.
func (s *DMStore) GetMessages(_ context.Context, room roomkey.Key, limit int) ([]models.MessageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.rooms[room]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]models.MessageRecord, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *DMStore) Close() error { return nil }
