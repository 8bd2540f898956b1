package chatsync

import (
	"sync"

	"github.com/Vasu1712/scenyx-chatsync/internal/models"
)

// Identity holds the local participant id. It is read at the moment a message
// is normalized so a late login or account switch is always honoured.
type Identity struct {
	mu sync.RWMutex
	id models.ParticipantID
}

func NewIdentity(id models.ParticipantID) *Identity {
	return &Identity{id: id}
}

func (i *Identity) ID() models.ParticipantID {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.id
}

func (i *Identity) Set(id models.ParticipantID) {
	i.mu.Lock()
	i.id = id
	i.mu.Unlock()
}
