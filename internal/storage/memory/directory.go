package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Vasu1712/scenyx-chatsync/internal/models"
)

// Directory is an in-memory participant directory.
type Directory struct {
	mu           sync.RWMutex
	participants map[models.ParticipantID]models.Participant
}

func NewDirectory() *Directory {
	return &Directory{participants: make(map[models.ParticipantID]models.Participant)}
}

// UpsertParticipant adds p or replaces the entry with the same id.
func (d *Directory) UpsertParticipant(_ context.Context, p models.Participant) error {
	id, err := models.ParseParticipantID(string(p.ID))
	if err != nil {
		return err
	}
	p.ID = id
	p.Online = false

	d.mu.Lock()
	d.participants[id] = p
	d.mu.Unlock()
	return nil
}

func (d *Directory) GetParticipant(_ context.Context, id models.ParticipantID) (models.Participant, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.participants[id]
	if !ok {
		return models.Participant{}, fmt.Errorf("participant %q: %w", id, models.ErrNotFound)
	}
	return p, nil
}

// ListParticipants returns every participant sorted by id.
func (d *Directory) ListParticipants(_ context.Context) ([]models.Participant, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]models.Participant, 0, len(d.participants))
	for _, p := range d.participants {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
