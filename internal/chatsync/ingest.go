package chatsync

import (
	"github.com/rs/zerolog"

	"github.com/Vasu1712/scenyx-chatsync/internal/models"
)

// Ingestor merges live pushes into the store.
type Ingestor struct {
	store *Store
	self  *Identity
	log   zerolog.Logger
}

func NewIngestor(store *Store, self *Identity, logger zerolog.Logger) *Ingestor {
	return &Ingestor{store: store, self: self, log: logger}
}

// OnPush handles one inbound message. Echoes of the local participant's own
// messages are dropped since the optimistic copy is already in the store. The
// message lands in the sender's conversation, then the whole conversation is
// re-sorted by (SendDate, SendTime).
func (in *Ingestor) OnPush(ev models.PushEvent) {
	local := in.self.ID()
	if ev.SenderID == local {
		return
	}

	raw := ev.Message
	raw.SenderID = ev.SenderID
	m, err := models.NewMessageRecord(raw, local)
	if err != nil {
		in.log.Warn().Err(err).Str("room", ev.Room).Msg("dropping malformed push")
		return
	}

	in.store.Update(m.SenderID, func(msgs []models.MessageRecord) []models.MessageRecord {
		if m.ID != "" {
			for _, existing := range msgs {
				if existing.ID == m.ID {
					return msgs
				}
			}
		}
		msgs = append(msgs, m)
		SortChronological(msgs)
		return msgs
	})
}
