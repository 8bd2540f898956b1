package chatsync

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Vasu1712/scenyx-chatsync/internal/models"
	"github.com/Vasu1712/scenyx-chatsync/internal/roomkey"
)

// Transmitter queues an outbound message for a room.
type Transmitter interface {
	Send(key roomkey.Key, m models.MessageRecord)
}

// Sender shows a message locally before the transport has carried it.
type Sender struct {
	store *Store
	self  *Identity
	tx    Transmitter

	now   func() time.Time
	newID func() string
}

func NewSender(store *Store, self *Identity, tx Transmitter) *Sender {
	return &Sender{
		store: store,
		self:  self,
		tx:    tx,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Send appends the message to the counterpart's conversation and hands it to
// the transmitter. The server's echo is filtered on receipt, so the record
// returned here is the only copy the sender ever holds.
func (s *Sender) Send(counterpart models.ParticipantID, text string) (models.MessageRecord, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.MessageRecord{}, models.ErrEmptyMessage
	}
	cp, err := models.ParseParticipantID(string(counterpart))
	if err != nil {
		return models.MessageRecord{}, fmt.Errorf("counterpart: %w", err)
	}
	local := s.self.ID()
	key, err := roomkey.Derive(local, cp)
	if err != nil {
		return models.MessageRecord{}, err
	}

	now := s.now()
	m := models.MessageRecord{
		ClientID: s.newID(),
		Text:     text,
		SendDate: now.Format(DateLayout),
		SendTime: now.Format(ClockLayout),
		SenderID: local,
		IsMine:   true,
	}
	s.store.Append(cp, m)
	s.tx.Send(key, m)
	return m, nil
}
