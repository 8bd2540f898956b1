package chatsync

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Vasu1712/scenyx-chatsync/internal/models"
)

// HistorySource is the storage collaborator serving persisted messages for the
// conversation between the authenticated participant and counterpart.
type HistorySource interface {
	GetHistory(ctx context.Context, counterpart models.ParticipantID) ([]models.MessageRecord, error)
}

// HistoryLoader fetches and normalizes a conversation's persisted messages.
type HistoryLoader struct {
	source  HistorySource
	self    *Identity
	timeout time.Duration
	log     zerolog.Logger
}

func NewHistoryLoader(source HistorySource, self *Identity, timeout time.Duration, logger zerolog.Logger) *HistoryLoader {
	return &HistoryLoader{source: source, self: self, timeout: timeout, log: logger}
}

// Load returns the counterpart's history in collaborator order with IsMine
// derived from the current local id. Records rejected at the boundary are
// skipped. Collaborator failures are wrapped in ErrHistoryUnavailable.
func (l *HistoryLoader) Load(ctx context.Context, counterpart models.ParticipantID) ([]models.MessageRecord, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	raw, err := l.source.GetHistory(ctx, counterpart)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHistoryUnavailable, err)
	}

	local := l.self.ID()
	out := make([]models.MessageRecord, 0, len(raw))
	for i, r := range raw {
		m, err := models.NewMessageRecord(r, local)
		if err != nil {
			l.log.Warn().Err(err).Str("counterpart", counterpart.String()).Int("index", i).Msg("skipping history record")
			continue
		}
		out = append(out, m)
	}
	return out, nil
}
