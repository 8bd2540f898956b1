// Package valkey stores direct messages in Valkey (or any Redis-protocol
// server), one list per room.
package valkey

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/valkey-io/valkey-go"

	"github.com/Vasu1712/scenyx-chatsync/internal/models"
	"github.com/Vasu1712/scenyx-chatsync/internal/roomkey"
)

const (
	defaultPrefix = "scenyx:dm:"
	seqKey        = "seq"
)

type DMStore struct {
	client valkey.Client
	prefix string
}

// Open connects to the Valkey server at addr.
func Open(ctx context.Context, addr string) (*DMStore, error) {
	client, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{addr}})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to valkey at %s: %w", addr, err)
	}
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping valkey at %s: %w", addr, err)
	}
	log.Info().Str("addr", addr).Msg("connected to Valkey")
	return NewDMStore(client, defaultPrefix), nil
}

func NewDMStore(client valkey.Client, prefix string) *DMStore {
	return &DMStore{client: client, prefix: prefix}
}

func (s *DMStore) roomKey(room roomkey.Key) string {
	return s.prefix + "room:" + string(room)
}

// AddMessage assigns the next id from a global counter and appends m to the
// room's list.
func (s *DMStore) AddMessage(ctx context.Context, room roomkey.Key, m models.MessageRecord) (models.MessageRecord, error) {
	id, err := s.client.Do(ctx, s.client.B().Incr().Key(s.prefix+seqKey).Build()).AsInt64()
	if err != nil {
		return models.MessageRecord{}, fmt.Errorf("allocate message id: %w", err)
	}
	m.ID = strconv.FormatInt(id, 10)
	m.IsMine = false

	data, err := json.Marshal(m)
	if err != nil {
		return models.MessageRecord{}, fmt.Errorf("encode message: %w", err)
	}
	cmd := s.client.B().Rpush().Key(s.roomKey(room)).Element(string(data)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return models.MessageRecord{}, fmt.Errorf("add message to %s: %w", room, err)
	}
	return m, nil
}

// GetMessages returns the newest limit messages of room, oldest first.
func (s *DMStore) GetMessages(ctx context.Context, room roomkey.Key, limit int) ([]models.MessageRecord, error) {
	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}
	cmd := s.client.B().Lrange().Key(s.roomKey(room)).Start(start).Stop(-1).Build()
	raw, err := s.client.Do(ctx, cmd).AsStrSlice()
	if err != nil {
		return nil, fmt.Errorf("get messages for %s: %w", room, err)
	}

	msgs := make([]models.MessageRecord, 0, len(raw))
	for _, item := range raw {
		var m models.MessageRecord
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			log.Warn().Err(err).Str("room", string(room)).Msg("skipping undecodable message")
			continue
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func (s *DMStore) Close() error {
	s.client.Close()
	return nil
}
