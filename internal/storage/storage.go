// Package storage selects the message store and participant directory the
// relay runs with.
package storage

import (
	"context"
	"fmt"

	"github.com/Vasu1712/scenyx-chatsync/internal/models"
	"github.com/Vasu1712/scenyx-chatsync/internal/roomkey"
	"github.com/Vasu1712/scenyx-chatsync/internal/storage/memory"
	"github.com/Vasu1712/scenyx-chatsync/internal/storage/mongo"
	"github.com/Vasu1712/scenyx-chatsync/internal/storage/postgres"
	"github.com/Vasu1712/scenyx-chatsync/internal/storage/valkey"
)

// MessageStore persists room messages. AddMessage assigns the server id;
// GetMessages returns the newest limit messages in insertion order.
type MessageStore interface {
	AddMessage(ctx context.Context, room roomkey.Key, m models.MessageRecord) (models.MessageRecord, error)
	GetMessages(ctx context.Context, room roomkey.Key, limit int) ([]models.MessageRecord, error)
	Close() error
}

// Directory holds the participants allowed to log in.
type Directory interface {
	UpsertParticipant(ctx context.Context, p models.Participant) error
	GetParticipant(ctx context.Context, id models.ParticipantID) (models.Participant, error)
	ListParticipants(ctx context.Context) ([]models.Participant, error)
}

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverValkey   = "valkey"
	DriverMongo    = "mongo"
)

type Options struct {
	Driver        string
	PostgresDSN   string
	ValkeyAddr    string
	MongoURI      string
	MongoDatabase string
}

// Open builds the configured stores. Only the postgres driver persists the
// directory; the others keep it in memory.
func Open(ctx context.Context, opts Options) (MessageStore, Directory, error) {
	switch opts.Driver {
	case "", DriverMemory:
		return memory.NewDMStore(), memory.NewDirectory(), nil
	case DriverPostgres:
		db, err := postgres.Open(ctx, opts.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewDMStore(db), postgres.NewDirectory(db), nil
	case DriverValkey:
		s, err := valkey.Open(ctx, opts.ValkeyAddr)
		if err != nil {
			return nil, nil, err
		}
		return s, memory.NewDirectory(), nil
	case DriverMongo:
		s, err := mongo.Open(ctx, opts.MongoURI, opts.MongoDatabase)
		if err != nil {
			return nil, nil, err
		}
		return s, memory.NewDirectory(), nil
	}
	return nil, nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
}
