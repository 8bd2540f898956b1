// Package mongo stores direct messages in a MongoDB collection.
package mongo

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/Vasu1712/scenyx-chatsync/internal/models"
	"github.com/Vasu1712/scenyx-chatsync/internal/roomkey"
)

const collectionName = "dm_messages"

type document struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	Room      string        `bson:"room"`
	ClientID  string        `bson:"client_id,omitempty"`
	SenderID  string        `bson:"sender_id"`
	Text      string        `bson:"text"`
	SendDate  string        `bson:"send_date"`
	SendTime  string        `bson:"send_time"`
	CreatedAt time.Time     `bson:"created_at"`
}

func (d document) record() models.MessageRecord {
	return models.MessageRecord{
		ID:       d.ID.Hex(),
		ClientID: d.ClientID,
		Text:     d.Text,
		SendDate: d.SendDate,
		SendTime: d.SendTime,
		SenderID: models.ParticipantID(d.SenderID),
	}
}

type DMStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// Open connects to MongoDB, verifies the connection and ensures the room index.
func Open(ctx context.Context, uri, database string) (*DMStore, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	s := &DMStore{client: client, coll: client.Database(database).Collection(collectionName)}
	index := mongo.IndexModel{Keys: bson.D{{Key: "room", Value: 1}, {Key: "_id", Value: -1}}}
	if _, err := s.coll.Indexes().CreateOne(ctx, index); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to create room index: %w", err)
	}

	log.Info().Str("database", database).Msg("connected to MongoDB")
	return s, nil
}

func (s *DMStore) AddMessage(ctx context.Context, room roomkey.Key, m models.MessageRecord) (models.MessageRecord, error) {
	doc := document{
		Room:      string(room),
		ClientID:  m.ClientID,
		SenderID:  string(m.SenderID),
		Text:      m.Text,
		SendDate:  m.SendDate,
		SendTime:  m.SendTime,
		CreatedAt: time.Now(),
	}
	res, err := s.coll.InsertOne(ctx, doc)
	if err != nil {
		return models.MessageRecord{}, fmt.Errorf("add message to %s: %w", room, err)
	}
	id, ok := res.InsertedID.(bson.ObjectID)
	if !ok {
		return models.MessageRecord{}, fmt.Errorf("add message to %s: unexpected id type %T", room, res.InsertedID)
	}
	doc.ID = id
	return doc.record(), nil
}

// GetMessages fetches the newest limit messages newest-first and reverses them
// so callers get insertion order.
func (s *DMStore) GetMessages(ctx context.Context, room roomkey.Key, limit int) ([]models.MessageRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := s.coll.Find(ctx, bson.M{"room": string(room)}, opts)
	if err != nil {
		return nil, fmt.Errorf("get messages for %s: %w", room, err)
	}
	var docs []document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode messages for %s: %w", room, err)
	}

	msgs := make([]models.MessageRecord, 0, len(docs))
	for _, d := range docs {
		msgs = append(msgs, d.record())
	}
	slices.Reverse(msgs)
	return msgs, nil
}

func (s *DMStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
