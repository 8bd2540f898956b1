package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"

	"github.com/Vasu1712/scenyx-chatsync/internal/models"
	"github.com/Vasu1712/scenyx-chatsync/internal/roomkey"
)

const schema = `
CREATE TABLE IF NOT EXISTS dm_messages (
	id         BIGSERIAL PRIMARY KEY,
	room       TEXT NOT NULL,
	client_id  TEXT NOT NULL DEFAULT '',
	sender_id  TEXT NOT NULL,
	content    TEXT NOT NULL,
	send_date  TEXT NOT NULL DEFAULT '',
	send_time  TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS dm_messages_room_id_idx ON dm_messages (room, id);

CREATE TABLE IF NOT EXISTS participants (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	role          TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL DEFAULT '',
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// Open connects to PostgreSQL and creates the tables if they are missing.
func Open(ctx context.Context, dataSourceName string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	log.Info().Msg("connected to PostgreSQL")
	return db, nil
}

// DMStore persists direct messages in PostgreSQL.
type DMStore struct {
	db *sql.DB
}

func NewDMStore(db *sql.DB) *DMStore {
	return &DMStore{db: db}
}

// AddMessage inserts m into room and returns it with its server id.
func (s *DMStore) AddMessage(ctx context.Context, room roomkey.Key, m models.MessageRecord) (models.MessageRecord, error) {
	query := `
		INSERT INTO dm_messages (room, client_id, sender_id, content, send_date, send_time)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	var id int64
	err := s.db.QueryRowContext(ctx, query,
		string(room), m.ClientID, string(m.SenderID), m.Text, m.SendDate, m.SendTime,
	).Scan(&id)
	if err != nil {
		return models.MessageRecord{}, fmt.Errorf("add message to %s: %w", room, err)
	}

	m.ID = strconv.FormatInt(id, 10)
	m.IsMine = false
	log.Debug().Str("room", string(room)).Str("id", m.ID).Msg("message stored")
	return m, nil
}

// GetMessages returns the newest limit messages of room in insertion order.
func (s *DMStore) GetMessages(ctx context.Context, room roomkey.Key, limit int) ([]models.MessageRecord, error) {
	query := `
		SELECT id, client_id, sender_id, content, send_date, send_time FROM (
			SELECT id, client_id, sender_id, content, send_date, send_time
			FROM dm_messages
			WHERE room = $1
			ORDER BY id DESC
			LIMIT $2
		) recent
		ORDER BY id ASC
	`
	var n sql.NullInt64
	if limit > 0 {
		n = sql.NullInt64{Int64: int64(limit), Valid: true}
	}

	rows, err := s.db.QueryContext(ctx, query, string(room), n)
	if err != nil {
		return nil, fmt.Errorf("get messages for %s: %w", room, err)
	}
	defer rows.Close()

	msgs := []models.MessageRecord{}
	for rows.Next() {
		var (
			id     int64
			m      models.MessageRecord
			sender string
		)
		if err := rows.Scan(&id, &m.ClientID, &sender, &m.Text, &m.SendDate, &m.SendTime); err != nil {
			return nil, fmt.Errorf("scan message for %s: %w", room, err)
		}
		m.ID = strconv.FormatInt(id, 10)
		m.SenderID = models.ParticipantID(sender)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages for %s: %w", room, err)
	}
	return msgs, nil
}

// Close closes the database connection.
func (s *DMStore) Close() error {
	return s.db.Close()
}
