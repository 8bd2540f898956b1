package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/Vasu1712/scenyx-chatsync/internal/models"
)

// Directory is the participant directory backed by the participants table.
type Directory struct {
	db *sql.DB
}

func NewDirectory(db *sql.DB) *Directory {
	return &Directory{db: db}
}

func (d *Directory) UpsertParticipant(ctx context.Context, p models.Participant) error {
	id, err := models.ParseParticipantID(string(p.ID))
	if err != nil {
		return err
	}
	query := `
		INSERT INTO participants (id, name, role, password_hash)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, role = EXCLUDED.role,
			password_hash = EXCLUDED.password_hash, updated_at = NOW()
	`
	if _, err := d.db.ExecContext(ctx, query, string(id), p.Name, p.Role, p.PasswordHash); err != nil {
		return fmt.Errorf("upsert participant %s: %w", id, err)
	}
	log.Debug().Str("participant", string(id)).Msg("participant upserted")
	return nil
}

func (d *Directory) GetParticipant(ctx context.Context, id models.ParticipantID) (models.Participant, error) {
	p := models.Participant{}
	var pid string
	query := `SELECT id, name, role, password_hash FROM participants WHERE id = $1`
	err := d.db.QueryRowContext(ctx, query, string(id)).Scan(&pid, &p.Name, &p.Role, &p.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Participant{}, fmt.Errorf("participant %q: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return models.Participant{}, fmt.Errorf("get participant %s: %w", id, err)
	}
	p.ID = models.ParticipantID(pid)
	return p, nil
}

// ListParticipants returns every participant ordered by id.
func (d *Directory) ListParticipants(ctx context.Context) ([]models.Participant, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id, name, role FROM participants ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var out []models.Participant
	for rows.Next() {
		var (
			p  models.Participant
			id string
		)
		if err := rows.Scan(&id, &p.Name, &p.Role); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		p.ID = models.ParticipantID(id)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participants: %w", err)
	}
	return out, nil
}
