package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

var (
	ErrInvalidParticipant = errors.New("invalid participant")
	ErrMalformedMessage   = errors.New("malformed message")
	ErrEmptyMessage       = errors.New("message text is empty")
)

// RoomSeparator joins the two ids of a room key. Valid ids never contain it.
const RoomSeparator = ":"

// ParticipantID identifies a directory entry (staff or admin) in its canonical
// textual form. Integer ids are kept as their decimal representation.
type ParticipantID string

// ParseParticipantID coerces a string or integer id into canonical form.
func ParseParticipantID(v any) (ParticipantID, error) {
	var s string
	switch id := v.(type) {
	case nil:
		return "", fmt.Errorf("%w: missing id", ErrInvalidParticipant)
	case ParticipantID:
		s = string(id)
	case string:
		s = id
	case int:
		s = strconv.Itoa(id)
	case int32:
		s = strconv.FormatInt(int64(id), 10)
	case int64:
		s = strconv.FormatInt(id, 10)
	case uint:
		s = strconv.FormatUint(uint64(id), 10)
	case uint32:
		s = strconv.FormatUint(uint64(id), 10)
	case uint64:
		s = strconv.FormatUint(id, 10)
	case float64:
		if id != math.Trunc(id) || math.IsInf(id, 0) || math.IsNaN(id) {
			return "", fmt.Errorf("%w: non-integral id %v", ErrInvalidParticipant, id)
		}
		s = strconv.FormatInt(int64(id), 10)
	case json.Number:
		n, err := id.Int64()
		if err != nil {
			return "", fmt.Errorf("%w: non-integral id %s", ErrInvalidParticipant, id)
		}
		s = strconv.FormatInt(n, 10)
	default:
		return "", fmt.Errorf("%w: unsupported id type %T", ErrInvalidParticipant, v)
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%w: empty id", ErrInvalidParticipant)
	}
	if strings.Contains(s, RoomSeparator) || strings.IndexFunc(s, unicode.IsSpace) >= 0 {
		return "", fmt.Errorf("%w: %q contains reserved characters", ErrInvalidParticipant, s)
	}
	return ParticipantID(s), nil
}

func (p ParticipantID) String() string { return string(p) }

// Valid reports whether p is already in canonical form.
func (p ParticipantID) Valid() bool {
	c, err := ParseParticipantID(string(p))
	return err == nil && c == p
}

// UnmarshalJSON accepts both numeric and string ids.
func (p *ParticipantID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*p = ""
		return nil
	}
	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	id, err := ParseParticipantID(raw)
	if err != nil {
		return err
	}
	*p = id
	return nil
}

// MessageRecord is the canonical message shape shared by history, live pushes
// and optimistic sends. IsMine is derived locally and never read off the wire.
type MessageRecord struct {
	ID       string        `json:"id,omitempty"`
	ClientID string        `json:"client_id,omitempty"`
	Text     string        `json:"text"`
	SendDate string        `json:"send_date"`
	SendTime string        `json:"send_time"`
	SenderID ParticipantID `json:"sender_id"`
	IsMine   bool          `json:"-"`
}

// NewMessageRecord validates and normalizes raw at an ingestion boundary and
// derives IsMine relative to local.
func NewMessageRecord(raw MessageRecord, local ParticipantID) (MessageRecord, error) {
	sender, err := ParseParticipantID(string(raw.SenderID))
	if err != nil {
		return MessageRecord{}, fmt.Errorf("message sender: %w", err)
	}
	if strings.TrimSpace(raw.Text) == "" {
		return MessageRecord{}, fmt.Errorf("%w: empty text", ErrMalformedMessage)
	}

	return MessageRecord{
		ID:       strings.TrimSpace(raw.ID),
		ClientID: strings.TrimSpace(raw.ClientID),
		Text:     raw.Text,
		SendDate: strings.TrimSpace(raw.SendDate),
		SendTime: strings.TrimSpace(raw.SendTime),
		SenderID: sender,
		IsMine:   local != "" && sender == local,
	}, nil
}

// SameMessage reports whether a and b describe the same message, preferring the
// server id, then the sender's correlation id, then content.
func SameMessage(a, b MessageRecord) bool {
	if a.ID != "" && b.ID != "" {
		return a.ID == b.ID
	}
	if a.ClientID != "" && b.ClientID != "" {
		return a.ClientID == b.ClientID
	}
	return a.SenderID == b.SenderID && a.Text == b.Text &&
		a.SendDate == b.SendDate && a.SendTime == b.SendTime
}

// Participant is a directory entry.
type Participant struct {
	ID     ParticipantID `json:"id"`
	Name   string        `json:"name"`
	Role   string        `json:"role,omitempty"`
	Online bool          `json:"online"`

	PasswordHash string `json:"-"`
}

// Directory is the directory listing as seen by one participant.
type Directory struct {
	Self    ParticipantID `json:"self"`
	Entries []Participant `json:"entries"`
}
