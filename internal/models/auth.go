package models

import (
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
)

type LoginRequest struct {
	ID       ParticipantID `json:"id"`
	Password string        `json:"password"`
}

type LoginResponse struct {
	Token       string      `json:"token"`
	ExpiresAt   time.Time   `json:"expires_at"`
	Participant Participant `json:"participant"`
}
