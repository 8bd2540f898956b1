// Package auth issues and verifies participant tokens.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/Vasu1712/scenyx-chatsync/internal/models"
)

// Manager signs and validates the HS256 tokens handed out at login.
type Manager struct {
	secret   []byte
	duration time.Duration
	now      func() time.Time
}

// Claims is the token payload.
type Claims struct {
	ParticipantID models.ParticipantID `json:"pid"`
	jwt.RegisteredClaims
}

func NewManager(secret string, duration time.Duration) *Manager {
	return &Manager{secret: []byte(secret), duration: duration, now: time.Now}
}

// Issue returns a signed token for id and its expiry.
func (m *Manager) Issue(id models.ParticipantID) (string, time.Time, error) {
	now := m.now()
	expiresAt := now.Add(m.duration)
	claims := &Claims{
		ParticipantID: id,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(id),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify parses tokenString and returns the participant it was issued for.
func (m *Manager) Verify(tokenString string) (models.ParticipantID, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", models.ErrUnauthorized, err)
	}
	if !token.Valid {
		return "", fmt.Errorf("%w: invalid token", models.ErrUnauthorized)
	}

	id, err := models.ParseParticipantID(string(claims.ParticipantID))
	if err != nil {
		return "", fmt.Errorf("%w: %w", models.ErrUnauthorized, err)
	}
	return id, nil
}
