// Package roomkey derives the canonical room key for a two-party conversation.
package roomkey

import (
	"fmt"
	"strings"

	"github.com/Vasu1712/scenyx-chatsync/internal/models"
)

// Key identifies the unordered pair of participants of a conversation.
type Key string

func (k Key) String() string { return string(k) }

// Derive returns the same key for (a, b) and (b, a). Both ids must be valid and
// distinct.
func Derive(a, b models.ParticipantID) (Key, error) {
	ca, err := models.ParseParticipantID(string(a))
	if err != nil {
		return "", err
	}
	cb, err := models.ParseParticipantID(string(b))
	if err != nil {
		return "", err
	}
	if ca == cb {
		return "", fmt.Errorf("%w: self-conversation %q", models.ErrInvalidParticipant, ca)
	}

	// byte-wise, locale independent
	if cb < ca {
		ca, cb = cb, ca
	}
	return Key(string(ca) + models.RoomSeparator + string(cb)), nil
}

// Split returns the two participants of k in key order.
func Split(k Key) (models.ParticipantID, models.ParticipantID, error) {
	left, right, ok := strings.Cut(string(k), models.RoomSeparator)
	if !ok {
		return "", "", fmt.Errorf("%w: malformed room key %q", models.ErrInvalidParticipant, k)
	}
	a, err := models.ParseParticipantID(left)
	if err != nil {
		return "", "", err
	}
	b, err := models.ParseParticipantID(right)
	if err != nil {
		return "", "", err
	}
	if canonical, err := Derive(a, b); err != nil || canonical != k {
		return "", "", fmt.Errorf("%w: non-canonical room key %q", models.ErrInvalidParticipant, k)
	}
	return a, b, nil
}

// Contains reports whether id is one of the two participants of k.
func Contains(k Key, id models.ParticipantID) bool {
	a, b, err := Split(k)
	if err != nil {
		return false
	}
	return id == a || id == b
}

// Counterpart returns the participant of k that is not self.
func Counterpart(k Key, self models.ParticipantID) (models.ParticipantID, error) {
	a, b, err := Split(k)
	if err != nil {
		return "", err
	}
	switch self {
	case a:
		return b, nil
	case b:
		return a, nil
	}
	return "", fmt.Errorf("%w: %q is not a member of %q", models.ErrInvalidParticipant, self, k)
}
