package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/Vasu1712/scenyx-chatsync/internal/models"
)

var errEmptyPassword = errors.New("password is empty")

// HashPassword returns a bcrypt hash of password.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errEmptyPassword
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// CheckPassword reports ErrUnauthorized unless password matches hash.
func CheckPassword(hash, password string) error {
	if hash == "" {
		return fmt.Errorf("%w: no password set", models.ErrUnauthorized)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return fmt.Errorf("%w: %w", models.ErrUnauthorized, err)
	}
	return nil
}
