package helpers

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/oksasatya/lms-backend/pkg/apperror"
	"github.com/oksasatya/lms-backend/pkg/validation"
)

// DefaultPasswordCost is the bcrypt work factor used when none is configured.
const DefaultPasswordCost = 10

// PasswordHasher derives and verifies salted bcrypt hashes.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher returns a hasher using cost, clamped to bcrypt's range.
// A zero cost selects DefaultPasswordCost.
func NewPasswordHasher(cost int) *PasswordHasher {
	switch {
	case cost == 0:
		cost = DefaultPasswordCost
	case cost < bcrypt.MinCost:
		cost = bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		cost = bcrypt.MaxCost
	}
	return &PasswordHasher{cost: cost}
}

func (h *PasswordHasher) Cost() int { return h.cost }

// Hash hashes the plain text password with a fresh random salt.
func (h *PasswordHasher) Hash(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", apperror.Wrap(err, apperror.KindHashingFailure, "failed to hash password")
	}
	return string(b), nil
}

// Verify compares a plain password against a bcrypt hash. A mismatch is a
// negative result, not an error; only a malformed hash fails. Candidates over
// MaxPasswordBytes never match: bcrypt ignores bytes past that point, and no
// stored password can be that long.
func (h *PasswordHasher) Verify(plain, hash string) (bool, error) {
	if len(plain) > validation.MaxPasswordBytes {
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return false, apperror.Wrap(err, apperror.KindInvalidHashFormat, "stored password hash is malformed")
		}
		return false, nil
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, apperror.Wrap(err, apperror.KindInvalidHashFormat, "stored password hash is malformed")
	}
}
