package repository

import (
	"context"
	"errors"

	"github.com/oksasatya/lms-backend/internal/domain/entity"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEmail = errors.New("email already exists")
)

// UserRepository defines the interface for user-related database operations.
// Create and Update set ID and timestamps on u. Both must reject a duplicate
// email with ErrDuplicateEmail through a store-level unique constraint.
type UserRepository interface {
	Create(ctx context.Context, u *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	Update(ctx context.Context, u *entity.User) error
	Ping(ctx context.Context) error
}
