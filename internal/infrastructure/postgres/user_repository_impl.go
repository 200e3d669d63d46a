package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oksasatya/lms-backend/internal/domain/entity"
	"github.com/oksasatya/lms-backend/internal/domain/repository"
)

const (
	codeUniqueViolation           = "23505"
	codeInvalidTextRepresentation = "22P02"
)

const userColumns = `id::text, name, email, password_hash, avatar_public_id, avatar_url,
	role, is_verified, courses, created_at, updated_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) Create(ctx context.Context, u *entity.User) error {
	courses, err := json.Marshal(u.Enrollments)
	if err != nil {
		return err
	}
	publicID, url := avatarColumns(u.Avatar)

	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (name, email, password_hash, avatar_public_id, avatar_url, role, is_verified, courses)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb)
		RETURNING id::text, created_at, updated_at
	`, u.Name, u.Email, u.Password, publicID, url, u.Role, u.IsVerified, string(courses))

	if err := row.Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return mapError(err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1::uuid`, id)
	return scanUser(row)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func (r *UserRepository) Update(ctx context.Context, u *entity.User) error {
	courses, err := json.Marshal(u.Enrollments)
	if err != nil {
		return err
	}
	publicID, url := avatarColumns(u.Avatar)

	row := r.pool.QueryRow(ctx, `
		UPDATE users
		SET name = $1, email = $2, password_hash = $3, avatar_public_id = $4, avatar_url = $5,
			role = $6, is_verified = $7, courses = $8::jsonb, updated_at = now()
		WHERE id = $9::uuid
		RETURNING updated_at
	`, u.Name, u.Email, u.Password, publicID, url, u.Role, u.IsVerified, string(courses), u.ID)

	if err := row.Scan(&u.UpdatedAt); err != nil {
		return mapError(err)
	}
	return nil
}

func (r *UserRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func scanUser(row pgx.Row) (*entity.User, error) {
	u := &entity.User{}
	var publicID, url *string
	var courses []byte

	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Password, &publicID, &url,
		&u.Role, &u.IsVerified, &courses, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, mapError(err)
	}
	if publicID != nil || url != nil {
		u.Avatar = &entity.Avatar{PublicID: deref(publicID), URL: deref(url)}
	}
	if len(courses) > 0 {
		if err := json.Unmarshal(courses, &u.Enrollments); err != nil {
			return nil, err
		}
	}
	u.ApplyDefaults()
	u.MarkPersisted()
	return u, nil
}

// mapError translates driver errors into repository sentinels.
func mapError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return repository.ErrDuplicateEmail
		case codeInvalidTextRepresentation:
			// malformed uuid in a lookup
			return repository.ErrNotFound
		}
	}
	return err
}

func avatarColumns(a *entity.Avatar) (*string, *string) {
	if a == nil {
		return nil, nil
	}
	return &a.PublicID, &a.URL
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

var _ repository.UserRepository = (*UserRepository)(nil)
