package application

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/lms-backend/internal/domain/entity"
	repo "github.com/oksasatya/lms-backend/internal/domain/repository"
	"github.com/oksasatya/lms-backend/pkg/apperror"
	"github.com/oksasatya/lms-backend/pkg/helpers"
)

type Service struct {
	Repo     repo.UserRepository
	Hasher   entity.PasswordHasher
	Redis    redis.Cmdable
	Logger   *logrus.Logger
	CacheTTL time.Duration
}

func NewService(repo repo.UserRepository, hasher entity.PasswordHasher, rdb redis.Cmdable, logger *logrus.Logger, cacheTTL time.Duration) *Service {
	return &Service{
		Repo:     repo,
		Hasher:   hasher,
		Redis:    rdb,
		Logger:   logger,
		CacheTTL: cacheTTL,
	}
}

func profileKey(userID string) string {
	return "user:profile:" + userID
}

// profileGenKey counts saves of a user; a cached profile is only written if
// no save happened since the read began.
func profileGenKey(userID string) string {
	return "user:profile:" + userID + ":gen"
}

func errDuplicateEmail(cause error) error {
	return apperror.Wrap(cause, apperror.KindValidation, "email already exists").
		WithDetails(map[string]string{"email": "already exists"})
}

// Profile is the public view of a user. It never carries the password hash.
type Profile struct {
	ID         string              `json:"id"`
	Name       string              `json:"name"`
	Email      string              `json:"email"`
	Avatar     *entity.Avatar      `json:"avatar,omitempty"`
	Role       string              `json:"role"`
	IsVerified bool                `json:"isVerified"`
	Courses    []entity.Enrollment `json:"courses"`
	CreatedAt  time.Time           `json:"createdAt"`
	UpdatedAt  time.Time           `json:"updatedAt"`
}

func ProfileOf(u *entity.User) Profile {
	courses := u.Enrollments
	if courses == nil {
		courses = []entity.Enrollment{}
	}
	return Profile{
		ID:         u.ID,
		Name:       u.Name,
		Email:      u.Email,
		Avatar:     u.Avatar,
		Role:       u.Role,
		IsVerified: u.IsVerified,
		Courses:    courses,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

// Save writes u through validate, hashIfChanged and persist, in that order.
// A failure in any step leaves the store untouched and u's plain password in
// place, so a retried Save hashes it exactly once.
func (s *Service) Save(ctx context.Context, u *entity.User) error {
	u.ApplyDefaults()
	if err := validateUser(u); err != nil {
		return err
	}

	plain := u.Password
	changed, err := s.hashIfChanged(u)
	if err != nil {
		return err
	}
	if err := s.persist(ctx, u); err != nil {
		if changed {
			u.Password = plain
		}
		return err
	}
	u.MarkPersisted()
	s.evictProfile(ctx, u.ID)
	return nil
}

func (s *Service) hashIfChanged(u *entity.User) (bool, error) {
	if !u.PasswordChanged() {
		return false, nil
	}
	hash, err := s.Hasher.Hash(u.Password)
	if err != nil {
		var sig *apperror.Error
		if errors.As(err, &sig) {
			return false, sig
		}
		return false, apperror.Wrap(err, apperror.KindHashingFailure, "failed to hash password")
	}
	u.Password = hash
	return true, nil
}

func (s *Service) persist(ctx context.Context, u *entity.User) error {
	var err error
	if u.IsNew() {
		err = s.Repo.Create(ctx, u)
	} else {
		err = s.Repo.Update(ctx, u)
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repo.ErrDuplicateEmail):
		return errDuplicateEmail(err)
	case errors.Is(err, repo.ErrNotFound):
		return apperror.NotFound("user not found")
	default:
		return apperror.Unexpected(err)
	}
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Avatar   *entity.Avatar
}

// Register creates a new user. A taken email is reported before any hashing;
// the store's unique constraint still decides races between registrations.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*entity.User, error) {
	switch _, err := s.Repo.GetByEmail(ctx, in.Email); {
	case err == nil:
		return nil, errDuplicateEmail(repo.ErrDuplicateEmail)
	case !errors.Is(err, repo.ErrNotFound):
		return nil, apperror.Unexpected(err)
	}

	u := entity.NewUser(in.Name, in.Email, in.Password)
	u.Avatar = in.Avatar
	if err := s.Save(ctx, u); err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.WithField("user_id", u.ID).Info("user registered")
	}
	return u, nil
}

// GetProfile reads through the profile cache. Cache failures are logged and
// fall back to the store.
func (s *Service) GetProfile(ctx context.Context, userID string) (Profile, error) {
	var gen string
	if s.Redis != nil {
		var p Profile
		found, err := helpers.RedisGetJSON(ctx, s.Redis, profileKey(userID), &p)
		if err != nil {
			s.warnCache(err, userID, "profile cache read failed")
		}
		if found {
			return p, nil
		}
		if gen, err = s.profileGen(ctx, userID); err != nil {
			s.warnCache(err, userID, "profile cache read failed")
		}
	}

	u, err := s.load(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	p := ProfileOf(u)
	if s.Redis != nil && gen != "" {
		if err := s.cacheProfile(ctx, userID, gen, p); err != nil {
			s.warnCache(err, userID, "profile cache write failed")
		}
	}
	return p, nil
}

func (s *Service) profileGen(ctx context.Context, userID string) (string, error) {
	gen, err := s.Redis.Get(ctx, profileGenKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "0", nil
	}
	return gen, err
}

var setIfGenScript = redis.NewScript(`
if (redis.call("GET", KEYS[2]) or "0") ~= ARGV[1] then
  return 0
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 1
`)

// cacheProfile stores p unless the user was saved after gen was read.
func (s *Service) cacheProfile(ctx context.Context, userID, gen string, p Profile) error {
	if s.CacheTTL <= 0 {
		return nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	keys := []string{profileKey(userID), profileGenKey(userID)}
	return setIfGenScript.Run(ctx, s.Redis, keys, gen, b, s.CacheTTL.Milliseconds()).Err()
}

func (s *Service) warnCache(err error, userID, msg string) {
	if s.Logger != nil {
		s.Logger.WithError(err).WithField("user_id", userID).Warn(msg)
	}
}

type UpdateProfileInput struct {
	Name     *string
	Avatar   *entity.Avatar
	Password *string
	// CurrentPassword must match the stored credential when Password is set.
	CurrentPassword string
}

func (s *Service) UpdateProfile(ctx context.Context, userID string, in UpdateProfileInput) (*entity.User, error) {
	u, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if in.Password != nil {
		ok, err := u.ComparePassword(s.Hasher, in.CurrentPassword)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apperror.Unauthorized("current password is incorrect")
		}
		u.Password = *in.Password
	}
	if in.Name != nil {
		u.Name = *in.Name
	}
	if in.Avatar != nil {
		u.Avatar = in.Avatar
	}
	if err := s.Save(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// AddEnrollment enrolls the user in courseID. Enrolling twice is a no-op.
func (s *Service) AddEnrollment(ctx context.Context, userID, courseID string) (*entity.User, error) {
	if courseID == "" {
		return nil, apperror.Validation("validation failed", map[string]string{"courseId": "is required"})
	}
	u, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.Enroll(courseID) {
		return u, nil
	}
	if err := s.Save(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Ping checks the store and, when configured, the cache.
func (s *Service) Ping(ctx context.Context) error {
	if err := s.Repo.Ping(ctx); err != nil {
		return apperror.Wrap(err, apperror.KindUnexpected, "database unavailable")
	}
	if s.Redis != nil {
		if err := s.Redis.Ping(ctx).Err(); err != nil {
			return apperror.Wrap(err, apperror.KindUnexpected, "cache unavailable")
		}
	}
	return nil
}

func (s *Service) load(ctx context.Context, userID string) (*entity.User, error) {
	u, err := s.Repo.GetByID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, apperror.NotFoundf("user %s not found", userID)
	}
	if err != nil {
		return nil, apperror.Unexpected(err)
	}
	return u, nil
}

// evictProfile drops the cached profile and bumps its generation so reads
// already in flight do not write the old version back.
func (s *Service) evictProfile(ctx context.Context, userID string) {
	if s.Redis == nil || userID == "" {
		return
	}
	_, err := s.Redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, profileGenKey(userID))
		// outlives any cached entry
		pipe.Expire(ctx, profileGenKey(userID), 4*s.CacheTTL+time.Hour)
		pipe.Del(ctx, profileKey(userID))
		return nil
	})
	if err != nil {
		s.warnCache(err, userID, "profile cache evict failed")
	}
}
