package entity

import (
	"time"
)

// RoleUser is the role assigned to newly registered users.
const RoleUser = "user"

// Avatar references an image hosted elsewhere.
type Avatar struct {
	PublicID string `json:"public_id"`
	URL      string `json:"url"`
}

// Enrollment links a user to a course.
type Enrollment struct {
	CourseID string `json:"courseId"`
}

// PasswordHasher derives and verifies password hashes.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) (bool, error)
}

// User is the aggregate root for user domain
// Passwords are stored as bcrypt hashes in Password field; a plain value only
// lives in memory between assignment and the next save.
type User struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Email       string       `json:"email"`
	Password    string       `json:"-"`
	Avatar      *Avatar      `json:"avatar,omitempty"`
	Role        string       `json:"role"`
	IsVerified  bool         `json:"isVerified"`
	Enrollments []Enrollment `json:"courses"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`

	// last value written to the store; empty until the first save
	persistedPassword string
}

// NewUser returns an unsaved user with defaults applied.
func NewUser(name, email, password string) *User {
	return &User{
		Name:        name,
		Email:       email,
		Password:    password,
		Role:        RoleUser,
		Enrollments: []Enrollment{},
	}
}

// ApplyDefaults fills zero-valued defaulted fields.
func (u *User) ApplyDefaults() {
	if u.Role == "" {
		u.Role = RoleUser
	}
	if u.Enrollments == nil {
		u.Enrollments = []Enrollment{}
	}
}

// IsNew reports whether the user has never been persisted.
func (u *User) IsNew() bool { return u.ID == "" }

// PasswordChanged reports whether Password differs from the last persisted value.
func (u *User) PasswordChanged() bool {
	return u.IsNew() || u.Password != u.persistedPassword
}

// MarkPersisted records the current Password as the stored one. Stores call it
// after loading a user and the save path calls it after a successful write.
func (u *User) MarkPersisted() {
	u.persistedPassword = u.Password
}

// ComparePassword checks candidate against the stored hash.
func (u *User) ComparePassword(h PasswordHasher, candidate string) (bool, error) {
	return h.Verify(candidate, u.Password)
}

// Enroll adds courseID once; it returns false when already enrolled.
func (u *User) Enroll(courseID string) bool {
	for _, e := range u.Enrollments {
		if e.CourseID == courseID {
			return false
		}
	}
	u.Enrollments = append(u.Enrollments, Enrollment{CourseID: courseID})
	return true
}
