package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsEmail(t *testing.T) {
	valid := []string{"a@b.co", "jane.doe@example.com", "x+tag@sub.domain.org"}
	invalid := []string{"", "plain", "a@b", "@b.co", "a@.", "a b@c.de", "a@b c.de", "a@@b.co"}

	for _, s := range valid {
		assert.True(t, IsEmail(s), s)
	}
	for _, s := range invalid {
		assert.False(t, IsEmail(s), s)
	}
}

type signup struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,emailpattern"`
	Password string `json:"password" validate:"required,pwd"`
	Website  string `json:"website" validate:"omitempty,url"`
}

func TestStruct_Details(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		err := Struct(signup{Name: "Jane", Email: "jane@example.com", Password: "password123"})
		assert.NoError(t, err)
		assert.Nil(t, ToDetails(err))
	})

	t.Run("messages use json names", func(t *testing.T) {
		details := ToDetails(Struct(signup{Email: "nope", Password: "short", Website: "::"}))
		assert.Equal(t, map[string]string{
			"name":     "is required",
			"email":    "must be a valid email",
			"password": "must be at least 8 characters long",
			"website":  "must be a valid URL",
		}, details)
	})

	t.Run("password byte limit", func(t *testing.T) {
		details := ToDetails(Struct(signup{Name: "Jane", Email: "jane@example.com", Password: strings.Repeat("é", 40)}))
		assert.Equal(t, "must be at most 72 bytes long", details["password"])
	})
}

func TestToDetails_Fallback(t *testing.T) {
	assert.Equal(t, map[string]string{"payload": "invalid payload"}, ToDetails(assert.AnError))
}
