package application

import (
	"github.com/oksasatya/lms-backend/internal/domain/entity"
	"github.com/oksasatya/lms-backend/pkg/apperror"
	"github.com/oksasatya/lms-backend/pkg/validation"
)

type userRules struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,emailpattern"`
}

// checked only while the password still holds a plain value
type passwordRules struct {
	Password string `json:"password" validate:"required,pwd"`
}

func validateUser(u *entity.User) error {
	details := map[string]string{}
	for k, v := range validation.ToDetails(validation.Struct(userRules{Name: u.Name, Email: u.Email})) {
		details[k] = v
	}
	if u.PasswordChanged() {
		for k, v := range validation.ToDetails(validation.Struct(passwordRules{Password: u.Password})) {
			details[k] = v
		}
	}
	if len(details) > 0 {
		return apperror.Validation("validation failed", details)
	}
	return nil
}
