package auth

import (
	"errors"

	"github.com/go-playground/validator/v10"

	"github.com/five82/marquee/internal/apperr"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoginForm is what the user enters to sign in.
type LoginForm struct {
	Username string `validate:"min=8"`
	Password string `validate:"min=8"`
}

// RegisterForm is what the user enters to create an account.
type RegisterForm struct {
	Username             string `validate:"min=8"`
	Password             string `validate:"min=8,containsany=ABCDEFGHIJKLMNOPQRSTUVWXYZ,containsany=0123456789"`
	PasswordConfirmation string `validate:"eqfield=Password"`
}

// Validate checks the form locally and returns a validation error naming
// the first problem.
func (f LoginForm) Validate() error {
	return formError(validate.Struct(f))
}

// Validate checks the form locally and returns a validation error naming
// the first problem.
func (f RegisterForm) Validate() error {
	return formError(validate.Struct(f))
}

func formError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperr.New(apperr.KindValidation, err.Error())
	}
	fe := verrs[0]
	return apperr.New(apperr.KindValidation, fieldMessage(fe.Field(), fe.Tag(), fe.Param()))
}

func fieldMessage(field, tag, param string) string {
	switch tag {
	case "min":
		return field + " must be at least " + param + " characters"
	case "containsany":
		if param == "0123456789" {
			return field + " must contain at least one digit"
		}
		return field + " must contain at least one uppercase letter"
	case "eqfield":
		return "Passwords do not match"
	default:
		return field + " is invalid"
	}
}
