package services

import (
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_.]*$`)

// Field rules shared by the HTTP layer and the service.
var (
	EmailRules = []validation.Rule{
		validation.Required,
		validation.Length(1, 64),
		is.Email,
	}
	UsernameRules = []validation.Rule{
		validation.Required,
		validation.Length(3, 36),
		validation.Match(usernamePattern).
			Error("must start with a letter and contain only letters, digits, dots or underscores"),
	}
	PasswordRules = []validation.Rule{
		validation.Required,
		validation.Length(6, 0),
	}
)

func validEmail(email string) bool {
	return validation.Validate(email, EmailRules...) == nil
}
