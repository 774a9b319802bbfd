package store

import (
	"errors"

	"github.com/ghusn/apiserver/internal/autherr"
	"github.com/lib/pq"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

const (
	uniqueViolation = "23505"

	usersEmailKey    = "users_email_key"
	usersUsernameKey = "users_username_key"
)

// mapUniqueViolation turns a unique-index violation on users into the
// matching registration error. Other errors are returned unchanged.
func mapUniqueViolation(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return err
	}
	switch pqErr.Constraint {
	case usersEmailKey:
		return autherr.Wrap(autherr.EmailAlreadyExists, err)
	case usersUsernameKey:
		return autherr.Wrap(autherr.UsernameAlreadyExists, err)
	default:
		return err
	}
}
