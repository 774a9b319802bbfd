package services

import (
	"context"

	"github.com/ghusn/apiserver/internal/mail"
	"github.com/ghusn/apiserver/types"
)

// UserRepository defines persistence operations for users. Lookups return
// store.ErrNotFound when nothing matches; Create and Update report unique
// email and username violations as autherr registration errors.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
}

// RoleRepository resolves the role assigned to new accounts.
type RoleRepository interface {
	GetDefault(ctx context.Context) (types.Role, error)
}

// Notifier queues an email. It returns immediately; delivery failures are
// handled by the notifier and never reported back.
type Notifier interface {
	Notify(ctx context.Context, n mail.Notification)
}

func (s *AccountService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *AccountService) GetByEmail(ctx context.Context, email string) (types.User, error) {
	return s.users.GetByEmail(ctx, email)
}

func (s *AccountService) GetByUsername(ctx context.Context, username string) (types.User, error) {
	return s.users.GetByUsername(ctx, username)
}
