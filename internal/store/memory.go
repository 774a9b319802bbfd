package store

import (
	"context"
	"sync"
	"time"

	"github.com/ghusn/apiserver/internal/autherr"
	"github.com/ghusn/apiserver/types"
)

// MemoryUserRepository keeps users in process memory. It enforces the same
// email and username uniqueness as the users table.
type MemoryUserRepository struct {
	mu     sync.RWMutex
	nextID int
	users  map[int]types.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		nextID: 1,
		users:  make(map[int]types.User),
	}
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id int) (types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return types.User{}, ErrNotFound
	}
	return cloneUser(user), nil
}

func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (types.User, error) {
	return r.find(func(u types.User) bool { return u.Email == email })
}

func (r *MemoryUserRepository) GetByUsername(_ context.Context, username string) (types.User, error) {
	return r.find(func(u types.User) bool { return u.Username == username })
}

func (r *MemoryUserRepository) find(match func(types.User) bool) (types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, user := range r.users {
		if match(user) {
			return cloneUser(user), nil
		}
	}
	return types.User{}, ErrNotFound
}

func (r *MemoryUserRepository) Create(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkUnique(user); err != nil {
		return types.User{}, err
	}

	now := time.Now()
	user.ID = r.nextID
	user.CreatedAt = now
	user.UpdatedAt = now
	r.nextID++

	r.users[user.ID] = cloneUser(user)
	return cloneUser(user), nil
}

func (r *MemoryUserRepository) Update(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.users[user.ID]
	if !ok {
		return types.User{}, ErrNotFound
	}
	if err := r.checkUnique(user); err != nil {
		return types.User{}, err
	}

	user.CreatedAt = existing.CreatedAt
	user.UpdatedAt = time.Now()
	r.users[user.ID] = cloneUser(user)
	return cloneUser(user), nil
}

// checkUnique must be called with r.mu held.
func (r *MemoryUserRepository) checkUnique(user types.User) error {
	usernameTaken := false
	for id, other := range r.users {
		if id == user.ID {
			continue
		}
		if other.Email == user.Email {
			return autherr.New(autherr.EmailAlreadyExists)
		}
		if other.Username == user.Username {
			usernameTaken = true
		}
	}
	if usernameTaken {
		return autherr.New(autherr.UsernameAlreadyExists)
	}
	return nil
}

func cloneUser(user types.User) types.User {
	if user.RoleID != nil {
		id := *user.RoleID
		user.RoleID = &id
	}
	return user
}

// MemoryRoleRepository serves a fixed set of roles.
type MemoryRoleRepository struct {
	roles []types.Role
}

func NewMemoryRoleRepository(roles ...types.Role) *MemoryRoleRepository {
	return &MemoryRoleRepository{roles: roles}
}

func (r *MemoryRoleRepository) GetDefault(_ context.Context) (types.Role, error) {
	for _, role := range r.roles {
		if role.Default {
			return role, nil
		}
	}
	return types.Role{}, ErrNotFound
}
