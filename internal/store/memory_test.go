package store

import (
	"context"
	"testing"

	"github.com/ghusn/apiserver/internal/autherr"
	"github.com/ghusn/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryUserRepository_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository()

	created, err := repo.Create(ctx, types.User{Email: "a@x.com", Username: "alice"})
	require.NoError(t, err)
	assert.Equal(t, 1, created.ID)

	byEmail, err := repo.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)

	byName, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byName.ID)

	_, err = repo.GetByEmail(ctx, "A@x.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryUserRepository_Uniqueness(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository()

	_, err := repo.Create(ctx, types.User{Email: "a@x.com", Username: "alice"})
	require.NoError(t, err)
	_, err = repo.Create(ctx, types.User{Email: "b@x.com", Username: "bob"})
	require.NoError(t, err)

	_, err = repo.Create(ctx, types.User{Email: "a@x.com", Username: "carol"})
	assert.ErrorIs(t, err, autherr.ErrEmailAlreadyExists)

	_, err = repo.Create(ctx, types.User{Email: "c@x.com", Username: "alice"})
	assert.ErrorIs(t, err, autherr.ErrUsernameAlreadyExists)

	_, err = repo.Create(ctx, types.User{Email: "b@x.com", Username: "alice"})
	assert.ErrorIs(t, err, autherr.ErrEmailAlreadyExists, "email collision takes priority")

	bob, err := repo.GetByUsername(ctx, "bob")
	require.NoError(t, err)
	bob.Email = "a@x.com"
	_, err = repo.Update(ctx, bob)
	assert.ErrorIs(t, err, autherr.ErrEmailAlreadyExists)
}

func TestMemoryUserRepository_UpdateReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository()
	roleID := 3

	created, err := repo.Create(ctx, types.User{Email: "a@x.com", Username: "alice", RoleID: &roleID})
	require.NoError(t, err)

	*created.RoleID = 9
	stored, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, *stored.RoleID)

	stored.Confirmed = true
	updated, err := repo.Update(ctx, stored)
	require.NoError(t, err)
	assert.True(t, updated.Confirmed)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)

	_, err = repo.Update(ctx, types.User{ID: 42})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRoleRepository_GetDefault(t *testing.T) {
	ctx := context.Background()

	_, err := NewMemoryRoleRepository().GetDefault(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	repo := NewMemoryRoleRepository(
		types.Role{ID: 1, Name: "Admin"},
		types.Role{ID: 2, Name: "User", Default: true},
	)
	role, err := repo.GetDefault(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, role.ID)
}
