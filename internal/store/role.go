package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/ghusn/apiserver/types"
)

// RoleRepository handles persistence for roles.
type RoleRepository struct {
	db *sql.DB
}

func NewRoleRepository(db *sql.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

// GetDefault returns the role assigned to new users.
func (r *RoleRepository) GetDefault(ctx context.Context) (types.Role, error) {
	const query = `
		SELECT id, name, is_default, permissions
		FROM roles
		WHERE is_default
		ORDER BY id
		LIMIT 1`
	var role types.Role
	err := r.db.QueryRowContext(ctx, query).Scan(
		&role.ID,
		&role.Name,
		&role.Default,
		&role.Permissions,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Role{}, ErrNotFound
		}
		return types.Role{}, err
	}
	return role, nil
}
