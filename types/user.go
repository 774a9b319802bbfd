package types

import "time"

// User represents an account in the system.
type User struct {
	// ID is the unique identifier of the user, immutable once assigned.
	ID int `json:"id" db:"id"`

	// Email is the unique login key and notification address.
	Email string `json:"email" db:"email"`

	// Username is the unique public handle chosen by the user.
	Username string `json:"username" db:"username"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// Confirmed reports whether the user proved control of Email.
	// It only ever moves from false to true.
	Confirmed bool `json:"confirmed" db:"confirmed"`

	// RoleID references the user's role, if any.
	RoleID *int `json:"role_id,omitempty" db:"role_id"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
