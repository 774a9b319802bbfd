package types

// Role groups permissions shared by a set of users.
type Role struct {
	ID int `json:"id" db:"id"`

	// Name is unique across roles.
	Name string `json:"name" db:"name"`

	// Default marks the role assigned to newly registered users.
	Default bool `json:"default" db:"is_default"`

	// Permissions is a bit set of granted permissions.
	Permissions int `json:"permissions" db:"permissions"`
}
