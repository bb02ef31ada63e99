package model

import "time"

// Role is the kind of account a user signs in with.
type Role string

const (
	RoleClient   Role = "client"
	RoleBusiness Role = "business"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleClient || r == RoleBusiness
}

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}
