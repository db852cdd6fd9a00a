package model

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleDonor    Role = "donor"
	RoleHospital Role = "hospital"
)

func (r Role) Valid() bool {
	return r == RoleDonor || r == RoleHospital
}

// User represents an account. Role is fixed at signup.
type User struct {
	ID               uuid.UUID `json:"id" db:"id"`
	Email            string    `json:"email" db:"email"`
	PasswordHash     string    `json:"-" db:"password_hash"`
	Role             Role      `json:"role" db:"role"`
	ProfileCompleted bool      `json:"profile_completed" db:"profile_completed"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// Actor is the verified caller of an operation.
type Actor struct {
	UserID uuid.UUID
	Role   Role
}
