package models

import (
	"time"

	"makerhub/b2b/internal/utils"
)

// Role classifies a principal for authorization purposes.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleBuyer, RoleSeller, RoleAdmin:
		return true
	}
	return false
}

// User represents a marketplace account. Authentication and profile management
// live in the identity service; this core reads display data and notification
// routing only.
type User struct {
	Base        `bson:",inline"`
	Name        string         `bson:"name" json:"name"`
	Email       string         `bson:"email" json:"email"`
	Role        Role           `bson:"role" json:"role"`
	CompanyID   *utils.ShortID `bson:"company_id,omitempty" json:"company_id,omitempty"`
	CompanyName string         `bson:"company_name,omitempty" json:"company_name,omitempty"`
	UpdatedAt   time.Time      `bson:"updated_at" json:"updated_at"`
	CreatedAt   time.Time      `bson:"created_at" json:"created_at"`
	Deleted     bool           `bson:"deleted" json:"-"` // Soft delete flag
}

// Principal is the acting identity resolved from the request's credentials
// (the Identity Context). A zero UserID means unauthenticated.
type Principal struct {
	UserID    utils.ShortID  `json:"user_id"`
	Role      Role           `json:"role"`
	CompanyID *utils.ShortID `json:"company_id,omitempty"`
}

// IsZero reports whether no identity was resolved.
func (p Principal) IsZero() bool {
	return p.UserID.IsZero()
}

// IsAdmin reports whether the principal carries the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}
