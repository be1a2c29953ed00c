package domain

import "time"

// Role enumerates the kinds of accounts in the system.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
	RoleClient   Role = "client"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleOperator, RoleClient:
		return true
	default:
		return false
	}
}

// User is an admin, operator or client account. Operators and clients may
// reference the admin that owns them through AdminID.
type User struct {
	ID             int64
	Username       string
	Email          string
	Phone          string
	PasswordHash   string
	Role           Role
	AdminID        *int64
	Specialization string
	IsActive       bool
	CreatedAt      time.Time
}

// OwnedBy reports whether the user belongs to the given admin.
func (u *User) OwnedBy(adminID int64) bool {
	return u != nil && u.AdminID != nil && *u.AdminID == adminID
}
