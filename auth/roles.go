package auth

import "slices"

// UserRole is the user's role
type UserRole = string

const (
	// RoleUser is the default role given on registration
	RoleUser UserRole = "user"
	// RoleAdmin can act on any task and manage accounts
	RoleAdmin UserRole = "admin"
)

// IsValidRole checks if the role is one of the predefined roles
func IsValidRole(r UserRole) bool {
	return slices.Contains(GetAllRoles(), r)
}

// GetAllRoles returns all predefined roles
func GetAllRoles() []UserRole {
	return []UserRole{
		RoleUser,
		RoleAdmin,
	}
}

// ParseRole safely parses a string into a UserRole type
func ParseRole(roleStr string) (UserRole, bool) {
	role := UserRole(roleStr)
	return role, IsValidRole(role)
}

// HasAnyRole reports whether role is in allowed. An empty allowed
// list matches nothing.
func HasAnyRole(role UserRole, allowed ...UserRole) bool {
	return slices.Contains(allowed, role)
}
