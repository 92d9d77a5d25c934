package domain

import "strings"

// Role is the authorization level of an actor.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// ParseRole maps a token claim to a Role. Unknown values degrade to RoleUser.
func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin
	case RoleModerator:
		return RoleModerator
	default:
		return RoleUser
	}
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID       string
	Username string
	Role     Role
}

// IsAdmin reports whether a can administer other actors.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// CanModerate reports whether a may read conversations it is not part of.
func (a Actor) CanModerate() bool {
	return a.Role == RoleAdmin || a.Role == RoleModerator
}
