package domain

import (
	"fmt"
	"strings"
)

// Role orders the privileges of a space member. Greater means more privileged.
type Role uint8

const (
	RoleUser Role = iota
	RoleModerator
	RoleAdministrator
	RoleOwner
)

func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleModerator:
		return "moderator"
	case RoleAdministrator:
		return "administrator"
	case RoleOwner:
		return "owner"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// ParseRole accepts the canonical names and their usual aliases.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user", "member":
		return RoleUser, nil
	case "moderator", "mod", "moder":
		return RoleModerator, nil
	case "administrator", "admin":
		return RoleAdministrator, nil
	case "owner", "creator", "author":
		return RoleOwner, nil
	default:
		return RoleUser, fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

func (r Role) AtLeast(other Role) bool { return r >= other }
