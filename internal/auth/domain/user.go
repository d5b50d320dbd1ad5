package domain

import (
	"fmt"
	"strings"
	"time"
)

// User is an account of the CMS. Users are never deleted; Active=false
// locks them out.
type User struct {
	ID           string
	Email        string // stored lower-cased
	DisplayName  string
	PasswordHash string // argon2id PHC string
	Role         Role
	Active       bool

	// MFA is nil when no method is configured. A TOTP method with a nil
	// MFAEnabledAt is an enrolment that was never confirmed.
	MFA          MFAMethod
	MFAEnabledAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// MFAActive reports whether sign in needs a second factor.
func (u User) MFAActive() bool {
	return u.MFA != nil && u.MFAEnabledAt != nil
}

// NormalizeEmail trims and lower-cases an address for lookup and storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Role is the closed set of account roles.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleDev    Role = "dev"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// Roles lists every role from most to least privileged.
var Roles = []Role{RoleAdmin, RoleDev, RoleEditor, RoleViewer}

// ParseRole accepts a role name in any case.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleAdmin, RoleDev, RoleEditor, RoleViewer:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

func (r Role) String() string { return string(r) }

// Principal is the authenticated caller of an operation.
type Principal struct {
	ID        string
	Role      Role
	Email     string
	SessionID string
}

// Scope is the set of owners whose data an operation may touch.
type Scope struct {
	all   bool
	owner string
}

// ScopeFor decides what a role may reach: admins reach everyone, devs and
// editors reach their own data, viewers reach nothing administrative.
func ScopeFor(role Role, userID string) Scope {
	switch role {
	case RoleAdmin:
		return Scope{all: true}
	case RoleDev, RoleEditor:
		return Scope{owner: userID}
	default:
		return Scope{}
	}
}

// Permits reports whether ownerID is inside the scope.
func (s Scope) Permits(ownerID string) bool {
	if s.all {
		return true
	}
	return s.owner != "" && s.owner == ownerID
}

// All reports whether the scope is unrestricted.
func (s Scope) All() bool { return s.all }

// Owner returns the single permitted owner, or "" for unrestricted and
// empty scopes.
func (s Scope) Owner() string { return s.owner }
