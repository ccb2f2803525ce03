// Package models provides the data models for the D-Secure admin portal.
package models

import "strings"

// Kind identifies one of the three entity collections shown by the log explorer.
type Kind string

const (
	// KindLogs is the system log collection.
	KindLogs Kind = "logs"
	// KindCommands is the issued command collection.
	KindCommands Kind = "commands"
	// KindSessions is the login session collection.
	KindSessions Kind = "sessions"
)

// Kinds lists every entity kind in tab order.
var Kinds = []Kind{KindLogs, KindCommands, KindSessions}

// ParseKind returns the kind named by s, defaulting to KindLogs.
func ParseKind(s string) Kind {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindCommands:
		return KindCommands
	case KindSessions:
		return KindSessions
	default:
		return KindLogs
	}
}

// Title returns the display name of the kind.
func (k Kind) Title() string {
	switch k {
	case KindCommands:
		return "Commands"
	case KindSessions:
		return "Sessions"
	default:
		return "System Logs"
	}
}

// Scope controls whether a fetch is restricted to the acting user.
type Scope string

const (
	// ScopeByEmail restricts results to the acting user and their subusers.
	ScopeByEmail Scope = "by-email"
	// ScopeAll returns every record visible to the caller.
	ScopeAll Scope = "all"
)

// ParseScope returns the scope named by s, defaulting to ScopeByEmail.
func ParseScope(s string) Scope {
	if Scope(strings.ToLower(strings.TrimSpace(s))) == ScopeAll {
		return ScopeAll
	}
	return ScopeByEmail
}

// Role is the privilege tier of the acting user as known to the client.
// It only drives what the UI offers; the backend enforces access.
type Role string

const (
	RoleUser       Role = "user"
	RoleSubuser    Role = "subuser"
	RoleManager    Role = "manager"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

// NormalizeRole lowercases and trims a stored role string.
// An empty role becomes RoleUser.
func NormalizeRole(s string) Role {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if r == "" {
		return RoleUser
	}
	return r
}

// CanViewAllLogs reports whether the role may switch to the unscoped view.
func (r Role) CanViewAllLogs() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// IsSubuser reports whether the role belongs to a sub-account.
func (r Role) IsSubuser() bool {
	return r == RoleSubuser
}
