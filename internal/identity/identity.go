// Package identity resolves the acting user and their role from the
// identity records a client keeps locally.
//
// Nothing here is an authorization decision. The resolved role only
// decides which controls the UI offers; the backend re-checks scope on
// every request.
package identity

import (
	"encoding/json"
	"strings"

	"github.com/dsecure/portal/internal/models"
)

// Record is the subset of a stored identity record the explorer cares about.
// Either field may be empty.
type Record struct {
	Email string
	Role  string
}

// Source yields a record, or false when the underlying store has nothing usable.
type Source func() (Record, bool)

// Identity is the resolved acting user.
type Identity struct {
	Email          string      `json:"email"`
	Role           models.Role `json:"role"`
	CanViewAllLogs bool        `json:"can_view_all_logs"`
	IsSubuser      bool        `json:"is_subuser"`
}

// Authenticated reports whether an acting-user email was resolved.
func (i Identity) Authenticated() bool {
	return i.Email != ""
}

var (
	emailKeys = []string{"email", "user_email", "userEmail"}
	roleKeys  = []string{"role", "user_role", "userRole"}
)

// DecodeRecord loosely decodes a JSON identity record. Records may nest the
// interesting fields under a "user" object. Malformed input yields false.
func DecodeRecord(raw []byte) (Record, bool) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil || m == nil {
		return Record{}, false
	}

	rec := recordFromMap(m)
	if nested, ok := m["user"].(map[string]any); ok {
		inner := recordFromMap(nested)
		if rec.Email == "" {
			rec.Email = inner.Email
		}
		if rec.Role == "" {
			rec.Role = inner.Role
		}
	}

	if rec.Email == "" && rec.Role == "" {
		return Record{}, false
	}
	return rec, true
}

func recordFromMap(m map[string]any) Record {
	return Record{
		Email: firstString(m, emailKeys),
		Role:  firstString(m, roleKeys),
	}
}

func firstString(m map[string]any, keys []string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

// FirstDefined folds sources in order: each field comes from the first
// source that defines it. Sources that report false are skipped.
func FirstDefined(sources ...Source) Record {
	var out Record
	for _, src := range sources {
		if src == nil {
			continue
		}
		rec, ok := src()
		if !ok {
			continue
		}
		if out.Email == "" {
			out.Email = strings.TrimSpace(rec.Email)
		}
		if out.Role == "" {
			out.Role = strings.TrimSpace(rec.Role)
		}
		if out.Email != "" && out.Role != "" {
			break
		}
	}
	return out
}

// Resolve builds the acting identity from sources in precedence order.
// The role defaults to "user".
func Resolve(sources ...Source) Identity {
	rec := FirstDefined(sources...)
	role := models.NormalizeRole(rec.Role)
	return Identity{
		Email:          rec.Email,
		Role:           role,
		CanViewAllLogs: role.CanViewAllLogs(),
		IsSubuser:      role.IsSubuser(),
	}
}

// Static returns a source that always yields rec when it defines anything.
func Static(rec Record) Source {
	return func() (Record, bool) {
		return rec, rec.Email != "" || rec.Role != ""
	}
}

// FromJSON returns a source reading a JSON record lazily from load.
func FromJSON(load func() ([]byte, bool)) Source {
	return func() (Record, bool) {
		raw, ok := load()
		if !ok {
			return Record{}, false
		}
		return DecodeRecord(raw)
	}
}
