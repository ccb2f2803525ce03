// Package explorer implements the admin log explorer: three entity
// collections (system logs, commands, sessions) with cached loading,
// search, filtering, pagination, detail expansion and CSV export.
package explorer

import (
	"slices"
	"strconv"
	"strings"

	"github.com/dsecure/portal/internal/models"
)

// DefaultPageSize is the number of rows shown per page.
const DefaultPageSize = 20

// Filters narrows the rows of the active tab. Category is the log level for
// system logs and the status for commands and sessions.
type Filters struct {
	Query    string `json:"query"`
	Category string `json:"category"`
	Date     string `json:"date"`
}

// IsZero reports whether no filter is set.
func (f Filters) IsZero() bool {
	return f == Filters{}
}

// Collection describes how one entity kind is searched, sorted and exported.
type Collection[T any] struct {
	Kind models.Kind
	// Predicate builds the row filter for a set of filters.
	Predicate func(f Filters) func(T) bool
	// SortKey returns the timestamp rows are ordered by, newest first.
	SortKey  func(T) string
	ID       func(T) int64
	Category func(T) string
	Columns  []string
	Row      func(T) []string
}

// Apply returns the rows of items matching f, newest first. items is not modified.
func (c Collection[T]) Apply(items []T, f Filters) []T {
	match := c.Predicate(f)
	out := make([]T, 0, len(items))
	for _, it := range items {
		if match(it) {
			out = append(out, it)
		}
	}
	slices.SortStableFunc(out, func(a, b T) int {
		return models.CompareTimestamps(c.SortKey(b), c.SortKey(a))
	})
	return out
}

// Categories returns the distinct non-empty category values in items, sorted.
func (c Collection[T]) Categories(items []T) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, it := range items {
		v := c.Category(it)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

// Find returns the item with the given id.
func (c Collection[T]) Find(items []T, id int64) (T, bool) {
	for _, it := range items {
		if c.ID(it) == id {
			return it, true
		}
	}
	var zero T
	return zero, false
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func matchesCategory(value, want string) bool {
	return want == "" || value == want
}

func matchesDate(ts, date string) bool {
	return date == "" || strings.HasPrefix(ts, date)
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}

// Logs is the system log collection.
var Logs = Collection[models.SystemLogEntry]{
	Kind: models.KindLogs,
	Predicate: func(f Filters) func(models.SystemLogEntry) bool {
		return func(e models.SystemLogEntry) bool {
			return (containsFold(e.LogMessage, f.Query) || containsFold(e.UserEmail, f.Query)) &&
				matchesCategory(e.LogLevel, f.Category) &&
				matchesDate(e.CreatedAt, f.Date)
		}
	},
	SortKey:  func(e models.SystemLogEntry) string { return e.CreatedAt },
	ID:       func(e models.SystemLogEntry) int64 { return e.LogID },
	Category: func(e models.SystemLogEntry) string { return e.LogLevel },
	Columns:  []string{"log_id", "user_email", "log_level", "log_message", "log_details_json", "created_at"},
	Row: func(e models.SystemLogEntry) []string {
		return []string{itoa(e.LogID), e.UserEmail, e.LogLevel, e.LogMessage, string(e.LogDetailsJSON), e.CreatedAt}
	},
}

// Commands is the issued command collection.
var Commands = Collection[models.CommandEntry]{
	Kind: models.KindCommands,
	Predicate: func(f Filters) func(models.CommandEntry) bool {
		return func(e models.CommandEntry) bool {
			return containsFold(e.CommandText, f.Query) &&
				matchesCategory(e.CommandStatus, f.Category) &&
				matchesDate(e.IssuedAt, f.Date)
		}
	},
	SortKey:  func(e models.CommandEntry) string { return e.IssuedAt },
	ID:       func(e models.CommandEntry) int64 { return e.CommandID },
	Category: func(e models.CommandEntry) string { return e.CommandStatus },
	Columns:  []string{"command_id", "command_text", "command_status", "issued_at", "user_email", "command_json"},
	Row: func(e models.CommandEntry) []string {
		return []string{itoa(e.CommandID), e.CommandText, e.CommandStatus, e.IssuedAt, e.UserEmail, string(e.CommandJSON)}
	},
}

// Sessions is the login session collection.
var Sessions = Collection[models.SessionEntry]{
	Kind: models.KindSessions,
	Predicate: func(f Filters) func(models.SessionEntry) bool {
		return func(e models.SessionEntry) bool {
			return (containsFold(e.UserEmail, f.Query) || containsFold(e.IPAddress, f.Query)) &&
				matchesCategory(e.SessionStatus, f.Category) &&
				matchesDate(e.LoginTime, f.Date)
		}
	},
	SortKey:  func(e models.SessionEntry) string { return e.LoginTime },
	ID:       func(e models.SessionEntry) int64 { return e.SessionID },
	Category: func(e models.SessionEntry) string { return e.SessionStatus },
	Columns:  []string{"session_id", "user_email", "login_time", "logout_time", "ip_address", "device_info", "session_status"},
	Row: func(e models.SessionEntry) []string {
		return []string{itoa(e.SessionID), e.UserEmail, e.LoginTime, e.LogoutTime, e.IPAddress, e.DeviceInfo, e.SessionStatus}
	},
}
