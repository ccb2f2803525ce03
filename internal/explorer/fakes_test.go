package explorer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dsecure/portal/internal/identity"
	"github.com/dsecure/portal/internal/models"
)

var errBackend = errors.New("backend unavailable")

type fakeFetcher struct {
	logs     []models.SystemLogEntry
	commands []models.CommandEntry
	sessions []models.SessionEntry

	failLogs, failCommands, failSessions bool

	calls atomic.Int32

	mu     sync.Mutex
	scopes []models.Scope
	emails []string
}

func (f *fakeFetcher) record(scope models.Scope, email string) {
	f.calls.Add(1)
	f.mu.Lock()
	f.scopes = append(f.scopes, scope)
	f.emails = append(f.emails, email)
	f.mu.Unlock()
}

func (f *fakeFetcher) FetchLogs(_ context.Context, scope models.Scope, email string) ([]models.SystemLogEntry, error) {
	f.record(scope, email)
	if f.failLogs {
		return nil, fmt.Errorf("fetch logs: %w", errBackend)
	}
	return f.logs, nil
}

func (f *fakeFetcher) FetchCommands(_ context.Context, scope models.Scope, email string) ([]models.CommandEntry, error) {
	f.record(scope, email)
	if f.failCommands {
		return nil, fmt.Errorf("fetch commands: %w", errBackend)
	}
	return f.commands, nil
}

func (f *fakeFetcher) FetchSessions(_ context.Context, scope models.Scope, email string) ([]models.SessionEntry, error) {
	f.record(scope, email)
	if f.failSessions {
		return nil, fmt.Errorf("fetch sessions: %w", errBackend)
	}
	return f.sessions, nil
}

func adminIdentity() identity.Identity {
	return identity.Resolve(identity.Static(identity.Record{Email: "admin@x.com", Role: "admin"}))
}

func userIdentity() identity.Identity {
	return identity.Resolve(identity.Static(identity.Record{Email: "a@x.com"}))
}

var (
	sampleLevels   = []string{"error", "info", "warning"}
	sampleStatuses = []string{"pending", "completed", "failed"}
	sampleEmails   = []string{"a@x.com", "b@x.com", "Ops@Example.com", "c@y.org"}
	sampleMessages = []string{"disk full", "login ok", "Wipe started", "erase verified", "Disk check"}
	sampleIPs      = []string{"10.0.0.1", "192.168.1.20", "172.16.4.4"}
)

// sampleTimestamp spreads seeds over a few days and hours.
func sampleTimestamp(seed int) string {
	return fmt.Sprintf("2024-01-%02dT%02d:%02d:00Z", seed%7+1, seed%24, seed%60)
}

func sampleLogs(seeds []int) []models.SystemLogEntry {
	out := make([]models.SystemLogEntry, len(seeds))
	for i, s := range seeds {
		out[i] = models.SystemLogEntry{
			LogID:      int64(i + 1),
			UserEmail:  sampleEmails[s%len(sampleEmails)],
			LogLevel:   sampleLevels[s%len(sampleLevels)],
			LogMessage: sampleMessages[s%len(sampleMessages)],
			CreatedAt:  sampleTimestamp(s),
		}
	}
	return out
}

func sampleCommands(seeds []int) []models.CommandEntry {
	out := make([]models.CommandEntry, len(seeds))
	for i, s := range seeds {
		out[i] = models.CommandEntry{
			CommandID:     int64(i + 1),
			CommandText:   sampleMessages[s%len(sampleMessages)],
			CommandStatus: sampleStatuses[s%len(sampleStatuses)],
			IssuedAt:      sampleTimestamp(s),
			UserEmail:     sampleEmails[s%len(sampleEmails)],
		}
	}
	return out
}

func sampleSessions(seeds []int) []models.SessionEntry {
	out := make([]models.SessionEntry, len(seeds))
	for i, s := range seeds {
		out[i] = models.SessionEntry{
			SessionID:     int64(i + 1),
			UserEmail:     sampleEmails[s%len(sampleEmails)],
			LoginTime:     sampleTimestamp(s),
			IPAddress:     sampleIPs[s%len(sampleIPs)],
			SessionStatus: []string{"active", "closed"}[s%2],
		}
	}
	return out
}
