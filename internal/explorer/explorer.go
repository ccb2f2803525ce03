package explorer

import (
	"context"
	"sync"
	"time"

	"github.com/dsecure/portal/internal/details"
	"github.com/dsecure/portal/internal/identity"
	"github.com/dsecure/portal/internal/models"
)

// Explorer holds the loaded collections and the view state of one visit.
// It is safe for concurrent use; concurrent loads are last-write-wins.
type Explorer struct {
	mu       sync.Mutex
	id       identity.Identity
	view     View
	logs     []models.SystemLogEntry
	commands []models.CommandEntry
	sessions []models.SessionEntry
	loading  bool
	loadedAt time.Time
	pageSize int

	loader *Loader
	inbox  *Inbox
}

// Option configures an Explorer.
type Option func(*Explorer)

// WithPageSize overrides DefaultPageSize.
func WithPageSize(n int) Option {
	return func(e *Explorer) {
		if n > 0 {
			e.pageSize = n
		}
	}
}

// New creates an explorer for the acting identity.
func New(id identity.Identity, loader *Loader, opts ...Option) *Explorer {
	e := &Explorer{
		id:       id,
		view:     NewView(),
		logs:     []models.SystemLogEntry{},
		commands: []models.CommandEntry{},
		sessions: []models.SessionEntry{},
		pageSize: DefaultPageSize,
		loader:   loader,
		inbox:    &Inbox{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Identity returns the acting identity.
func (e *Explorer) Identity() identity.Identity {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.id
}

// Inbox returns the explorer's pending notifications.
func (e *Explorer) Inbox() *Inbox { return e.inbox }

// SetLogs replaces the system log collection.
func (e *Explorer) SetLogs(items []models.SystemLogEntry) {
	e.mu.Lock()
	e.logs = items
	e.mu.Unlock()
}

// SetCommands replaces the command collection.
func (e *Explorer) SetCommands(items []models.CommandEntry) {
	e.mu.Lock()
	e.commands = items
	e.mu.Unlock()
}

// SetSessions replaces the session collection.
func (e *Explorer) SetSessions(items []models.SessionEntry) {
	e.mu.Lock()
	e.sessions = items
	e.mu.Unlock()
}

// Load runs a load cycle for the current scope. observe may be nil.
func (e *Explorer) Load(ctx context.Context, observe Observer) (Result, error) {
	e.mu.Lock()
	id, scope := e.id, e.view.Scope
	e.loading = true
	e.mu.Unlock()

	res, err := e.loader.Load(ctx, id, scope, e, e.inbox, observe)

	e.mu.Lock()
	e.loading = false
	if err == nil {
		e.loadedAt = time.Now()
	}
	e.mu.Unlock()
	return res, err
}

// SetScope changes the scope and reloads when it changed.
func (e *Explorer) SetScope(ctx context.Context, scope models.Scope, observe Observer) (bool, error) {
	e.mu.Lock()
	changed := e.view.SetScope(scope, e.id.CanViewAllLogs)
	e.mu.Unlock()
	if !changed {
		return false, nil
	}
	_, err := e.Load(ctx, observe)
	return true, err
}

// Update applies fn to the view state under the lock.
func (e *Explorer) Update(fn func(v *View)) {
	e.mu.Lock()
	fn(&e.view)
	e.mu.Unlock()
}

// SetTab switches the active tab.
func (e *Explorer) SetTab(tab models.Kind) { e.Update(func(v *View) { v.SetTab(tab) }) }

// SetQuery sets the free-text search.
func (e *Explorer) SetQuery(q string) { e.Update(func(v *View) { v.SetQuery(q) }) }

// SetCategory sets the level or status filter.
func (e *Explorer) SetCategory(c string) { e.Update(func(v *View) { v.SetCategory(c) }) }

// SetDate sets the date prefix filter.
func (e *Explorer) SetDate(d string) { e.Update(func(v *View) { v.SetDate(d) }) }

// SetPage moves to page n.
func (e *Explorer) SetPage(n int) { e.Update(func(v *View) { v.SetPage(n) }) }

// ToggleDetail opens or closes the detail panel of id on the active tab.
func (e *Explorer) ToggleDetail(id int64) { e.Update(func(v *View) { v.ToggleDetail(id) }) }

// View returns a copy of the view state.
func (e *Explorer) View() View {
	e.mu.Lock()
	defer e.mu.Unlock()
	v := e.view
	v.open = make(map[models.Kind]int64, len(e.view.open))
	for k, id := range e.view.open {
		v.open[k] = id
	}
	return v
}

// TabSummary is the header entry of one tab.
type TabSummary struct {
	Kind   models.Kind `json:"kind"`
	Title  string      `json:"title"`
	Total  int         `json:"total"`
	Active bool        `json:"active"`
}

// Snapshot is a consistent rendering of the explorer. Only the page of the
// active tab is populated.
type Snapshot struct {
	Identity   identity.Identity `json:"identity"`
	Tab        models.Kind       `json:"tab"`
	Scope      models.Scope      `json:"scope"`
	Filters    Filters           `json:"filters"`
	Tabs       []TabSummary      `json:"tabs"`
	Categories []string          `json:"categories"`
	Loading    bool              `json:"loading"`
	LoadedAt   time.Time         `json:"loaded_at,omitempty"`

	Logs     Page[models.SystemLogEntry] `json:"logs"`
	Commands Page[models.CommandEntry]   `json:"commands"`
	Sessions Page[models.SessionEntry]   `json:"sessions"`

	OpenDetail int64 `json:"open_detail,omitempty"`
	HasDetail  bool  `json:"has_detail"`

	// Detail is the open entry, looked up among all filtered rows of the
	// active tab. It is nil when the open entry is filtered out.
	Detail *Detail `json:"-"`
}

// Detail is the entry whose panel is open. Exactly one field is set.
type Detail struct {
	Log     *models.SystemLogEntry
	Command *models.CommandEntry
	Session *models.SessionEntry
}

// ID returns the id of the open entry.
func (d *Detail) ID() int64 {
	switch {
	case d.Log != nil:
		return d.Log.LogID
	case d.Command != nil:
		return d.Command.CommandID
	case d.Session != nil:
		return d.Session.SessionID
	}
	return 0
}

// Payload returns the raw JSON text and parsed details of a log or command
// entry. Sessions carry no payload.
func (d *Detail) Payload() (string, details.Payload) {
	switch {
	case d.Log != nil:
		return string(d.Log.LogDetailsJSON), d.Log.Details
	case d.Command != nil:
		return string(d.Command.CommandJSON), d.Command.Details
	}
	return "", details.Payload{}
}

// Current returns the page number, size, total pages and filtered row count
// of the active tab.
func (s Snapshot) Current() (page, size, totalPages, total int) {
	switch s.Tab {
	case models.KindCommands:
		return s.Commands.Number, s.Commands.Size, s.Commands.TotalPages, s.Commands.Total
	case models.KindSessions:
		return s.Sessions.Number, s.Sessions.Size, s.Sessions.TotalPages, s.Sessions.Total
	default:
		return s.Logs.Number, s.Logs.Size, s.Logs.TotalPages, s.Logs.Total
	}
}

// Snapshot renders the active tab. The stored page is clamped to the
// filtered row count.
func (e *Explorer) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Snapshot{
		Identity: e.id,
		Tab:      e.view.Tab,
		Scope:    e.view.Scope,
		Filters:  e.view.Filters,
		Loading:  e.loading,
		LoadedAt: e.loadedAt,
		Logs:     Page[models.SystemLogEntry]{Items: []models.SystemLogEntry{}, Number: 1, Size: e.pageSize, TotalPages: 1},
		Commands: Page[models.CommandEntry]{Items: []models.CommandEntry{}, Number: 1, Size: e.pageSize, TotalPages: 1},
		Sessions: Page[models.SessionEntry]{Items: []models.SessionEntry{}, Number: 1, Size: e.pageSize, TotalPages: 1},
	}
	totals := map[models.Kind]int{
		models.KindLogs:     len(e.logs),
		models.KindCommands: len(e.commands),
		models.KindSessions: len(e.sessions),
	}
	for _, k := range models.Kinds {
		s.Tabs = append(s.Tabs, TabSummary{Kind: k, Title: k.Title(), Total: totals[k], Active: k == e.view.Tab})
	}

	s.OpenDetail, s.HasDetail = e.view.OpenDetail(e.view.Tab)

	switch e.view.Tab {
	case models.KindCommands:
		rows := Commands.Apply(e.commands, e.view.Filters)
		s.Commands = Paginate(rows, e.view.Page, e.pageSize)
		s.Categories = Commands.Categories(e.commands)
		e.view.Page = s.Commands.Number
		if c, ok := Commands.Find(rows, s.OpenDetail); ok && s.HasDetail {
			s.Detail = &Detail{Command: &c}
		}
	case models.KindSessions:
		rows := Sessions.Apply(e.sessions, e.view.Filters)
		s.Sessions = Paginate(rows, e.view.Page, e.pageSize)
		s.Categories = Sessions.Categories(e.sessions)
		e.view.Page = s.Sessions.Number
		if se, ok := Sessions.Find(rows, s.OpenDetail); ok && s.HasDetail {
			s.Detail = &Detail{Session: &se}
		}
	default:
		rows := Logs.Apply(e.logs, e.view.Filters)
		s.Logs = Paginate(rows, e.view.Page, e.pageSize)
		s.Categories = Logs.Categories(e.logs)
		e.view.Page = s.Logs.Number
		if l, ok := Logs.Find(rows, s.OpenDetail); ok && s.HasDetail {
			s.Detail = &Detail{Log: &l}
		}
	}
	return s
}
