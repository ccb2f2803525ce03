// Package tui provides the interactive terminal front-end of the log explorer.
package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/dsecure/portal/internal/explorer"
	"github.com/dsecure/portal/internal/models"
)

type inputMode int

const (
	modeBrowse inputMode = iota
	modeQuery
	modeDate
)

// maxNotices is how many notifications stay on screen.
const maxNotices = 3

// loadStartedMsg carries the channel a running load reports on.
type loadStartedMsg struct {
	updates <-chan tea.Msg
}

// updateMsg is one collection applied during a load.
type updateMsg explorer.Update

// loadedMsg ends a load cycle.
type loadedMsg struct {
	res explorer.Result
	err error
}

type exportedMsg struct {
	path string
	err  error
}

// Option configures a Model.
type Option func(*Model)

// WithExportDir sets the directory exports are written to.
func WithExportDir(dir string) Option {
	return func(m *Model) {
		m.exportDir = dir
	}
}

// WithClock overrides the time source used for exports and session durations.
func WithClock(now func() time.Time) Option {
	return func(m *Model) {
		m.now = now
	}
}

// Model is the bubbletea model over one explorer.
type Model struct {
	ctx      context.Context
	explorer *explorer.Explorer

	table   table.Model
	input   textinput.Model
	mode    inputMode
	tab     models.Kind
	ids     []int64
	updates <-chan tea.Msg

	snapshot explorer.Snapshot
	notices  []explorer.Notification
	status   string
	err      error

	exportDir string
	now       func() time.Time
	width     int
	height    int
}

// NewModel creates a model over e. Nothing is fetched until Init runs.
func NewModel(ctx context.Context, e *explorer.Explorer, opts ...Option) Model {
	ti := textinput.New()
	ti.CharLimit = 128
	ti.Width = 40

	m := Model{
		ctx:       ctx,
		explorer:  e,
		input:     ti,
		exportDir: ".",
		now:       time.Now,
		table: table.New(
			table.WithFocused(true),
			table.WithHeight(12),
			table.WithStyles(tableStyles()),
		),
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.refresh()
	return m
}

// Init starts the first load.
func (m Model) Init() tea.Cmd {
	return m.load()
}

// load runs a load cycle in the background. Updates are delivered one
// message at a time through the returned channel.
func (m Model) load() tea.Cmd {
	ctx, e := m.ctx, m.explorer
	return func() tea.Msg {
		// Capacity covers a cache paint and a network update per kind plus the final result.
		ch := make(chan tea.Msg, 2*len(models.Kinds)+1)
		go func() {
			defer close(ch)
			res, err := e.Load(ctx, func(u explorer.Update) {
				ch <- updateMsg(u)
			})
			ch <- loadedMsg{res: res, err: err}
		}()
		return loadStartedMsg{updates: ch}
	}
}

func wait(ch <-chan tea.Msg) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

func (m Model) loading() bool {
	return m.updates != nil
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetHeight(max(5, msg.Height-16))
		return m, nil

	case loadStartedMsg:
		m.updates = msg.updates
		m.status = "loading..."
		m.refresh()
		return m, wait(m.updates)

	case updateMsg:
		m.refresh()
		return m, wait(m.updates)

	case loadedMsg:
		m.updates = nil
		m.collect()
		m.refresh()
		switch {
		case errors.Is(msg.err, explorer.ErrAuthentication):
			m.status = ""
		case len(msg.res.Failed) > 0:
			m.status = fmt.Sprintf("loaded with %d failed collection(s)", len(msg.res.Failed))
		default:
			m.status = fmt.Sprintf("loaded in %s", msg.res.Duration.Round(time.Millisecond))
		}
		return m, nil

	case exportedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.status = ""
		} else {
			m.err = nil
			m.status = "exported " + msg.path
		}
		return m, nil

	case tea.KeyMsg:
		if m.mode != modeBrowse {
			return m.handleInput(msg)
		}
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "tab":
		m.shiftTab(1)
	case "shift+tab":
		m.shiftTab(-1)
	case "1", "2", "3":
		m.explorer.SetTab(models.Kinds[int(msg.String()[0]-'1')])

	case "n", "right":
		page, _, _, _ := m.snapshot.Current()
		m.explorer.SetPage(page + 1)
	case "p", "left":
		page, _, _, _ := m.snapshot.Current()
		m.explorer.SetPage(page - 1)

	case "/":
		return m.beginInput(modeQuery, m.snapshot.Filters.Query, "search")
	case "t":
		return m.beginInput(modeDate, m.snapshot.Filters.Date, "YYYY-MM-DD")
	case "c":
		m.explorer.SetCategory(nextCategory(m.snapshot.Categories, m.snapshot.Filters.Category))
	case "x":
		m.explorer.Update(func(v *explorer.View) { v.ClearFilters() })

	case "enter":
		if c := m.table.Cursor(); c >= 0 && c < len(m.ids) {
			m.explorer.ToggleDetail(m.ids[c])
		}
	case "esc":
		if m.snapshot.HasDetail {
			m.explorer.ToggleDetail(m.snapshot.OpenDetail)
		}

	case "r":
		if m.loading() {
			m.status = "load in progress"
			return m, nil
		}
		return m, m.load()
	case "s":
		return m.toggleScope()
	case "e":
		return m, m.export()

	default:
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd
	}

	m.refresh()
	return m, nil
}

func (m *Model) shiftTab(delta int) {
	n := len(models.Kinds)
	for i, k := range models.Kinds {
		if k == m.snapshot.Tab {
			m.explorer.SetTab(models.Kinds[(i+delta+n)%n])
			return
		}
	}
}

// nextCategory cycles through "" (any) and each known category.
func nextCategory(categories []string, current string) string {
	if current == "" {
		if len(categories) == 0 {
			return ""
		}
		return categories[0]
	}
	for i, c := range categories {
		if c == current && i+1 < len(categories) {
			return categories[i+1]
		}
	}
	return ""
}

func (m Model) toggleScope() (tea.Model, tea.Cmd) {
	id := m.explorer.Identity()
	if !id.CanViewAllLogs {
		m.status = "only admins can view all logs"
		return m, nil
	}
	if m.loading() {
		m.status = "load in progress"
		return m, nil
	}
	next := models.ScopeAll
	if m.snapshot.Scope == models.ScopeAll {
		next = models.ScopeByEmail
	}
	var changed bool
	m.explorer.Update(func(v *explorer.View) {
		changed = v.SetScope(next, id.CanViewAllLogs)
	})
	m.refresh()
	if !changed {
		return m, nil
	}
	return m, m.load()
}

func (m Model) export() tea.Cmd {
	e, dir, now := m.explorer, m.exportDir, m.now()
	return func() tea.Msg {
		path, err := e.ExportFile(dir, now)
		return exportedMsg{path: path, err: err}
	}
}

func (m Model) beginInput(mode inputMode, value, placeholder string) (tea.Model, tea.Cmd) {
	m.mode = mode
	m.input.Reset()
	m.input.Placeholder = placeholder
	m.input.SetValue(value)
	m.input.CursorEnd()
	m.table.Blur()
	return m, m.input.Focus()
}

func (m Model) handleInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyEsc:
		m.endInput()
		return m, nil
	case tea.KeyEnter:
		value := m.input.Value()
		switch m.mode {
		case modeQuery:
			m.explorer.SetQuery(value)
		case modeDate:
			m.explorer.SetDate(strings.TrimSpace(value))
		}
		m.endInput()
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) endInput() {
	m.mode = modeBrowse
	m.input.Blur()
	m.table.Focus()
}

// collect moves pending notifications from the explorer inbox to the screen.
func (m *Model) collect() {
	m.notices = append(m.notices, m.explorer.Inbox().Drain()...)
	if len(m.notices) > maxNotices {
		m.notices = m.notices[len(m.notices)-maxNotices:]
	}
}

// refresh re-reads the explorer snapshot into the table.
func (m *Model) refresh() {
	s := m.explorer.Snapshot()
	m.snapshot = s

	columns, rows, ids := tableData(s, m.now())
	switched := s.Tab != m.tab || len(m.table.Columns()) == 0
	if switched {
		m.table.SetRows(nil)
		m.table.SetColumns(columns)
		m.tab = s.Tab
	}
	m.table.SetRows(rows)
	m.ids = ids

	// bubbles/table clamps the cursor to -1 while it has no rows.
	switch c := m.table.Cursor(); {
	case len(rows) == 0:
	case switched || c < 0:
		m.table.SetCursor(0)
	case c >= len(rows):
		m.table.SetCursor(len(rows) - 1)
	}
}

// Run starts the explorer TUI and blocks until the user quits.
func Run(ctx context.Context, e *explorer.Explorer, opts ...Option) error {
	p := tea.NewProgram(NewModel(ctx, e, opts...), tea.WithAltScreen(), tea.WithContext(ctx), tea.WithOutput(os.Stdout))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
