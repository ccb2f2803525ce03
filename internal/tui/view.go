package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/dsecure/portal/internal/details"
	"github.com/dsecure/portal/internal/explorer"
	"github.com/dsecure/portal/internal/models"
)

var (
	logColumns = []table.Column{
		{Title: "ID", Width: 7},
		{Title: "Level", Width: 9},
		{Title: "User", Width: 26},
		{Title: "Message", Width: 44},
		{Title: "Created", Width: 22},
	}
	commandColumns = []table.Column{
		{Title: "ID", Width: 7},
		{Title: "Status", Width: 11},
		{Title: "Command", Width: 40},
		{Title: "User", Width: 26},
		{Title: "Issued", Width: 22},
	}
	sessionColumns = []table.Column{
		{Title: "ID", Width: 7},
		{Title: "User", Width: 26},
		{Title: "IP", Width: 16},
		{Title: "Status", Width: 10},
		{Title: "Login", Width: 22},
		{Title: "Duration", Width: 10},
	}
)

func itoa(n int64) string { return strconv.FormatInt(n, 10) }

// tableData returns the columns, rows and row ids of the active tab's page.
func tableData(s explorer.Snapshot, now time.Time) ([]table.Column, []table.Row, []int64) {
	switch s.Tab {
	case models.KindCommands:
		rows := make([]table.Row, 0, len(s.Commands.Items))
		ids := make([]int64, 0, len(s.Commands.Items))
		for _, e := range s.Commands.Items {
			rows = append(rows, table.Row{itoa(e.CommandID), e.CommandStatus, e.CommandText, e.UserEmail, e.IssuedAt})
			ids = append(ids, e.CommandID)
		}
		return commandColumns, rows, ids

	case models.KindSessions:
		rows := make([]table.Row, 0, len(s.Sessions.Items))
		ids := make([]int64, 0, len(s.Sessions.Items))
		for _, e := range s.Sessions.Items {
			rows = append(rows, table.Row{itoa(e.SessionID), e.UserEmail, e.IPAddress, e.SessionStatus, e.LoginTime, duration(e, now)})
			ids = append(ids, e.SessionID)
		}
		return sessionColumns, rows, ids

	default:
		rows := make([]table.Row, 0, len(s.Logs.Items))
		ids := make([]int64, 0, len(s.Logs.Items))
		for _, e := range s.Logs.Items {
			rows = append(rows, table.Row{itoa(e.LogID), e.LogLevel, e.UserEmail, e.LogMessage, e.CreatedAt})
			ids = append(ids, e.LogID)
		}
		return logColumns, rows, ids
	}
}

func duration(e models.SessionEntry, now time.Time) string {
	d, ok := e.Duration(now)
	if !ok {
		return "-"
	}
	return d.Round(time.Second).String()
}

// View renders the UI.
func (m Model) View() string {
	var b strings.Builder
	s := m.snapshot

	b.WriteString(titleStyle.Render("D-Secure Log Explorer"))
	b.WriteString("\n")
	b.WriteString(subtitleStyle.Render(m.identityLine()))
	b.WriteString("\n\n")

	b.WriteString(m.tabsLine())
	b.WriteString("\n")
	b.WriteString(filterStyle.Render(filtersLine(s.Filters)))
	b.WriteString("\n\n")

	b.WriteString(m.table.View())
	b.WriteString("\n")

	page, _, pages, total := s.Current()
	b.WriteString(subtitleStyle.Render(fmt.Sprintf("Page %d/%d · %d rows", page, pages, total)))
	b.WriteString("\n")

	if panel := m.detailPanel(); panel != "" {
		b.WriteString(panel)
		b.WriteString("\n")
	}

	if m.mode != modeBrowse {
		label := "Search: "
		if m.mode == modeDate {
			label = "Date: "
		}
		b.WriteString(labelStyle.Render(label) + m.input.View())
		b.WriteString("\n")
	}

	for _, n := range m.notices {
		b.WriteString(errorStyle.Render(n.Title+": ") + n.Message)
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString(errorStyle.Render("Error: " + m.err.Error()))
		b.WriteString("\n")
	}
	if m.status != "" {
		b.WriteString(successStyle.Render(m.status))
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render(m.help()))
	return b.String()
}

func (m Model) identityLine() string {
	id := m.snapshot.Identity
	if !id.Authenticated() {
		return "not signed in"
	}
	return fmt.Sprintf("%s · %s · scope %s", id.Email, id.Role, m.snapshot.Scope)
}

func (m Model) tabsLine() string {
	tabs := make([]string, 0, len(m.snapshot.Tabs))
	for i, t := range m.snapshot.Tabs {
		label := fmt.Sprintf("%d %s (%d)", i+1, t.Title, t.Total)
		if t.Active {
			tabs = append(tabs, activeTabStyle.Render(label))
		} else {
			tabs = append(tabs, tabStyle.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func filtersLine(f explorer.Filters) string {
	orAny := func(v string) string {
		if v == "" {
			return "any"
		}
		return v
	}
	return fmt.Sprintf("search: %s   category: %s   date: %s", orAny(f.Query), orAny(f.Category), orAny(f.Date))
}

// detailPanel renders the open entry of the active tab, if any.
func (m Model) detailPanel() string {
	var (
		title   string
		raw     string
		payload details.Payload
		fields  [][2]string
	)
	d := m.snapshot.Detail
	switch {
	case d == nil:
		return ""
	case d.Log != nil:
		title = "Log " + itoa(d.ID())
		raw, payload = d.Payload()
	case d.Command != nil:
		title = "Command " + itoa(d.ID())
		raw, payload = d.Payload()
	case d.Session != nil:
		title = "Session " + itoa(d.ID())
		row := explorer.Sessions.Row(*d.Session)
		for i, col := range explorer.Sessions.Columns {
			fields = append(fields, [2]string{details.Humanize(col), row[i]})
		}
	}

	var b strings.Builder
	b.WriteString(labelStyle.Render(title))
	switch {
	case payload.Present:
		for _, r := range payload.Rows {
			fields = append(fields, [2]string{r.Label, r.Value})
		}
	case raw != "":
		fields = append(fields, [2]string{"Raw", raw})
	case len(fields) == 0:
		fields = append(fields, [2]string{"Details", "none"})
	}
	for _, f := range fields {
		b.WriteString("\n" + labelStyle.Render(f[0]+": ") + f[1])
	}
	return detailStyle.Render(b.String())
}

func (m Model) help() string {
	if m.mode != modeBrowse {
		return "enter apply · esc cancel"
	}
	keys := "tab/1-3 switch · n/p page · / search · t date · c category · x clear · enter details · r refresh · e export"
	if m.snapshot.Identity.CanViewAllLogs {
		keys += " · s scope"
	}
	return keys + " · q quit"
}
