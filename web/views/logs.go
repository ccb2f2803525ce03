// Package views renders the admin log explorer pages.
package views

import (
	"context"
	"time"

	"github.com/a-h/templ"

	"github.com/dsecure/portal/internal/details"
	"github.com/dsecure/portal/internal/explorer"
	"github.com/dsecure/portal/internal/models"
)

// BasePath is the mount point of the explorer pages.
const BasePath = "/admin/logs"

// LogsPageData is everything the logs page renders.
type LogsPageData struct {
	Snapshot      explorer.Snapshot
	Notifications []explorer.Notification
	Now           time.Time
}

// LogsPage renders the full admin logs page.
func LogsPage(data LogsPageData) templ.Component {
	return layout("Admin Logs", component(func(ctx context.Context, h *html) {
		s := data.Snapshot
		h.raw(`<main class="mx-auto max-w-7xl p-6 space-y-4">`)
		h.raw(`<header class="flex items-center justify-between">`)
		h.raw(`<h1 class="text-2xl font-semibold">Admin Logs</h1>`)
		h.render(ctx, toolbar(s))
		h.raw(`</header>`)
		h.render(ctx, notifications(data.Notifications))
		h.render(ctx, tabs(s))
		h.render(ctx, filters(s))
		if s.Loading {
			h.raw(`<p class="text-sm text-zinc-500" data-loading>Loading…</p>`)
		}
		switch s.Tab {
		case models.KindCommands:
			h.render(ctx, commandsTable(s))
		case models.KindSessions:
			h.render(ctx, sessionsTable(s, data.Now))
		default:
			h.render(ctx, logsTable(s))
		}
		h.render(ctx, pagination(s))
		h.raw(`</main>`)
	}))
}

func layout(title string, body templ.Component) templ.Component {
	return component(func(ctx context.Context, h *html) {
		h.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		h.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		h.f(`<title>%s · D-Secure</title>`, title)
		h.raw(`<link rel="stylesheet" href="/assets/css/app.css"></head>`)
		h.raw(`<body class="bg-white text-zinc-900">`)
		h.render(ctx, body)
		h.raw(`</body></html>`)
	})
}

func toolbar(s explorer.Snapshot) templ.Component {
	return component(func(ctx context.Context, h *html) {
		h.raw(`<div class="flex items-center gap-3">`)
		if s.Identity.Email != "" {
			h.f(`<span class="text-sm text-zinc-500">%s (%s)</span>`, s.Identity.Email, string(s.Identity.Role))
		}
		if s.Identity.CanViewAllLogs {
			if s.Scope == models.ScopeAll {
				h.f(`<a class="text-sm underline" href="%s">Show my logs</a>`, Link(BasePath, "scope", string(models.ScopeByEmail)))
			} else {
				h.f(`<a class="text-sm underline" href="%s">Show all logs</a>`, Link(BasePath, "scope", string(models.ScopeAll)))
			}
		}
		h.f(`<form method="post" action="%s/refresh"><button class="rounded border px-3 py-1 text-sm" type="submit">Refresh</button></form>`, BasePath)
		h.f(`<a class="rounded bg-indigo-600 px-3 py-1 text-sm text-white" href="%s/export">Export CSV</a>`, BasePath)
		h.raw(`</div>`)
	})
}

func notifications(items []explorer.Notification) templ.Component {
	return component(func(ctx context.Context, h *html) {
		if len(items) == 0 {
			return
		}
		h.raw(`<section class="space-y-2" aria-live="polite">`)
		for _, n := range items {
			h.f(`<div class="%s" role="alert"><strong>%s</strong> %s</div>`,
				NotificationClass(string(n.Level)), n.Title, n.Message)
		}
		h.raw(`</section>`)
	})
}

func tabs(s explorer.Snapshot) templ.Component {
	return component(func(ctx context.Context, h *html) {
		h.raw(`<nav class="flex gap-1 border-b" role="tablist">`)
		for _, t := range s.Tabs {
			h.f(`<a class="%s" role="tab" href="%s">%s <span class="text-xs text-zinc-400">%s</span></a>`,
				TabClass(t.Active), Link(BasePath, "tab", string(t.Kind)), t.Title, itoa(t.Total))
		}
		h.raw(`</nav>`)
	})
}

func filters(s explorer.Snapshot) templ.Component {
	return component(func(ctx context.Context, h *html) {
		label := "Level"
		if s.Tab != models.KindLogs {
			label = "Status"
		}
		h.f(`<form class="flex flex-wrap items-end gap-3" method="get" action="%s">`, BasePath)
		h.f(`<input type="search" name="q" value="%s" placeholder="Search" class="rounded border px-2 py-1 text-sm">`, s.Filters.Query)
		h.f(`<label class="text-sm">%s <select name="category" class="rounded border px-2 py-1">`, label)
		h.f(`<option value=""%s>All</option>`, selected(s.Filters.Category == ""))
		for _, c := range s.Categories {
			h.f(`<option value="%s"%s>%s</option>`, c, selected(c == s.Filters.Category), c)
		}
		h.raw(`</select></label>`)
		h.f(`<label class="text-sm">Date <input type="date" name="date" value="%s" class="rounded border px-2 py-1"></label>`, s.Filters.Date)
		h.raw(`<button type="submit" class="rounded border px-3 py-1 text-sm">Apply</button>`)
		h.raw(`</form>`)
	})
}

func selected(b bool) string {
	if b {
		return " selected"
	}
	return ""
}

func emptyRow(h *html, cols int) {
	h.f(`<tr><td colspan="%d" class="py-6 text-center text-sm text-zinc-500">No entries found.</td></tr>`, cols)
}

func detailToggle(h *html, id int64, open bool) {
	label := "Details"
	if open {
		label = "Hide"
	}
	h.f(`<a class="text-xs underline" href="%s">%s</a>`, Link(BasePath, "detail", itoa(id)), label)
}

func detailPanel(h *html, cols int, raw string, p details.Payload) {
	h.f(`<tr class="bg-zinc-50"><td colspan="%d" class="p-3">`, cols)
	if p.Present {
		h.raw(`<dl class="grid grid-cols-2 gap-x-4 gap-y-1 text-sm">`)
		for _, row := range p.Rows {
			h.f(`<dt class="font-medium">%s</dt><dd class="font-mono">%s</dd>`, row.Label, row.Value)
		}
		h.raw(`</dl>`)
	} else if raw != "" {
		h.f(`<pre class="whitespace-pre-wrap text-xs">%s</pre>`, raw)
	} else {
		h.raw(`<p class="text-sm text-zinc-500">No details.</p>`)
	}
	h.raw(`</td></tr>`)
}

// offPageDetail renders the open entry below the table rows when paging or
// sorting has moved it off the current page.
func offPageDetail(h *html, cols int, kind string, d *explorer.Detail) {
	raw, p := d.Payload()
	h.f(`<tr class="border-b bg-zinc-50"><td colspan="%d" class="pt-3 text-xs font-medium">%s %s, not on this page `, cols-1, kind, itoa(d.ID()))
	h.raw(`</td><td>`)
	detailToggle(h, d.ID(), true)
	h.raw(`</td></tr>`)
	detailPanel(h, cols, raw, p)
}

func tableHead(h *html, headers ...string) {
	h.raw(`<table class="w-full text-left text-sm"><thead><tr>`)
	for _, hd := range headers {
		h.f(`<th class="border-b py-2 pr-3">%s</th>`, hd)
	}
	h.raw(`</tr></thead><tbody>`)
}

func logsTable(s explorer.Snapshot) templ.Component {
	return component(func(ctx context.Context, h *html) {
		const cols = 6
		tableHead(h, "ID", "User", "Level", "Message", "Created", "")
		if len(s.Logs.Items) == 0 {
			emptyRow(h, cols)
		}
		shown := false
		for _, e := range s.Logs.Items {
			open := s.HasDetail && s.OpenDetail == e.LogID
			shown = shown || open
			h.f(`<tr class="border-b"><td class="py-2 pr-3">%s</td><td>%s</td>`, itoa(e.LogID), e.UserEmail)
			h.f(`<td><span class="%s">%s</span></td><td>%s</td><td>%s</td><td>`,
				BadgeClass(e.LogLevel), e.LogLevel, e.LogMessage, e.CreatedAt)
			detailToggle(h, e.LogID, open)
			h.raw(`</td></tr>`)
			if open {
				detailPanel(h, cols, string(e.LogDetailsJSON), e.Details)
			}
		}
		if s.Detail != nil && s.Detail.Log != nil && !shown {
			offPageDetail(h, cols, "Log", s.Detail)
		}
		h.raw(`</tbody></table>`)
	})
}

func commandsTable(s explorer.Snapshot) templ.Component {
	return component(func(ctx context.Context, h *html) {
		const cols = 6
		tableHead(h, "ID", "Command", "Status", "Issued", "User", "")
		if len(s.Commands.Items) == 0 {
			emptyRow(h, cols)
		}
		shown := false
		for _, e := range s.Commands.Items {
			open := s.HasDetail && s.OpenDetail == e.CommandID
			shown = shown || open
			h.f(`<tr class="border-b"><td class="py-2 pr-3">%s</td><td class="font-mono">%s</td>`, itoa(e.CommandID), e.CommandText)
			h.f(`<td><span class="%s">%s</span></td><td>%s</td><td>%s</td><td>`,
				BadgeClass(e.CommandStatus), e.CommandStatus, e.IssuedAt, e.UserEmail)
			detailToggle(h, e.CommandID, open)
			h.raw(`</td></tr>`)
			if open {
				detailPanel(h, cols, string(e.CommandJSON), e.Details)
			}
		}
		if s.Detail != nil && s.Detail.Command != nil && !shown {
			offPageDetail(h, cols, "Command", s.Detail)
		}
		h.raw(`</tbody></table>`)
	})
}

func sessionsTable(s explorer.Snapshot, now time.Time) templ.Component {
	return component(func(ctx context.Context, h *html) {
		const cols = 8
		tableHead(h, "ID", "User", "Login", "Logout", "Duration", "IP", "Device", "Status")
		if len(s.Sessions.Items) == 0 {
			emptyRow(h, cols)
		}
		for _, e := range s.Sessions.Items {
			logout := e.LogoutTime
			if e.Active() {
				logout = "-"
			}
			duration := ""
			if d, ok := e.Duration(now); ok {
				duration = d.Round(time.Second).String()
			}
			h.f(`<tr class="border-b"><td class="py-2 pr-3">%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td>`,
				itoa(e.SessionID), e.UserEmail, e.LoginTime, logout, duration)
			h.f(`<td>%s</td><td>%s</td><td><span class="%s">%s</span></td></tr>`,
				e.IPAddress, e.DeviceInfo, BadgeClass(e.SessionStatus), e.SessionStatus)
		}
		h.raw(`</tbody></table>`)
	})
}

func pagination(s explorer.Snapshot) templ.Component {
	return component(func(ctx context.Context, h *html) {
		page, _, totalPages, total := s.Current()
		h.raw(`<nav class="flex items-center justify-between text-sm" aria-label="Pagination">`)
		h.f(`<span>Page %d of %d · %d entries</span><span class="flex gap-2">`, page, totalPages, total)
		if page > 1 {
			h.f(`<a class="underline" href="%s">Previous</a>`, Link(BasePath, "page", itoa(page-1)))
		}
		if page < totalPages {
			h.f(`<a class="underline" href="%s">Next</a>`, Link(BasePath, "page", itoa(page+1)))
		}
		h.raw(`</span></nav>`)
	})
}
