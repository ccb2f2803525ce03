package explorer

import "github.com/dsecure/portal/internal/models"

// View is the ephemeral per-visit state of the explorer.
type View struct {
	Tab     models.Kind
	Filters Filters
	Page    int
	Scope   models.Scope

	open map[models.Kind]int64
}

// NewView returns the initial view: system logs, no filters, page 1, own records.
func NewView() View {
	return View{
		Tab:   models.KindLogs,
		Page:  1,
		Scope: models.ScopeByEmail,
		open:  make(map[models.Kind]int64),
	}
}

// SetTab switches the active tab. Switching to a different tab clears the
// filters and returns to page 1.
func (v *View) SetTab(tab models.Kind) {
	if tab == v.Tab {
		return
	}
	v.Tab = tab
	v.Filters = Filters{}
	v.Page = 1
}

// SetQuery updates the free-text search.
func (v *View) SetQuery(q string) {
	v.setFilters(Filters{Query: q, Category: v.Filters.Category, Date: v.Filters.Date})
}

// SetCategory updates the level or status filter.
func (v *View) SetCategory(c string) {
	v.setFilters(Filters{Query: v.Filters.Query, Category: c, Date: v.Filters.Date})
}

// SetDate updates the date prefix filter.
func (v *View) SetDate(d string) {
	v.setFilters(Filters{Query: v.Filters.Query, Category: v.Filters.Category, Date: d})
}

// ClearFilters removes every filter.
func (v *View) ClearFilters() {
	v.setFilters(Filters{})
}

func (v *View) setFilters(f Filters) {
	if f == v.Filters {
		return
	}
	v.Filters = f
	v.Page = 1
}

// SetPage moves to page n. The page is clamped when rows are rendered.
func (v *View) SetPage(n int) {
	if n < 1 {
		n = 1
	}
	v.Page = n
}

// SetScope changes the scope and reports whether it changed. The unscoped
// view is only offered to roles that may see all logs.
func (v *View) SetScope(scope models.Scope, canViewAll bool) bool {
	if scope == models.ScopeAll && !canViewAll {
		scope = models.ScopeByEmail
	}
	if scope == v.Scope {
		return false
	}
	v.Scope = scope
	v.Page = 1
	return true
}

// ToggleDetail opens the detail panel of id on the active tab, closing any
// other open panel on that tab. Toggling the open entry closes it.
func (v *View) ToggleDetail(id int64) {
	if v.open == nil {
		v.open = make(map[models.Kind]int64)
	}
	if cur, ok := v.open[v.Tab]; ok && cur == id {
		delete(v.open, v.Tab)
		return
	}
	v.open[v.Tab] = id
}

// OpenDetail returns the id of the open detail panel on tab.
func (v View) OpenDetail(tab models.Kind) (int64, bool) {
	id, ok := v.open[tab]
	return id, ok
}
