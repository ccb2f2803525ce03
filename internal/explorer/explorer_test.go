package explorer

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dsecure/portal/internal/cache"
	"github.com/dsecure/portal/internal/identity"
	"github.com/dsecure/portal/internal/models"
)

func scenarioLogs() []models.SystemLogEntry {
	return []models.SystemLogEntry{
		{LogID: 2, LogLevel: "info", UserEmail: "b@x.com", LogMessage: "login ok", CreatedAt: "2024-01-01T09:00:00Z"},
		{LogID: 1, LogLevel: "error", UserEmail: "a@x.com", LogMessage: "disk full", CreatedAt: "2024-01-02T10:00:00Z"},
	}
}

func ids[T any](c Collection[T], items []T) []int64 {
	out := make([]int64, len(items))
	for i, it := range items {
		out[i] = c.ID(it)
	}
	return out
}

func TestLevelFilterAndDefaultSort(t *testing.T) {
	logs := scenarioLogs()

	assert.Equal(t, []int64{1}, ids(Logs, Logs.Apply(logs, Filters{Category: "error"})))
	assert.Equal(t, []int64{1, 2}, ids(Logs, Logs.Apply(logs, Filters{})))
	assert.Equal(t, []int64{2, 1}, ids(Logs, logs), "input must not be reordered")
}

func TestQueryMatchesMessageOrEmail(t *testing.T) {
	logs := scenarioLogs()

	assert.Equal(t, []int64{1}, ids(Logs, Logs.Apply(logs, Filters{Query: "DISK"})))
	assert.Equal(t, []int64{2}, ids(Logs, Logs.Apply(logs, Filters{Query: "b@x"})))
	assert.Equal(t, []int64{2}, ids(Logs, Logs.Apply(logs, Filters{Date: "2024-01-01"})))
	assert.Empty(t, Logs.Apply(logs, Filters{Category: "Error"}), "category match is exact")
}

func TestCategoriesAreDistinctAndSorted(t *testing.T) {
	logs := append(scenarioLogs(), models.SystemLogEntry{LogID: 3, LogLevel: "error"}, models.SystemLogEntry{LogID: 4})
	assert.Equal(t, []string{"error", "info"}, Logs.Categories(logs))
}

func TestExportCommandsScenario(t *testing.T) {
	e := New(adminIdentity(), nil)
	e.SetCommands([]models.CommandEntry{
		{CommandID: 7, CommandText: "wipe disk", CommandStatus: "completed", IssuedAt: "2024-05-30T08:00:00Z", UserEmail: "a@x.com", CommandJSON: `{"method":"dod"}`},
		{CommandID: 8, CommandText: "wipe usb", CommandStatus: "completed", IssuedAt: "2024-05-31T08:00:00Z", UserEmail: "b@x.com"},
		{CommandID: 9, CommandText: "reboot", CommandStatus: "pending", IssuedAt: "2024-05-31T09:00:00Z"},
	})
	e.SetTab(models.KindCommands)
	e.SetQuery("wipe")

	var buf bytes.Buffer
	name, err := e.Export(&buf, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "commands-2024-06-01.csv", name)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, Commands.Columns, records[0])
	assert.Equal(t, []string{"8", "wipe usb", "completed", "2024-05-31T08:00:00Z", "b@x.com", ""}, records[1])
	assert.Equal(t, []string{"7", "wipe disk", "completed", "2024-05-30T08:00:00Z", "a@x.com", `{"method":"dod"}`}, records[2])
}

func TestExportFileWritesIntoDir(t *testing.T) {
	e := New(adminIdentity(), nil)
	e.SetLogs(scenarioLogs())
	dir := t.TempDir()

	path, err := e.ExportFile(dir, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "logs-2024-06-01.csv"), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	records, err := csv.NewReader(bytes.NewReader(raw)).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 3)

	_, err = e.ExportFile(filepath.Join(dir, "missing"), time.Now())
	assert.Error(t, err)
}

func TestFilenameUsesUTCDate(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*60*60)
	now := time.Date(2024, 6, 2, 5, 0, 0, 0, loc)
	assert.Equal(t, "logs-2024-06-01.csv", Filename(models.KindLogs, now))
}

func TestExportIgnoresPagination(t *testing.T) {
	e := New(adminIdentity(), nil, WithPageSize(2))
	seeds := make([]int, 5)
	for i := range seeds {
		seeds[i] = i
	}
	e.SetSessions(sampleSessions(seeds))
	e.SetTab(models.KindSessions)

	var buf bytes.Buffer
	_, err := e.Export(&buf, time.Now())
	require.NoError(t, err)
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 6)
}

func TestSnapshotClampsPage(t *testing.T) {
	e := New(adminIdentity(), nil)
	seeds := make([]int, 45)
	for i := range seeds {
		seeds[i] = i
	}
	e.SetLogs(sampleLogs(seeds))
	e.SetPage(9)

	s := e.Snapshot()
	page, size, totalPages, total := s.Current()
	assert.Equal(t, 3, page)
	assert.Equal(t, DefaultPageSize, size)
	assert.Equal(t, 3, totalPages)
	assert.Equal(t, 45, total)
	assert.Len(t, s.Logs.Items, 5)
	assert.Equal(t, 3, e.View().Page)

	require.Len(t, s.Tabs, 3)
	assert.True(t, s.Tabs[0].Active)
	assert.Equal(t, 45, s.Tabs[0].Total)
}

func TestFilterChangeResetsPage(t *testing.T) {
	v := NewView()
	v.SetPage(4)
	v.SetQuery("disk")
	assert.Equal(t, 1, v.Page)

	v.SetPage(3)
	v.SetQuery("disk")
	assert.Equal(t, 3, v.Page, "unchanged filter keeps the page")

	v.SetTab(v.Tab)
	assert.Equal(t, "disk", v.Filters.Query, "re-selecting the active tab keeps filters")
}

func TestDetailTogglePerTab(t *testing.T) {
	v := NewView()
	v.ToggleDetail(1)
	v.ToggleDetail(2)
	id, ok := v.OpenDetail(models.KindLogs)
	require.True(t, ok)
	assert.Equal(t, int64(2), id)

	v.SetTab(models.KindCommands)
	_, ok = v.OpenDetail(models.KindCommands)
	assert.False(t, ok)
	v.ToggleDetail(9)

	id, ok = v.OpenDetail(models.KindLogs)
	require.True(t, ok)
	assert.Equal(t, int64(2), id)

	v.ToggleDetail(9)
	_, ok = v.OpenDetail(models.KindCommands)
	assert.False(t, ok)
}

func TestSnapshotDetailSpansPages(t *testing.T) {
	e := New(identity.Resolve(identity.Static(identity.Record{Email: "a@x.com"})), nil, WithPageSize(1))
	logs := scenarioLogs()
	logs[1].LogDetailsJSON = `{"device_id":"abc"}`
	e.SetLogs(models.NormalizeLogs(logs))

	e.ToggleDetail(1)
	e.SetPage(2)
	s := e.Snapshot()
	assert.Equal(t, []int64{2}, ids(Logs, s.Logs.Items))
	require.NotNil(t, s.Detail)
	require.NotNil(t, s.Detail.Log)
	assert.Equal(t, int64(1), s.Detail.ID())
	raw, payload := s.Detail.Payload()
	assert.Equal(t, `{"device_id":"abc"}`, raw)
	assert.True(t, payload.Present)

	e.SetQuery("login")
	s = e.Snapshot()
	assert.True(t, s.HasDetail)
	assert.Nil(t, s.Detail, "a filtered-out entry has no detail")

	e.ToggleDetail(2)
	require.NotNil(t, e.Snapshot().Detail)
	e.ToggleDetail(2)
	assert.Nil(t, e.Snapshot().Detail)
}

func TestScopeAllRequiresElevatedRole(t *testing.T) {
	f := &fakeFetcher{}
	e := New(userIdentity(), NewLoader(f))

	changed, err := e.SetScope(context.Background(), models.ScopeAll, nil)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, models.ScopeByEmail, e.View().Scope)
	assert.Zero(t, f.calls.Load())

	res, err := NewLoader(f).Load(context.Background(), userIdentity(), models.ScopeAll, e, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ScopeByEmail, res.Scope)
	for _, s := range f.scopes {
		assert.Equal(t, models.ScopeByEmail, s)
	}
}

func TestScopeChangeReloads(t *testing.T) {
	f := &fakeFetcher{logs: scenarioLogs()}
	e := New(adminIdentity(), NewLoader(f))

	changed, err := e.SetScope(context.Background(), models.ScopeAll, nil)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, int32(3), f.calls.Load())
	for i := range f.scopes {
		assert.Equal(t, models.ScopeAll, f.scopes[i])
		assert.Equal(t, "admin@x.com", f.emails[i])
	}
	assert.Len(t, e.Snapshot().Logs.Items, 2)
}

func TestLoaderPaintsCacheBeforeNetwork(t *testing.T) {
	storage := cache.NewMemoryStorage()
	ctx := context.Background()

	first := &fakeFetcher{logs: scenarioLogs(), commands: sampleCommands([]int{1, 2})}
	e := New(adminIdentity(), NewLoader(first, WithCache(storage, "test")))
	_, err := e.Load(ctx, nil)
	require.NoError(t, err)

	second := &fakeFetcher{failLogs: true, commands: sampleCommands([]int{3})}
	var (
		mu      sync.Mutex
		updates []Update
	)
	observe := func(u Update) {
		mu.Lock()
		updates = append(updates, u)
		mu.Unlock()
	}
	e2 := New(adminIdentity(), NewLoader(second, WithCache(storage, "test")))
	res, err := e2.Load(ctx, observe)
	require.NoError(t, err)
	assert.Equal(t, []models.Kind{models.KindLogs}, res.Failed)

	origins := map[models.Kind][]Origin{}
	for _, u := range updates {
		origins[u.Kind] = append(origins[u.Kind], u.Origin)
	}
	assert.Equal(t, []Origin{OriginCache, OriginFailure}, origins[models.KindLogs])
	assert.Equal(t, []Origin{OriginCache, OriginNetwork}, origins[models.KindCommands])
	assert.Equal(t, []Origin{OriginCache, OriginNetwork}, origins[models.KindSessions])

	s := e2.Snapshot()
	assert.Empty(t, s.Logs.Items)
	assert.Equal(t, 1, s.Tabs[1].Total)
}

func TestLoaderCacheIsPerUser(t *testing.T) {
	storage := cache.NewMemoryStorage()
	ctx := context.Background()

	f := &fakeFetcher{logs: scenarioLogs()}
	_, err := NewLoader(f, WithCache(storage, "test")).Load(ctx, adminIdentity(), models.ScopeByEmail, New(adminIdentity(), nil), nil, nil)
	require.NoError(t, err)

	var painted []Update
	other := &fakeFetcher{failLogs: true, failCommands: true, failSessions: true}
	_, err = NewLoader(other, WithCache(storage, "test")).Load(ctx, userIdentity(), models.ScopeByEmail, New(userIdentity(), nil), nil, func(u Update) {
		if u.Origin == OriginCache {
			painted = append(painted, u)
		}
	})
	require.NoError(t, err)
	assert.Empty(t, painted)
}

func TestLoaderNormalizesDetails(t *testing.T) {
	f := &fakeFetcher{logs: []models.SystemLogEntry{{LogID: 1, CreatedAt: "2024-01-01", LogDetailsJSON: `{"device_id":"abc","passes":3}`}}}
	e := New(adminIdentity(), NewLoader(f))
	_, err := e.Load(context.Background(), nil)
	require.NoError(t, err)

	items := e.Snapshot().Logs.Items
	require.Len(t, items, 1)
	require.True(t, items[0].Details.Present)
	assert.Equal(t, "Device Id", items[0].Details.Rows[0].Label)
}
