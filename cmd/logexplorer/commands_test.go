package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backend struct {
	mu    sync.Mutex
	paths []string
	url   string
}

func (b *backend) seen() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.paths...)
}

func newBackend(t *testing.T) *backend {
	b := &backend{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.paths = append(b.paths, r.URL.Path)
		b.mu.Unlock()
		switch {
		case strings.HasPrefix(r.URL.Path, "/api/logs"):
			w.Write([]byte(`{"success":true,"data":[
				{"log_id":1,"log_level":"error","user_email":"a@x.com","log_message":"disk full","created_at":"2024-01-02T10:00:00Z"},
				{"log_id":2,"log_level":"info","user_email":"b@x.com","log_message":"login ok","created_at":"2024-01-01T09:00:00Z"}]}`))
		case strings.HasPrefix(r.URL.Path, "/api/commands"):
			w.Write([]byte(`{"success":true,"data":[{"command_id":7,"command_text":"wipe disk","command_status":"completed","issued_at":"2024-05-30T08:00:00Z"}]}`))
		default:
			w.Write([]byte(`{"success":false,"error":"sessions unavailable"}`))
		}
	}))
	t.Cleanup(srv.Close)
	b.url = srv.URL
	return b
}

// isolate keeps the test away from the developer's environment and files.
func isolate(t *testing.T) string {
	for _, key := range []string{"CONFIG_FILE", "API_URL", "CACHE_BACKEND", "PAGE_SIZE", "DSECURE_TOKEN", "DSECURE_EMAIL", "DSECURE_ROLE"} {
		t.Setenv(key, "")
	}
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())
	return home
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd(&out, &errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), errOut.String(), err
}

func TestListPrintsPage(t *testing.T) {
	isolate(t)
	b := newBackend(t)

	out, errOut, err := run(t, "--api-url", b.url, "--email", "a@x.com", "list", "--tab", "commands")
	require.NoError(t, err)

	assert.Contains(t, out, "COMMAND_ID")
	assert.Contains(t, out, "wipe disk")
	assert.Contains(t, out, "Page 1/1, 1 rows")
	assert.Contains(t, errOut, "Data Loading Error", "the failed sessions fetch is reported")
}

func TestListAppliesFilters(t *testing.T) {
	isolate(t)
	b := newBackend(t)

	out, _, err := run(t, "--api-url", b.url, "--email", "a@x.com", "list", "--category", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "disk full")
	assert.NotContains(t, out, "login ok")

	out, _, err = run(t, "--api-url", b.url, "--email", "a@x.com", "list", "--tab", "sessions")
	require.NoError(t, err)
	assert.Contains(t, out, "No sessions found")
}

func TestListRejectsBadFlags(t *testing.T) {
	isolate(t)
	b := newBackend(t)

	_, _, err := run(t, "--api-url", b.url, "--email", "a@x.com", "list", "--tab", "devices")
	assert.ErrorContains(t, err, "invalid --tab")

	_, _, err = run(t, "--api-url", b.url, "--email", "a@x.com", "list", "--page", "0")
	assert.ErrorContains(t, err, "invalid --page")
	assert.Empty(t, b.seen())
}

func TestMissingIdentityNeverFetches(t *testing.T) {
	isolate(t)
	b := newBackend(t)

	_, errOut, err := run(t, "--api-url", b.url, "list")
	assert.ErrorContains(t, err, "no signed-in user")
	assert.Contains(t, errOut, "Authentication Error")
	assert.Empty(t, b.seen())
}

func TestIdentityFileTakesPrecedence(t *testing.T) {
	isolate(t)
	b := newBackend(t)
	path := filepath.Join(t.TempDir(), "user.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"user":{"email":"root@x.com","role":"superadmin"}}`), 0o600))

	_, _, err := run(t, "--api-url", b.url, "--email", "a@x.com", "--identity", path, "list", "--scope", "all")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"/api/logs", "/api/commands", "/api/sessions"}, b.seen())
}

func TestFallbackIdentityFile(t *testing.T) {
	home := isolate(t)
	b := newBackend(t)
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".dsecure"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(home, fallbackIdentityFile), []byte(`{"email":"ops@x.com"}`), 0o600))

	_, _, err := run(t, "--api-url", b.url, "list")
	require.NoError(t, err)
	require.Len(t, b.seen(), 3)
	for _, p := range b.seen() {
		assert.Contains(t, p, "/by-email/ops@x.com")
	}
}

func TestScopeAllDowngradedForUsers(t *testing.T) {
	isolate(t)
	b := newBackend(t)

	_, errOut, err := run(t, "--api-url", b.url, "--email", "a@x.com", "list", "--scope", "all")
	require.NoError(t, err)
	assert.Contains(t, errOut, "only admins can view all logs")
	require.Len(t, b.seen(), 3)
	for _, p := range b.seen() {
		assert.Contains(t, p, "/by-email/a@x.com")
	}
}

func TestExportWritesCSV(t *testing.T) {
	isolate(t)
	b := newBackend(t)
	dir := t.TempDir()

	out, _, err := run(t, "--api-url", b.url, "--email", "a@x.com", "export", "--tab", "logs", "--query", "disk", "--out", dir)
	require.NoError(t, err)

	path := strings.TrimSpace(out)
	assert.Equal(t, dir, filepath.Dir(path))
	assert.True(t, strings.HasPrefix(filepath.Base(path), "logs-"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "log_id,user_email,log_level,log_message,log_details_json,created_at", lines[0])
	assert.Contains(t, lines[1], "disk full")
}
