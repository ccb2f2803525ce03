package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dsecure/portal/internal/cache"
	"github.com/dsecure/portal/internal/identity"
	"github.com/dsecure/portal/pkg/config"
	"github.com/dsecure/portal/web/api"
	"github.com/dsecure/portal/web/health"
	"github.com/dsecure/portal/web/portal"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func fakeBackend(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"data":[]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(apiURL string) *config.Config {
	return &config.Config{
		APIURL:   apiURL,
		PageSize: 7,
		Cache:    config.CacheConfig{Backend: cache.BackendMemory, TTL: time.Minute, Namespace: "portal"},
	}
}

func testRouter(t *testing.T, backendURL string) http.Handler {
	return testRouterWithLog(t, backendURL, discard())
}

func testRouterWithLog(t *testing.T, backendURL string, access *slog.Logger) http.Handler {
	cfg := testConfig(backendURL)
	client := api.NewClient(cfg.APIURL)
	storage := cache.NewMemoryStorage()
	sessions := portal.NewSessions(explorerFactory(cfg, client, storage, discard()), time.Minute, discard())
	checker := health.NewChecker("test").
		AddCritical("backend", client.Ping).
		AddOptional("cache", storage.Ping)
	return newRouter(portal.NewHandler(sessions, discard()), checker, access)
}

func TestHealthReportsBackend(t *testing.T) {
	backend := fakeBackend(t)
	router := testRouter(t, backend.URL)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp health.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, health.StatusHealthy, resp.Status)
	assert.Equal(t, "test", resp.Version)
	assert.Contains(t, resp.Components, "backend")
	assert.Contains(t, resp.Components, "cache")
}

func TestHealthUnavailableWithoutBackend(t *testing.T) {
	backend := fakeBackend(t)
	url := backend.URL
	backend.Close()
	router := testRouter(t, url)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRootRedirectsToExplorer(t *testing.T) {
	router := testRouter(t, fakeBackend(t).URL)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/admin/logs", rec.Header().Get("Location"))
}

func TestExplorerRouteMounted(t *testing.T) {
	router := testRouter(t, fakeBackend(t).URL)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/logs", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestExplorerFactoryUsesConfig(t *testing.T) {
	backend := fakeBackend(t)
	cfg := testConfig(backend.URL)
	storage := cache.NewMemoryStorage()
	factory := explorerFactory(cfg, api.NewClient(cfg.APIURL), storage, discard())

	req := httptest.NewRequest(http.MethodGet, "/admin/logs", nil)
	e := factory(req, identity.Identity{Email: "admin@x.com", Role: "superadmin"})

	_, size, _, _ := e.Snapshot().Current()
	assert.Equal(t, 7, size)

	_, err := e.Load(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, storage.Len())
}

func TestAccessLogCarriesActingUser(t *testing.T) {
	backend := fakeBackend(t)
	var logs bytes.Buffer
	router := testRouterWithLog(t, backend.URL, slog.New(slog.NewJSONHandler(&logs, nil)))

	req := httptest.NewRequest(http.MethodGet, "/admin/logs/data?tab=commands", nil)
	req.AddCookie(&http.Cookie{Name: identity.PrimaryCookie, Value: url.PathEscape(`{"email":"a@x.com","role":"admin"}`)})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var line map[string]any
	require.NoError(t, json.Unmarshal(logs.Bytes(), &line))
	assert.Equal(t, "request", line["msg"])
	assert.Equal(t, "/admin/logs/data", line["path"])
	assert.Equal(t, "a@x.com", line["user_email"])
	assert.Equal(t, "commands", line["tab"])
	assert.NotEmpty(t, line["request_id"])

	logs.Reset()
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, json.Unmarshal(logs.Bytes(), &line))
	assert.Equal(t, "/health", line["path"])
}
