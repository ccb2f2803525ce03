// Package main provides the entry point for the admin log explorer portal.
package main

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/dsecure/portal/internal/api/middleware"
	"github.com/dsecure/portal/internal/cache"
	"github.com/dsecure/portal/internal/explorer"
	"github.com/dsecure/portal/internal/identity"
	"github.com/dsecure/portal/internal/shutdown"
	"github.com/dsecure/portal/pkg/config"
	"github.com/dsecure/portal/pkg/logger"
	"github.com/dsecure/portal/web/api"
	"github.com/dsecure/portal/web/health"
	"github.com/dsecure/portal/web/portal"
	"github.com/dsecure/portal/web/views"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Default().Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	log := logger.New(logger.ParseLevel(cfg.Log.Level), cfg.Log.Format == "json")
	slog.SetDefault(log.Logger)

	storage, err := cache.Open(cache.OptionsFromConfig(cfg.Cache))
	if err != nil {
		log.Error("failed to open cache", "backend", cfg.Cache.Backend, "error", err)
		os.Exit(1)
	}

	client := api.NewClient(cfg.APIURL).WithTimeout(cfg.RequestTimeout)
	sessions := portal.NewSessions(explorerFactory(cfg, client, storage, log.Logger), cfg.SessionIdleTimeout, log.Logger)
	sessions.Start(time.Minute)

	checker := health.NewChecker(version).
		AddCritical("backend", client.Ping).
		AddOptional("cache", storage.Ping)

	server := &http.Server{
		Addr:              cfg.WebAddr,
		Handler:           newRouter(portal.NewHandler(sessions, log.Logger), checker, log.Logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	coordinator := shutdown.NewCoordinator(
		shutdown.WithTimeout(cfg.ShutdownTimeout),
		shutdown.WithLogger(log.Logger),
	)
	coordinator.Register(shutdown.Closer("cache", storage))
	coordinator.Register(shutdown.Background("session-janitor", sessions))
	coordinator.Register(shutdown.Server("web", server))

	go func() {
		log.Info("starting web portal",
			"addr", cfg.WebAddr,
			"api_url", client.BaseURL(),
			"cache", cfg.Cache.Backend,
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	coordinator.WaitForSignal()
	os.Exit(coordinator.ExitCode())
}

// explorerFactory builds a session explorer that fetches with the caller's
// token and paints from the shared cache.
func explorerFactory(cfg *config.Config, client *api.Client, storage cache.Storage, log *slog.Logger) portal.Factory {
	return func(r *http.Request, id identity.Identity) *explorer.Explorer {
		loader := explorer.NewLoader(
			client.WithToken(portal.RequestToken(r)),
			explorer.WithCache(storage, cfg.Cache.Namespace, cache.WithTTL(cfg.Cache.TTL), cache.WithLogger(log)),
			explorer.WithLoaderLogger(log),
		)
		return explorer.New(id, loader, explorer.WithPageSize(cfg.PageSize))
	}
}

func newRouter(h *portal.Handler, checker *health.Checker, log *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.Recovery(log))

	r.Get("/health", checker.Handler())
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, views.BasePath, http.StatusFound)
	})
	h.Routes(r)

	return r
}
