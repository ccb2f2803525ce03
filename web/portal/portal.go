// Package portal serves the admin log explorer over HTTP.
package portal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/dsecure/portal/internal/api/errors"
	"github.com/dsecure/portal/internal/api/middleware"
	"github.com/dsecure/portal/internal/details"
	"github.com/dsecure/portal/internal/explorer"
	"github.com/dsecure/portal/internal/identity"
	"github.com/dsecure/portal/internal/models"
	"github.com/dsecure/portal/pkg/logger"
	"github.com/dsecure/portal/web/api"
	"github.com/dsecure/portal/web/views"
)

// Handler serves the explorer routes.
type Handler struct {
	sessions *Sessions
	logger   *slog.Logger
	now      func() time.Time
}

// NewHandler creates a handler over sessions.
func NewHandler(sessions *Sessions, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		sessions: sessions,
		logger:   log.With("component", "portal"),
		now:      time.Now,
	}
}

// Routes mounts the explorer under views.BasePath.
func (h *Handler) Routes(r chi.Router) {
	r.Route(views.BasePath, func(r chi.Router) {
		r.Use(middleware.Identity)
		r.Get("/", h.handlePage)
		r.Get("/data", h.handleData)
		r.Post("/refresh", h.handleRefresh)
		r.Get("/export", h.handleExport)
		r.Get("/ws", h.handleStream)
	})
}

func (h *Handler) identity(r *http.Request) identity.Identity {
	id, _ := middleware.IdentityFrom(r.Context())
	return id
}

// explorerFor resolves the caller's session and runs the first load of a
// new one.
func (h *Handler) explorerFor(w http.ResponseWriter, r *http.Request) *explorer.Explorer {
	e, sid, fresh := h.sessions.Resolve(w, r, h.identity(r))
	if fresh {
		h.load(r.Context(), e, sid, nil)
	}
	return e
}

// load runs a load cycle. A backend auth rejection is surfaced as an
// authentication notification.
func (h *Handler) load(ctx context.Context, e *explorer.Explorer, sid string, observe explorer.Observer) explorer.Result {
	log := logger.From(ctx, h.logger).With("session_id", sid)
	var unauthorized atomic.Bool
	res, err := e.Load(ctx, func(u explorer.Update) {
		if u.Err != nil && errors.Is(u.Err, api.ErrUnauthorized) {
			unauthorized.Store(true)
		}
		if observe != nil {
			observe(u)
		}
	})
	if err != nil {
		log.Warn("explorer load rejected", "error", err)
		return res
	}
	if unauthorized.Load() {
		e.Inbox().Notify(explorer.Notification{
			Level:   explorer.LevelError,
			Title:   explorer.TitleAuthentication,
			Message: "Your session has expired. Please log in again.",
			At:      h.now(),
		})
	}
	log.Debug("explorer loaded", "scope", res.Scope, "failed", len(res.Failed))
	return res
}

// viewParams are the query parameters that change the view.
var viewParams = []string{"tab", "q", "category", "date", "page", "scope", "detail"}

func hasViewParams(q url.Values) bool {
	for _, p := range viewParams {
		if q.Has(p) {
			return true
		}
	}
	return false
}

// applyParams applies query parameters in a fixed order: tab first since it
// resets filters, scope last since it reloads.
func (h *Handler) applyParams(ctx context.Context, e *explorer.Explorer, q url.Values) apierrors.Params {
	var errs apierrors.Params

	if q.Has("tab") {
		raw := strings.ToLower(strings.TrimSpace(q.Get("tab")))
		if kind := models.ParseKind(raw); string(kind) == raw {
			e.SetTab(kind)
		} else {
			errs.Reject("tab", "tab must be one of logs, commands, sessions")
		}
	}
	if q.Has("q") {
		e.SetQuery(q.Get("q"))
	}
	if q.Has("category") {
		e.SetCategory(q.Get("category"))
	}
	if q.Has("date") {
		e.SetDate(strings.TrimSpace(q.Get("date")))
	}
	if q.Has("page") {
		if n, err := strconv.Atoi(q.Get("page")); err == nil && n >= 1 {
			e.SetPage(n)
		} else {
			errs.Reject("page", "page must be a positive integer")
		}
	}
	if q.Has("detail") {
		if id, err := strconv.ParseInt(q.Get("detail"), 10, 64); err == nil {
			e.ToggleDetail(id)
		} else {
			errs.Reject("detail", "detail must be an entry id")
		}
	}
	if q.Has("scope") {
		if _, err := e.SetScope(ctx, models.ParseScope(q.Get("scope")), nil); err != nil {
			logger.From(ctx, h.logger).Warn("scope reload rejected", "error", err)
		}
	}
	return errs
}

func (h *Handler) handlePage(w http.ResponseWriter, r *http.Request) {
	e := h.explorerFor(w, r)

	if hasViewParams(r.URL.Query()) {
		h.applyParams(r.Context(), e, r.URL.Query())
		http.Redirect(w, r, views.BasePath, http.StatusSeeOther)
		return
	}

	status := http.StatusOK
	if !e.Identity().Authenticated() {
		status = http.StatusUnauthorized
	}

	var buf bytes.Buffer
	data := views.LogsPageData{
		Snapshot:      e.Snapshot(),
		Notifications: e.Inbox().Drain(),
		Now:           h.now(),
	}
	if err := views.LogsPage(data).Render(r.Context(), &buf); err != nil {
		h.writeError(w, r, apierrors.Internal("failed to render page"), err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

// DataResponse is the JSON form of the explorer view.
type DataResponse struct {
	explorer.Snapshot
	Detail        *details.Payload        `json:"detail,omitempty"`
	Notifications []explorer.Notification `json:"notifications"`
}

func (h *Handler) handleData(w http.ResponseWriter, r *http.Request) {
	e := h.explorerFor(w, r)

	if apiErr := h.applyParams(r.Context(), e, r.URL.Query()).Err(); apiErr != nil {
		h.writeError(w, r, apiErr, nil)
		return
	}

	s := e.Snapshot()
	resp := DataResponse{Snapshot: s, Notifications: e.Inbox().Drain()}
	if resp.Notifications == nil {
		resp.Notifications = []explorer.Notification{}
	}
	if s.Detail != nil && (s.Detail.Log != nil || s.Detail.Command != nil) {
		_, payload := s.Detail.Payload()
		resp.Detail = &payload
	}

	status := http.StatusOK
	if !s.Identity.Authenticated() {
		status = http.StatusUnauthorized
	}
	apierrors.JSON(w, status, resp)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	e, sid, _ := h.sessions.Resolve(w, r, h.identity(r))
	h.load(r.Context(), e, sid, nil)
	http.Redirect(w, r, views.BasePath, http.StatusSeeOther)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	e := h.explorerFor(w, r)
	if !e.Identity().Authenticated() {
		h.writeError(w, r, apierrors.Unauthorized("sign in to export logs"), nil)
		return
	}

	var buf bytes.Buffer
	name, err := e.Export(&buf, h.now())
	if err != nil {
		h.writeError(w, r, apierrors.Internal("failed to export"), err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, apiErr *apierrors.APIError, cause error) {
	if cause != nil {
		logger.From(r.Context(), h.logger).Error(apiErr.Message, "error", cause, "path", r.URL.Path)
	}
	apierrors.Write(w, r, apiErr)
}
