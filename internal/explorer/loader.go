package explorer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dsecure/portal/internal/cache"
	"github.com/dsecure/portal/internal/identity"
	"github.com/dsecure/portal/internal/models"
)

// ErrAuthentication is returned when no acting-user email can be resolved.
var ErrAuthentication = errors.New("authentication required: acting user email could not be resolved")

// Fetcher retrieves the three entity collections from the backend.
type Fetcher interface {
	FetchLogs(ctx context.Context, scope models.Scope, email string) ([]models.SystemLogEntry, error)
	FetchCommands(ctx context.Context, scope models.Scope, email string) ([]models.CommandEntry, error)
	FetchSessions(ctx context.Context, scope models.Scope, email string) ([]models.SessionEntry, error)
}

// Target receives loaded collections. Each setter replaces the whole list.
type Target interface {
	SetLogs([]models.SystemLogEntry)
	SetCommands([]models.CommandEntry)
	SetSessions([]models.SessionEntry)
}

// Origin says where an update's rows came from.
type Origin string

const (
	OriginCache   Origin = "cache"
	OriginNetwork Origin = "network"
	OriginFailure Origin = "failure"
)

// Update reports one collection being applied to the target.
type Update struct {
	Kind   models.Kind `json:"kind"`
	Origin Origin      `json:"origin"`
	Count  int         `json:"count"`
	Err    error       `json:"-"`
}

// Observer is called for every applied update, possibly from several goroutines.
type Observer func(Update)

// Result summarizes a load cycle.
type Result struct {
	Scope    models.Scope
	Failed   []models.Kind
	Duration time.Duration
}

// Loader orchestrates cached paint and the three concurrent fetches.
type Loader struct {
	fetcher   Fetcher
	storage   cache.Storage
	namespace string
	cacheOpts []cache.Option
	logger    *slog.Logger
	now       func() time.Time
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithCache enables cached paint backed by storage. Keys are namespaced per
// acting user below namespace.
func WithCache(storage cache.Storage, namespace string, opts ...cache.Option) LoaderOption {
	return func(l *Loader) {
		l.storage = storage
		l.namespace = namespace
		l.cacheOpts = opts
	}
}

// WithLoaderLogger sets the logger.
func WithLoaderLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLoader creates a loader that fetches through fetcher.
func NewLoader(fetcher Fetcher, opts ...LoaderOption) *Loader {
	l := &Loader{
		fetcher:   fetcher,
		namespace: "dsecure:admin_logs",
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With("component", "loader")
	return l
}

// pipeline is the per-kind configuration of a load.
type pipeline[T any] struct {
	kind    models.Kind
	fetch   func(ctx context.Context, scope models.Scope, email string) ([]T, error)
	prepare func([]T) []T
	apply   func([]T)
}

func newPipelineCache[T any](l *Loader, email string) *cache.TimedCache[[]T] {
	if l.storage == nil {
		return nil
	}
	opts := append([]cache.Option{cache.WithLogger(l.logger)}, l.cacheOpts...)
	return cache.NewTimed[[]T](l.storage, l.namespace+":"+strings.ToLower(email), opts...)
}

func paint[T any](ctx context.Context, p pipeline[T], c *cache.TimedCache[[]T], observe Observer) {
	cached, ok := c.Get(ctx, string(p.kind))
	if !ok {
		return
	}
	cached = p.prepare(cached)
	p.apply(cached)
	observe(Update{Kind: p.kind, Origin: OriginCache, Count: len(cached)})
}

func fetchInto[T any](ctx context.Context, l *Loader, p pipeline[T], c *cache.TimedCache[[]T], scope models.Scope, email string, observe Observer) error {
	items, err := p.fetch(ctx, scope, email)
	if err != nil {
		l.logger.Warn("fetch failed, clearing collection",
			"kind", p.kind,
			"scope", scope,
			"error", err,
		)
		p.apply([]T{})
		observe(Update{Kind: p.kind, Origin: OriginFailure, Err: err})
		return err
	}
	if items == nil {
		items = []T{}
	}
	items = p.prepare(items)
	p.apply(items)
	c.Set(ctx, string(p.kind), items)
	observe(Update{Kind: p.kind, Origin: OriginNetwork, Count: len(items)})
	return nil
}

func same[T any](items []T) []T { return items }

// Load paints cached collections into target, then fetches all three kinds
// concurrently. A failed fetch empties only its own collection. When any
// fetch fails a single "Data Loading Error" notification is sent.
//
// Without an acting-user email Load sends one "Authentication Error"
// notification and returns ErrAuthentication without fetching.
func (l *Loader) Load(ctx context.Context, id identity.Identity, scope models.Scope, target Target, notifier Notifier, observe Observer) (Result, error) {
	if notifier == nil {
		notifier = NotifierFunc(func(Notification) {})
	}
	if observe == nil {
		observe = func(Update) {}
	}

	if !id.Authenticated() {
		notifier.Notify(Notification{
			Level:   LevelError,
			Title:   TitleAuthentication,
			Message: "Unable to determine the signed-in user. Please log in again.",
			At:      l.now(),
		})
		return Result{Scope: scope}, ErrAuthentication
	}

	if scope == models.ScopeAll && !id.CanViewAllLogs {
		l.logger.Debug("unscoped view not permitted for role, using by-email", "role", id.Role)
		scope = models.ScopeByEmail
	}

	start := l.now()
	logs := pipeline[models.SystemLogEntry]{
		kind:    models.KindLogs,
		fetch:   l.fetcher.FetchLogs,
		prepare: models.NormalizeLogs,
		apply:   target.SetLogs,
	}
	commands := pipeline[models.CommandEntry]{
		kind:    models.KindCommands,
		fetch:   l.fetcher.FetchCommands,
		prepare: models.NormalizeCommands,
		apply:   target.SetCommands,
	}
	sessions := pipeline[models.SessionEntry]{
		kind:    models.KindSessions,
		fetch:   l.fetcher.FetchSessions,
		prepare: same[models.SessionEntry],
		apply:   target.SetSessions,
	}
	logsCache := newPipelineCache[models.SystemLogEntry](l, id.Email)
	commandsCache := newPipelineCache[models.CommandEntry](l, id.Email)
	sessionsCache := newPipelineCache[models.SessionEntry](l, id.Email)

	paint(ctx, logs, logsCache, observe)
	paint(ctx, commands, commandsCache, observe)
	paint(ctx, sessions, sessionsCache, observe)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed []models.Kind
	)
	record := func(kind models.Kind, err error) {
		if err == nil {
			return
		}
		mu.Lock()
		failed = append(failed, kind)
		mu.Unlock()
	}

	wg.Add(3)
	go func() {
		defer wg.Done()
		record(models.KindLogs, fetchInto(ctx, l, logs, logsCache, scope, id.Email, observe))
	}()
	go func() {
		defer wg.Done()
		record(models.KindCommands, fetchInto(ctx, l, commands, commandsCache, scope, id.Email, observe))
	}()
	go func() {
		defer wg.Done()
		record(models.KindSessions, fetchInto(ctx, l, sessions, sessionsCache, scope, id.Email, observe))
	}()
	wg.Wait()

	res := Result{Scope: scope, Failed: sortKinds(failed), Duration: l.now().Sub(start)}
	if len(res.Failed) > 0 {
		names := make([]string, len(res.Failed))
		for i, k := range res.Failed {
			names[i] = string(k)
		}
		notifier.Notify(Notification{
			Level:   LevelWarning,
			Title:   TitleDataLoading,
			Message: fmt.Sprintf("Some data could not be loaded (%s). Showing what is available.", strings.Join(names, ", ")),
			At:      l.now(),
		})
	}

	l.logger.Info("load complete",
		"scope", scope,
		"failed", len(res.Failed),
		"duration", res.Duration.String(),
	)
	return res, nil
}

// sortKinds orders kinds by tab order.
func sortKinds(kinds []models.Kind) []models.Kind {
	if len(kinds) == 0 {
		return nil
	}
	out := make([]models.Kind, 0, len(kinds))
	for _, k := range models.Kinds {
		for _, f := range kinds {
			if f == k {
				out = append(out, k)
				break
			}
		}
	}
	return out
}
