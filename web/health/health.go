// Package health reports whether the portal can reach its backend and cache.
package health

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	apierrors "github.com/dsecure/portal/internal/api/errors"
)

// Status is the state of one probe or of the portal as a whole.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// rank orders statuses from best to worst.
func (s Status) rank() int {
	switch s {
	case StatusUnhealthy:
		return 2
	case StatusDegraded:
		return 1
	}
	return 0
}

// ComponentStatus is the outcome of one probe.
type ComponentStatus struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency"`
}

// Response is the /health body.
type Response struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentStatus `json:"components"`
	Version    string                     `json:"version"`
	Uptime     string                     `json:"uptime"`
}

// CheckFunc probes one dependency.
type CheckFunc func(ctx context.Context) error

type check struct {
	name     string
	fn       CheckFunc
	critical bool
}

// outcome runs the probe. A failure of a critical probe is unhealthy, any
// other failure is degraded.
func (p check) outcome(ctx context.Context) ComponentStatus {
	began := time.Now()
	var err error
	if p.fn == nil {
		err = errNotConfigured
	} else {
		err = p.fn(ctx)
	}
	cs := ComponentStatus{Status: StatusHealthy, Message: "ok", Latency: time.Since(began).Round(time.Microsecond).String()}
	if err != nil {
		cs.Status = StatusDegraded
		if p.critical || p.fn == nil {
			cs.Status = StatusUnhealthy
		}
		cs.Message = err.Error()
	}
	return cs
}

var errNotConfigured = errors.New("probe not configured")

// Checker aggregates probes.
type Checker struct {
	version string
	started time.Time

	mu      sync.RWMutex
	probes  []check
	timeout time.Duration
}

// NewChecker returns a checker reporting version, with a five second probe
// deadline.
func NewChecker(version string) *Checker {
	return &Checker{version: version, started: time.Now(), timeout: 5 * time.Second}
}

// AddCritical registers a probe whose failure makes the portal unhealthy.
func (c *Checker) AddCritical(name string, fn CheckFunc) *Checker {
	return c.add(check{name: name, fn: fn, critical: true})
}

// AddOptional registers a probe whose failure only degrades the portal.
func (c *Checker) AddOptional(name string, fn CheckFunc) *Checker {
	return c.add(check{name: name, fn: fn})
}

func (c *Checker) add(p check) *Checker {
	c.mu.Lock()
	c.probes = append(c.probes, p)
	c.mu.Unlock()
	return c
}

// SetTimeout bounds every Check.
func (c *Checker) SetTimeout(d time.Duration) {
	c.mu.Lock()
	c.timeout = d
	c.mu.Unlock()
}

// Check runs every probe concurrently under the checker's deadline. The
// overall status is the worst component status.
func (c *Checker) Check(ctx context.Context) *Response {
	c.mu.RLock()
	probes := append([]check(nil), c.probes...)
	timeout := c.timeout
	c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		res = &Response{
			Status:     StatusHealthy,
			Components: make(map[string]ComponentStatus, len(probes)),
			Version:    c.version,
			Uptime:     time.Since(c.started).Round(time.Second).String(),
		}
	)
	for _, p := range probes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cs := p.outcome(ctx)
			mu.Lock()
			defer mu.Unlock()
			res.Components[p.name] = cs
			if cs.Status.rank() > res.Status.rank() {
				res.Status = cs.Status
			}
		}()
	}
	wg.Wait()
	return res
}

// Handler serves the report. Only an unhealthy portal answers 503.
func (c *Checker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := c.Check(r.Context())
		code := http.StatusOK
		if res.Status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		apierrors.JSON(w, code, res)
	}
}
