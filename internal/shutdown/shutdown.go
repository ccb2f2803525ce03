// Package shutdown coordinates graceful shutdown of the portal's HTTP server,
// session janitor and cache storage on SIGINT or SIGTERM.
package shutdown

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// DefaultTimeout bounds the whole shutdown sequence.
const DefaultTimeout = 30 * time.Second

// Component is something that can be shut down within a deadline.
type Component interface {
	Name() string
	Shutdown(ctx context.Context) error
}

// Coordinator shuts registered components down in reverse registration
// order, one at a time, under a shared deadline.
type Coordinator struct {
	timeout time.Duration
	log     *slog.Logger
	signals chan os.Signal

	mu    sync.Mutex
	steps []Component

	once     sync.Once
	finished chan struct{}
	code     int
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithTimeout overrides DefaultTimeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Coordinator) { c.log = log }
}

// WithSignalChannel replaces OS signal delivery.
func WithSignalChannel(ch chan os.Signal) Option {
	return func(c *Coordinator) { c.signals = ch }
}

// NewCoordinator returns a coordinator with no components.
func NewCoordinator(opts ...Option) *Coordinator {
	c := &Coordinator{
		timeout:  DefaultTimeout,
		log:      slog.Default(),
		finished: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register adds a component. Components registered later shut down first.
func (c *Coordinator) Register(comp Component) {
	c.mu.Lock()
	c.steps = append(c.steps, comp)
	c.mu.Unlock()
	c.log.Debug("shutdown step registered", "component", comp.Name())
}

// WaitForSignal blocks until SIGINT or SIGTERM arrives, then shuts down.
func (c *Coordinator) WaitForSignal() {
	ch := c.signals
	if ch == nil {
		ch = make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(ch)
	}
	sig := <-ch
	c.log.Info("shutdown requested", "signal", sig.String())
	c.Shutdown()
}

// Shutdown runs once; later calls return immediately. A failing component is
// logged and the sequence continues. Running past the deadline skips the
// remaining components and sets exit code 1.
func (c *Coordinator) Shutdown() {
	c.once.Do(c.run)
}

func (c *Coordinator) run() {
	defer close(c.finished)

	c.mu.Lock()
	steps := append([]Component(nil), c.steps...)
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	c.log.Info("shutting down", "components", len(steps), "timeout", c.timeout.String())
	for i := len(steps) - 1; i >= 0; i-- {
		step := steps[i]
		if ctx.Err() != nil {
			c.log.Warn("deadline passed, skipping", "component", step.Name())
			continue
		}
		began := time.Now()
		if err := step.Shutdown(ctx); err != nil {
			c.log.Error("component failed to stop", "component", step.Name(), "error", err)
			continue
		}
		c.log.Info("component stopped", "component", step.Name(), "elapsed", time.Since(began).String())
	}

	if ctx.Err() != nil {
		c.log.Warn("shutdown deadline exceeded")
		c.code = 1
		return
	}
	c.log.Info("shutdown complete")
}

// Wait blocks until Shutdown has finished.
func (c *Coordinator) Wait() {
	<-c.finished
}

// ExitCode waits for Shutdown and reports 0 for a clean run, 1 when the
// deadline was exceeded.
func (c *Coordinator) ExitCode() int {
	<-c.finished
	return c.code
}
