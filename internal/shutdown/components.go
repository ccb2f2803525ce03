package shutdown

import (
	"context"
	"io"
	"net/http"
)

// Step is a named shutdown action.
type Step struct {
	name string
	run  func(ctx context.Context) error
}

// Name implements Component.
func (s Step) Name() string { return s.name }

// Shutdown implements Component.
func (s Step) Shutdown(ctx context.Context) error { return s.run(ctx) }

// Func wraps fn as a step.
func Func(name string, fn func(ctx context.Context) error) Step {
	return Step{name: name, run: fn}
}

// Server stops srv accepting connections and drains in-flight requests.
func Server(name string, srv *http.Server) Step {
	return Func(name, srv.Shutdown)
}

// Closer closes c, ignoring the deadline.
func Closer(name string, c io.Closer) Step {
	return Func(name, func(context.Context) error { return c.Close() })
}

// Stopper is a background loop whose Stop blocks until it has exited.
type Stopper interface {
	Stop()
}

// Background calls s.Stop and gives up waiting for it at the deadline.
func Background(name string, s Stopper) Step {
	return Func(name, func(ctx context.Context) error {
		stopped := make(chan struct{})
		go func() {
			defer close(stopped)
			s.Stop()
		}()
		select {
		case <-stopped:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}
