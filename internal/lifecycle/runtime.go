package lifecycle

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

type Component interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Runtime starts components in registration order and stops them in reverse.
type Runtime struct {
	components []named
	logger     *log.Entry
}

type named struct {
	name      string
	component Component
}

func NewRuntime() *Runtime {
	return &Runtime{logger: log.WithField("object", "Runtime")}
}

func (r *Runtime) Register(name string, component Component) {
	if component == nil {
		return
	}
	r.components = append(r.components, named{name: name, component: component})
}

func (r *Runtime) Start(ctx context.Context) error {
	started := make([]named, 0, len(r.components))
	for _, c := range r.components {
		if err := c.component.Start(ctx); err != nil {
			_ = r.stop(ctx, started)
			return errors.Wrapf(err, "start %s", c.name)
		}
		r.logger.WithField("component", c.name).Debug("started")
		started = append(started, c)
	}
	return nil
}

func (r *Runtime) Stop(ctx context.Context) error {
	return r.stop(ctx, r.components)
}

// Shutdown stops every component within timeout, independently of any parent context.
func (r *Runtime) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return r.Stop(ctx)
}

func (r *Runtime) stop(ctx context.Context, components []named) error {
	var stopErr error
	for i := len(components) - 1; i >= 0; i-- {
		c := components[i]
		if err := c.component.Stop(ctx); err != nil {
			r.logger.WithError(err).WithField("component", c.name).Warn("stop failed")
			stopErr = multierr.Append(stopErr, errors.Wrapf(err, "stop %s", c.name))
			continue
		}
		r.logger.WithField("component", c.name).Debug("stopped")
	}
	return stopErr
}

type closer struct {
	io.Closer
}

// Closer adapts a resource that only needs closing on shutdown.
func Closer(c io.Closer) Component {
	return closer{c}
}

func (closer) Start(context.Context) error { return nil }

func (c closer) Stop(context.Context) error { return c.Close() }
