package lifecycle

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

type testComponent struct {
	name      string
	startErr  error
	stopErr   error
	events    *[]string
	startCall int
	stopCall  int
}

func (c *testComponent) Start(context.Context) error {
	c.startCall++
	if c.events != nil {
		*c.events = append(*c.events, "start:"+c.name)
	}
	return c.startErr
}

func (c *testComponent) Stop(context.Context) error {
	c.stopCall++
	if c.events != nil {
		*c.events = append(*c.events, "stop:"+c.name)
	}
	return c.stopErr
}

func newRuntime(components ...*testComponent) *Runtime {
	runtime := NewRuntime()
	for _, c := range components {
		runtime.Register(c.name, c)
	}
	return runtime
}

func TestRuntimeStartStopOrder(t *testing.T) {
	t.Parallel()

	events := make([]string, 0, 6)
	runtime := newRuntime(
		&testComponent{name: "one", events: &events},
		&testComponent{name: "two", events: &events},
		&testComponent{name: "three", events: &events},
	)
	if err := runtime.Start(context.Background()); err != nil {
		t.Fatalf("start runtime: %v", err)
	}
	if err := runtime.Shutdown(time.Second); err != nil {
		t.Fatalf("stop runtime: %v", err)
	}

	expected := []string{
		"start:one",
		"start:two",
		"start:three",
		"stop:three",
		"stop:two",
		"stop:one",
	}
	if !reflect.DeepEqual(events, expected) {
		t.Fatalf("unexpected order: got %v want %v", events, expected)
	}
}

func TestRuntimeStartFailureStopsStartedComponents(t *testing.T) {
	t.Parallel()

	events := make([]string, 0, 4)
	startErr := errors.New("boom")
	c1 := &testComponent{name: "one", events: &events}
	c2 := &testComponent{name: "two", events: &events, startErr: startErr}
	c3 := &testComponent{name: "three", events: &events}

	err := newRuntime(c1, c2, c3).Start(context.Background())
	if !errors.Is(err, startErr) {
		t.Fatalf("unexpected start error: %v", err)
	}
	if c1.stopCall != 1 {
		t.Fatalf("expected started component to be stopped once, got %d", c1.stopCall)
	}
	if c2.stopCall != 0 || c3.stopCall != 0 || c3.startCall != 0 {
		t.Fatalf("unexpected calls: c2 stop=%d c3 start=%d stop=%d", c2.stopCall, c3.startCall, c3.stopCall)
	}
	if !reflect.DeepEqual(events, []string{"start:one", "start:two", "stop:one"}) {
		t.Fatalf("unexpected events: %v", events)
	}
}

func TestRuntimeStopCollectsErrors(t *testing.T) {
	t.Parallel()

	first, second := errors.New("first"), errors.New("second")
	c1 := &testComponent{name: "one", stopErr: first}
	c2 := &testComponent{name: "two"}
	c3 := &testComponent{name: "three", stopErr: second}

	runtime := newRuntime(c1, c2, c3)
	runtime.Register("nil", nil)
	err := runtime.Stop(context.Background())
	if len(multierr.Errors(err)) != 2 {
		t.Fatalf("expected two errors, got %v", err)
	}
	if !errors.Is(err, first) || !errors.Is(err, second) {
		t.Fatalf("errors not preserved: %v", err)
	}
	if c1.stopCall != 1 || c2.stopCall != 1 || c3.stopCall != 1 {
		t.Fatalf("every component must be stopped")
	}
}

type closeRecorder struct {
	closed int
}

func (c *closeRecorder) Close() error {
	c.closed++
	return nil
}

func TestCloserStopsOnce(t *testing.T) {
	t.Parallel()

	resource := &closeRecorder{}
	runtime := NewRuntime()
	runtime.Register("db", Closer(resource))
	if err := runtime.Start(context.Background()); err != nil {
		t.Fatalf("start runtime: %v", err)
	}
	if resource.closed != 0 {
		t.Fatalf("closed on start")
	}
	if err := runtime.Shutdown(time.Second); err != nil {
		t.Fatalf("stop runtime: %v", err)
	}
	if resource.closed != 1 {
		t.Fatalf("expected one close, got %d", resource.closed)
	}
}
