package lifecycle

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"dbkeeper/pkg/common/logger"
)

// Event is a termination or reload trigger.
type Event string

const (
	// EventBeforeExit fires when the process is about to end on its own.
	EventBeforeExit Event = "beforeExit"
	EventInterrupt  Event = "SIGINT"
	EventTerminate  Event = "SIGTERM"
	// EventReload fires on SIGHUP; only reload hooks run.
	EventReload Event = "SIGHUP"
)

// Hook is awaited before the process moves on.
type Hook func(ctx context.Context) error

type namedHook struct {
	name string
	fn   Hook
}

// NotifyFunc subscribes c to the given signals; signal.Notify by default.
type NotifyFunc func(c chan<- os.Signal, sig ...os.Signal)

// Process encapsulates application lifecycle: start time, ordered shutdown
// hooks and the signals that trigger them.
type Process struct {
	mu        sync.RWMutex
	started   bool
	stopped   bool
	startTime time.Time
	shutdown  []namedHook
	reload    []namedHook
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}

	exit   func(code int)
	notify NotifyFunc
	stop   func(c chan<- os.Signal)
	log    *zerolog.Logger
}

// Option configures a Process
type Option func(*Process)

// WithExit replaces os.Exit, so tests can observe the exit code.
func WithExit(fn func(code int)) Option { return func(p *Process) { p.exit = fn } }

// WithNotify replaces signal.Notify / signal.Stop.
func WithNotify(notify NotifyFunc, stop func(c chan<- os.Signal)) Option {
	return func(p *Process) {
		p.notify = notify
		p.stop = stop
	}
}

func WithLogger(l *zerolog.Logger) Option { return func(p *Process) { p.log = l } }

// New creates a new unstarted Process.
func New(opts ...Option) *Process {
	p := &Process{
		exit:   os.Exit,
		notify: signal.Notify,
		stop:   signal.Stop,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = logger.WithComponent("lifecycle")
	}
	return p
}

// OnShutdown appends a hook run on beforeExit, SIGINT and SIGTERM, in
// registration order.
func (p *Process) OnShutdown(name string, h Hook) error {
	return p.add(&p.shutdown, name, h)
}

// OnReload appends a hook run on SIGHUP.
func (p *Process) OnReload(name string, h Hook) error {
	return p.add(&p.reload, name, h)
}

func (p *Process) add(list *[]namedHook, name string, h Hook) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return errors.New("process stopped")
	}
	for _, nh := range *list {
		if nh.name == name {
			return errors.New("hook already registered")
		}
	}
	*list = append(*list, namedHook{name: name, fn: h})
	return nil
}

// Start marks the process as started and prepares context.
func (p *Process) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.startTime = time.Now()
	p.started = true
}

// Stop cancels context and marks process stopped.
func (p *Process) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	if p.cancel != nil {
		p.cancel()
	}
	p.stopped = true
}

// Context is cancelled by Stop.
func (p *Process) Context() context.Context {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.ctx == nil {
		return context.Background()
	}
	return p.ctx
}

// Trigger runs the hooks for ev and waits for them. Hook errors are logged
// and the remaining hooks still run. SIGINT and SIGTERM then exit with 0.
func (p *Process) Trigger(ctx context.Context, ev Event) {
	p.mu.RLock()
	hooks := p.shutdown
	if ev == EventReload {
		hooks = p.reload
	}
	hooks = append([]namedHook(nil), hooks...)
	p.mu.RUnlock()

	p.log.Info().Str("event", string(ev)).Int("hooks", len(hooks)).Msg("lifecycle event")
	for _, h := range hooks {
		if err := h.fn(ctx); err != nil {
			p.log.Error().Err(err).Str("event", string(ev)).Str("hook", h.name).Msg("hook failed")
		}
	}

	switch ev {
	case EventInterrupt, EventTerminate:
		p.Stop()
		p.exit(0)
	case EventBeforeExit:
		p.Stop()
	}
}

// BeforeExit runs the shutdown hooks without exiting.
func (p *Process) BeforeExit(ctx context.Context) {
	p.Trigger(ctx, EventBeforeExit)
}

// HandleSignals listens for SIGINT, SIGTERM and SIGHUP until ctx is done.
// Each signal is handled on its own goroutine, so a second termination
// signal arriving mid-shutdown does not wait behind the first.
func (p *Process) HandleSignals(ctx context.Context) {
	sigs := make(chan os.Signal, 4)
	p.notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		defer close(p.done)
		defer p.stop(sigs)
		for {
			select {
			case <-ctx.Done():
				return
			case s := <-sigs:
				ev := eventFor(s)
				if ev == "" {
					continue
				}
				if ev == EventReload {
					p.Trigger(ctx, ev)
					continue
				}
				go p.Trigger(context.Background(), ev)
			}
		}
	}()
}

// Done is closed once HandleSignals stops listening.
func (p *Process) Done() <-chan struct{} { return p.done }

func eventFor(s os.Signal) Event {
	switch s {
	case syscall.SIGINT:
		return EventInterrupt
	case syscall.SIGTERM:
		return EventTerminate
	case syscall.SIGHUP:
		return EventReload
	}
	return ""
}

// Uptime returns duration since start, zero if not started.
func (p *Process) Uptime() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.started {
		return 0
	}
	return time.Since(p.startTime)
}
