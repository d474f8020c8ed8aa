package lifecycle

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// journal records the order of hook completions and exit calls.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(s string) {
	j.mu.Lock()
	j.entries = append(j.entries, s)
	j.mu.Unlock()
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

func newRecorded(j *journal, codes chan int) *Process {
	return New(WithExit(func(code int) {
		j.add("exit")
		if codes != nil {
			codes <- code
		}
	}))
}

func TestInterruptExitsZeroAfterShutdown(t *testing.T) {
	for _, ev := range []Event{EventInterrupt, EventTerminate} {
		t.Run(string(ev), func(t *testing.T) {
			j := &journal{}
			codes := make(chan int, 1)
			p := newRecorded(j, codes)
			p.Start()
			require.NoError(t, p.OnShutdown("database", func(ctx context.Context) error {
				time.Sleep(10 * time.Millisecond)
				j.add("database released")
				return nil
			}))

			p.Trigger(context.Background(), ev)

			assert.Equal(t, 0, <-codes)
			assert.Equal(t, []string{"database released", "exit"}, j.list())
		})
	}
}

func TestBeforeExitDoesNotExit(t *testing.T) {
	j := &journal{}
	p := newRecorded(j, nil)
	require.NoError(t, p.OnShutdown("database", func(ctx context.Context) error {
		j.add("database released")
		return nil
	}))

	p.BeforeExit(context.Background())
	assert.Equal(t, []string{"database released"}, j.list())
}

func TestHooksRunInOrderDespiteErrors(t *testing.T) {
	j := &journal{}
	p := newRecorded(j, nil)
	require.NoError(t, p.OnShutdown("http", func(ctx context.Context) error {
		j.add("http")
		return errors.New("listener already closed")
	}))
	require.NoError(t, p.OnShutdown("database", func(ctx context.Context) error {
		j.add("database")
		return nil
	}))

	p.Trigger(context.Background(), EventTerminate)
	assert.Equal(t, []string{"http", "database", "exit"}, j.list())
}

func TestConcurrentTerminationRunsGuardedReleaseOnce(t *testing.T) {
	var releases atomic.Int32
	var once sync.Once
	release := func(ctx context.Context) error {
		once.Do(func() {
			time.Sleep(20 * time.Millisecond)
			releases.Add(1)
		})
		return nil
	}

	var exits atomic.Int32
	p := New(WithExit(func(code int) {
		assert.Equal(t, 0, code)
		assert.Equal(t, int32(1), releases.Load())
		exits.Add(1)
	}))
	require.NoError(t, p.OnShutdown("database", release))

	var wg sync.WaitGroup
	for _, ev := range []Event{EventInterrupt, EventTerminate} {
		wg.Add(1)
		go func(ev Event) {
			defer wg.Done()
			p.Trigger(context.Background(), ev)
		}(ev)
	}
	wg.Wait()

	assert.Equal(t, int32(1), releases.Load())
	assert.Equal(t, int32(2), exits.Load())
}

func TestDuplicateHook(t *testing.T) {
	p := New()
	require.NoError(t, p.OnShutdown("database", func(context.Context) error { return nil }))
	assert.Error(t, p.OnShutdown("database", func(context.Context) error { return nil }))
	require.NoError(t, p.OnReload("database", func(context.Context) error { return nil }))

	p.Stop()
	assert.Error(t, p.OnShutdown("late", func(context.Context) error { return nil }))
}

// fakeSignals captures the channel handed to signal.Notify.
type fakeSignals struct {
	ch      chan chan<- os.Signal
	stopped atomic.Bool
}

func (f *fakeSignals) notify(c chan<- os.Signal, _ ...os.Signal) { f.ch <- c }
func (f *fakeSignals) stop(chan<- os.Signal)                     { f.stopped.Store(true) }

func TestHandleSignals(t *testing.T) {
	fs := &fakeSignals{ch: make(chan chan<- os.Signal, 1)}
	codes := make(chan int, 1)
	reloaded := make(chan struct{}, 1)
	p := New(WithNotify(fs.notify, fs.stop), WithExit(func(code int) { codes <- code }))
	p.Start()
	require.NoError(t, p.OnReload("config", func(context.Context) error {
		reloaded <- struct{}{}
		return nil
	}))
	released := make(chan struct{}, 1)
	require.NoError(t, p.OnShutdown("database", func(context.Context) error {
		released <- struct{}{}
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.HandleSignals(ctx)
	sigs := <-fs.ch

	sigs <- syscall.SIGHUP
	select {
	case <-reloaded:
	case <-time.After(2 * time.Second):
		t.Fatal("reload hook did not run")
	}
	assert.Empty(t, released)

	sigs <- syscall.SIGTERM
	select {
	case code := <-codes:
		assert.Equal(t, 0, code)
	case <-time.After(2 * time.Second):
		t.Fatal("exit was not called")
	}
	assert.Len(t, released, 1)

	cancel()
	select {
	case <-p.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("signal loop did not stop")
	}
	assert.True(t, fs.stopped.Load())
}

func TestUptime(t *testing.T) {
	p := New()
	if p.Uptime() != 0 {
		t.Fatalf("uptime should be 0 before start")
	}
	p.Start()
	time.Sleep(5 * time.Millisecond)
	if p.Uptime() <= 0 {
		t.Fatalf("uptime should be >0 after start")
	}
	p.Stop()
	if p.Context().Err() == nil {
		t.Fatalf("context should be cancelled after stop")
	}
}
