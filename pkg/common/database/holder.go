package database

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"dbkeeper/pkg/common/logger"
)

var (
	ErrConstruct = errors.New("database client construction failed")
	ErrClosed    = errors.New("database client has been shut down")
)

// Holder owns the process's single database client. It is built once by
// the entry point and passed to whatever needs database access.
type Holder struct {
	cfg       Config
	construct Constructor
	log       *zerolog.Logger
	models    []interface{}

	mu     sync.Mutex
	client Client
	closed bool

	shutdownOnce sync.Once
	shutdownErr  error
}

// HolderOption customizes a Holder
type HolderOption func(*Holder)

// WithConstructor replaces OpenClient, mainly for tests.
func WithConstructor(c Constructor) HolderOption { return func(h *Holder) { h.construct = c } }

func WithLogger(l *zerolog.Logger) HolderOption { return func(h *Holder) { h.log = l } }

// WithModels auto-migrates the given models right after construction.
func WithModels(models ...interface{}) HolderOption {
	return func(h *Holder) { h.models = append(h.models, models...) }
}

// NewHolder creates an empty holder; nothing connects until Client is called.
func NewHolder(cfg Config, opts ...HolderOption) *Holder {
	h := &Holder{cfg: cfg, construct: OpenClient}
	for _, opt := range opts {
		opt(h)
	}
	if h.log == nil {
		h.log = logger.WithComponent("database")
	}
	return h
}

func (h *Holder) production() bool { return h.cfg.Environment == EnvProduction }

// Config returns the configuration the holder was created with.
func (h *Holder) Config() Config { return h.cfg }

// Client returns the shared client, constructing it on first use. Outside
// production an instance left in the reload slot by an earlier holder is
// reused instead of building a second pool. A failed construction is not
// cached.
func (h *Holder) Client(ctx context.Context) (Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrClosed
	}
	if h.client != nil {
		return h.client, nil
	}

	if !h.production() {
		if c, ok := Slot(SlotKey); ok {
			h.log.Debug().Str("slot", SlotKey).Msg("reusing database client across reload")
			h.client = c
			return c, nil
		}
	}

	opts := OptionsFor(h.cfg)
	c, err := h.construct(ctx, opts)
	if err != nil {
		h.log.Error().Err(err).Str("env", h.cfg.Environment).Msg("database client construction failed")
		return nil, fmt.Errorf("%w: %w", ErrConstruct, err)
	}
	if len(h.models) > 0 {
		if err := c.DB().AutoMigrate(h.models...); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("%w: auto migrate failed: %w", ErrConstruct, err)
		}
	}

	h.client = c
	if !h.production() {
		storeSlot(SlotKey, c)
	}
	h.log.Info().Str("env", h.cfg.Environment).Strs("log", logLevelStrings(opts.Log)).
		Str("error_format", string(opts.ErrorFormat)).Msg("database client initialized")
	return c, nil
}

// Shutdown releases the client's connections. Only the first call does the
// work; concurrent callers block until it finishes and all of them get the
// same result. Failures are logged and returned, never retried.
func (h *Holder) Shutdown(ctx context.Context) error {
	h.shutdownOnce.Do(func() {
		h.mu.Lock()
		c := h.client
		h.client = nil
		h.closed = true
		h.mu.Unlock()

		if c == nil && !h.production() {
			c, _ = Slot(SlotKey)
		}
		if c == nil {
			h.log.Debug().Msg("database shutdown: no client to release")
			return
		}
		clearSlot(SlotKey, c)

		if err := c.Close(); err != nil {
			h.shutdownErr = fmt.Errorf("database disconnect failed: %w", err)
			h.log.Error().Err(err).Msg("database disconnect failed")
			return
		}
		h.log.Info().Msg("database connections released")
	})
	return h.shutdownErr
}

func logLevelStrings(levels []LogLevel) []string {
	out := make([]string, len(levels))
	for i, l := range levels {
		out[i] = string(l)
	}
	return out
}
