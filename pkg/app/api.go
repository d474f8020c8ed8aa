package app

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"dbkeeper/pkg/common"
	"dbkeeper/pkg/common/config"
	"dbkeeper/pkg/common/database"
	"dbkeeper/pkg/common/logger"
	"dbkeeper/pkg/common/restful"
	"dbkeeper/pkg/common/worker"
	"dbkeeper/pkg/lifecycle"
	"dbkeeper/pkg/statusapi"
)

// App wires the database holder, the HTTP surface and the process lifecycle.
type App struct {
	cfg    atomic.Pointer[config.Config]
	holder atomic.Pointer[database.Holder]
	proc   *lifecycle.Process
	srv    *restful.Server
	log    *zerolog.Logger
	ready  chan struct{}

	holderOpts []database.HolderOption
}

// Option configures an App
type Option func(*App, *[]lifecycle.Option)

// WithLifecycle passes options to the lifecycle process (exit/notify overrides).
func WithLifecycle(opts ...lifecycle.Option) Option {
	return func(_ *App, lo *[]lifecycle.Option) { *lo = append(*lo, opts...) }
}

// WithHolderOptions passes options to every database holder the app builds.
func WithHolderOptions(opts ...database.HolderOption) Option {
	return func(a *App, _ *[]lifecycle.Option) { a.holderOpts = append(a.holderOpts, opts...) }
}

// New builds an App; nothing is started and no connection is made.
func New(cfg *config.Config, opts ...Option) *App {
	a := &App{log: logger.WithComponent("app"), ready: make(chan struct{})}
	var lopts []lifecycle.Option
	for _, opt := range opts {
		opt(a, &lopts)
	}
	a.cfg.Store(cfg)
	a.holder.Store(database.NewHolder(databaseConfig(cfg), a.holderOpts...))
	a.proc = lifecycle.New(lopts...)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	a.srv = restful.NewServer(restful.FromConfig(cfg.Server)...)
	api := a.srv.Engine.Group("/api")
	statusapi.RegisterPoolRoutes(api.Group("/pool"))
	statusapi.RegisterDatabaseRoutes(api.Group("/db"), a)
	return a
}

func databaseConfig(cfg *config.Config) database.Config {
	return database.Config{
		Environment: cfg.Environment,
		URL:         cfg.DatabaseURL,
		Pool: database.PoolConfig{
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
			ConnectTimeout:  cfg.Database.ConnectTimeout,
			Eager:           cfg.Database.Eager,
		},
	}
}

// Client returns the shared database client from the current holder.
func (a *App) Client(ctx context.Context) (database.Client, error) {
	return a.holder.Load().Client(ctx)
}

// Holder returns the current database holder.
func (a *App) Holder() *database.Holder { return a.holder.Load() }

// Process exposes the lifecycle, mainly for tests.
func (a *App) Process() *lifecycle.Process { return a.proc }

// Ready is closed once Serve has registered every lifecycle hook.
func (a *App) Ready() <-chan struct{} { return a.ready }

// bindDatabaseShutdown registers the database release on every termination
// path. It only does so in production; elsewhere the process exit drops the
// connections.
func bindDatabaseShutdown(env string, proc *lifecycle.Process, shutdown lifecycle.Hook) (bool, error) {
	if env != config.EnvProduction {
		return false, nil
	}
	if err := proc.OnShutdown("database", shutdown); err != nil {
		return false, err
	}
	return true, nil
}

// reload re-reads configuration and swaps in a fresh holder. The new holder
// picks the live client up from the reload slot.
func (a *App) reload(context.Context) error {
	cfg, err := config.Reload()
	if err != nil {
		return err
	}
	prev := a.cfg.Load()
	if cfg.DatabaseURL != prev.DatabaseURL {
		a.log.Warn().Msg("database url changed; the running client keeps its original connection")
	}
	a.cfg.Store(cfg)
	a.holder.Store(database.NewHolder(databaseConfig(cfg), a.holderOpts...))
	a.log.Info().Msg("configuration reloaded")
	return nil
}

// Serve starts everything and blocks until ctx ends, the HTTP listener stops
// on its own, or a termination signal has been handled. The first two are the
// natural end of the process and run the shutdown hooks without exiting.
func (a *App) Serve(ctx context.Context) error {
	cfg := a.cfg.Load()
	a.log.Info().Str("env", cfg.Environment).Msg("Starting dbkeeper service")
	if common.IsDebug() {
		a.log.Debug().Msg("Debug mode enabled")
	}

	a.proc.Start()
	if err := worker.Init(8); err != nil {
		a.log.Error().Err(err).Msg("Worker pool init failed")
	}

	if cfg.Database.Eager {
		if _, err := a.Client(ctx); err != nil {
			return err
		}
	}

	if err := a.srv.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	if err := a.proc.OnShutdown("http", a.srv.Shutdown); err != nil {
		return err
	}
	if err := a.proc.OnShutdown("worker", func(context.Context) error {
		return worker.Release(5 * time.Second)
	}); err != nil {
		return err
	}
	bound, err := bindDatabaseShutdown(cfg.Environment, a.proc, func(ctx context.Context) error {
		return a.holder.Load().Shutdown(ctx)
	})
	if err != nil {
		return err
	}
	if !cfg.IsProduction() {
		if err := a.proc.OnReload("config", a.reload); err != nil {
			return err
		}
	}
	a.log.Info().Bool("database_shutdown_hooks", bound).Msg("lifecycle ready")

	sigCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a.proc.HandleSignals(sigCtx)
	close(a.ready)

	select {
	case <-ctx.Done():
		a.proc.BeforeExit(context.Background())
	case err := <-a.srv.Err():
		a.proc.BeforeExit(context.Background())
		return fmt.Errorf("http server stopped: %w", err)
	case <-a.proc.Context().Done():
	}
	a.log.Info().Msg("Service exited cleanly")
	return nil
}

// Run loads configuration from configPath and serves until terminated.
func Run(ctx context.Context, configPath string) error {
	cfg, err := common.Init(configPath)
	if err != nil {
		return err
	}
	return New(cfg).Serve(ctx)
}
