package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"dbkeeper/pkg/common/logger"
)

// Client is the shared database handle. Close releases every pooled connection.
type Client interface {
	DB() *gorm.DB
	Ping(ctx context.Context) error
	Stats() sql.DBStats
	Close() error
}

// Constructor builds a Client from resolved options.
type Constructor func(ctx context.Context, opts Options) (Client, error)

// GormClient is the default Client: a gorm handle over a database/sql pool.
type GormClient struct {
	db    *gorm.DB
	sqlDB *sql.DB
	opts  Options

	closeOnce sync.Once
	closeErr  error
}

// Open builds a GormClient. Nothing is retried here; the driver owns retries.
func Open(ctx context.Context, opts Options) (*GormClient, error) {
	dialector, err := dialectorFor(opts.URL, opts.BaseDir)
	if err != nil {
		return nil, err
	}

	gcfg := &gorm.Config{
		Logger:         newGormLogger(*logger.WithComponent("gorm"), opts),
		TranslateError: opts.ErrorFormat == ErrorFormatMinimal,
		// Eager construction pings below, bounded by ConnectTimeout.
		DisableAutomaticPing: true,
	}
	db, err := gorm.Open(dialector, gcfg)
	if err != nil {
		return nil, fmt.Errorf("open db failed: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql pool failed: %w", err)
	}

	applyPool(sqlDB, opts.Pool)

	if opts.Pool.Eager {
		timeout := opts.Pool.ConnectTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		pctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := sqlDB.PingContext(pctx); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("database connection test failed: %w", err)
		}
	}

	return &GormClient{db: db, sqlDB: sqlDB, opts: opts}, nil
}

// OpenClient adapts Open to the Constructor signature.
func OpenClient(ctx context.Context, opts Options) (Client, error) {
	c, err := Open(ctx, opts)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func applyPool(sqlDB *sql.DB, p PoolConfig) {
	if p.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(p.MaxOpenConns)
	}
	if p.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(p.MaxIdleConns)
	}
	if p.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(p.ConnMaxLifetime)
	}
	if p.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(p.ConnMaxIdleTime)
	}
}

func (c *GormClient) DB() *gorm.DB { return c.db }

// Options returns the options the client was built with.
func (c *GormClient) Options() Options { return c.opts }

func (c *GormClient) Ping(ctx context.Context) error {
	return c.sqlDB.PingContext(ctx)
}

func (c *GormClient) Stats() sql.DBStats { return c.sqlDB.Stats() }

// Close releases the pool. Later calls return the first result.
func (c *GormClient) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.sqlDB.Close()
	})
	return c.closeErr
}
