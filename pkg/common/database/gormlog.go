package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DefaultSlowThreshold marks queries worth a warning.
const DefaultSlowThreshold = 200 * time.Millisecond

// gormLogger routes gorm output through zerolog, filtered by the client's LogLevels.
type gormLogger struct {
	log           zerolog.Logger
	query         bool
	info          bool
	warn          bool
	err           bool
	parameterized bool
	slow          time.Duration
}

func newGormLogger(l zerolog.Logger, opts Options) *gormLogger {
	return &gormLogger{
		log:           l,
		query:         opts.Logs(LogQuery),
		info:          opts.Logs(LogInfo),
		warn:          opts.Logs(LogWarn),
		err:           opts.Logs(LogError),
		parameterized: opts.ErrorFormat == ErrorFormatMinimal,
		slow:          DefaultSlowThreshold,
	}
}

// LogMode narrows output to gorm's level; query logging is kept only at Info.
func (g *gormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	c := *g
	c.err = c.err && level >= gormlogger.Error
	c.warn = c.warn && level >= gormlogger.Warn
	c.info = c.info && level >= gormlogger.Info
	c.query = c.query && level >= gormlogger.Info
	return &c
}

func (g *gormLogger) Info(_ context.Context, msg string, data ...interface{}) {
	if g.info {
		g.log.Info().Msg(fmt.Sprintf(msg, data...))
	}
}

func (g *gormLogger) Warn(_ context.Context, msg string, data ...interface{}) {
	if g.warn {
		g.log.Warn().Msg(fmt.Sprintf(msg, data...))
	}
}

func (g *gormLogger) Error(_ context.Context, msg string, data ...interface{}) {
	if g.err {
		g.log.Error().Msg(fmt.Sprintf(msg, data...))
	}
}

func (g *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	switch {
	case err != nil && g.err && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		g.log.Error().Err(err).Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", sql).Msg("query failed")
	case g.slow > 0 && elapsed > g.slow && g.warn:
		sql, rows := fc()
		g.log.Warn().Dur("elapsed", elapsed).Dur("threshold", g.slow).Int64("rows", rows).Str("sql", sql).Msg("slow query")
	case g.query:
		sql, rows := fc()
		g.log.Info().Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", sql).Msg("query")
	}
}

// ParamsFilter implements gorm.ParamsFilter; minimal error format keeps bound values out of logs.
func (g *gormLogger) ParamsFilter(_ context.Context, sql string, params ...interface{}) (string, []interface{}) {
	if g.parameterized {
		return sql, nil
	}
	return sql, params
}

var (
	_ gormlogger.Interface = (*gormLogger)(nil)
	_ gorm.ParamsFilter    = (*gormLogger)(nil)
)
