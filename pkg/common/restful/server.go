package restful

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"dbkeeper/pkg/common/compress"
	"dbkeeper/pkg/common/config"
	"dbkeeper/pkg/common/logger"
)

// Server wraps gin.Engine with graceful shutdown support
type Server struct {
	Engine      *gin.Engine
	httpServer  *http.Server
	addr        string
	shutdownDur time.Duration
	bodyLimit   int64
	compress    bool
	headers     []config.HeaderRule
	errc        chan error
}

// Option pattern for server configuration
type Option func(*Server)

func WithAddress(addr string) Option             { return func(s *Server) { s.addr = addr } }
func WithShutdownTimeout(d time.Duration) Option { return func(s *Server) { s.shutdownDur = d } }
func WithBodyLimit(n int64) Option               { return func(s *Server) { s.bodyLimit = n } }
func WithCompression(on bool) Option             { return func(s *Server) { s.compress = on } }

// WithHeaderRules sets response headers per path, exactly as configured.
func WithHeaderRules(rules []config.HeaderRule) Option {
	return func(s *Server) { s.headers = rules }
}

// FromConfig maps the server section of the application config to options.
func FromConfig(c config.ServerConfig) []Option {
	opts := []Option{
		WithBodyLimit(c.BodyLimit),
		WithCompression(c.Compress),
		WithHeaderRules(c.Headers),
	}
	if c.Address != "" {
		opts = append(opts, WithAddress(c.Address))
	}
	if c.ShutdownTimeout > 0 {
		opts = append(opts, WithShutdownTimeout(c.ShutdownTimeout))
	}
	return opts
}

// NewServer creates a new RESTful server instance
func NewServer(opts ...Option) *Server {
	s := &Server{
		addr:        ":8080",
		shutdownDur: 5 * time.Second,
		bodyLimit:   5 << 20,
		errc:        make(chan error, 1),
	}
	for _, opt := range opts {
		opt(s)
	}

	g := gin.New()
	// route panics to zerolog
	g.Use(RecoveryWithLogger())
	g.Use(HeaderRules(s.headers))
	if s.bodyLimit > 0 {
		g.Use(BodyLimit(s.bodyLimit))
	}
	g.Use(RequestLogger())
	// direct gin internal output to zerolog (avoid duplicate default logger middleware)
	gin.DefaultWriter = zerologWriter{}
	gin.DefaultErrorWriter = zerologWriter{}
	s.Engine = g

	var handler http.Handler = g
	if s.compress {
		h, err := compress.Handler(g, compress.DefaultOptions())
		if err != nil {
			logger.GetLogger().Warn().Err(err).Msg("response compression disabled")
		} else {
			handler = h
		}
	}
	s.httpServer = &http.Server{Addr: s.addr, Handler: handler}
	return s
}

// Handler returns the fully wrapped handler the server listens with
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// zerologWriter adapts gin's writer to zerolog
type zerologWriter struct{}

func (zerologWriter) Write(p []byte) (int, error) {
	msg := strings.TrimSpace(string(p))
	if msg != "" {
		logger.GetLogger().Info().Msg(msg)
	}
	return len(p), nil
}

// RecoveryWithLogger logs panic with stack/latency via zerolog (simplified)
func RecoveryWithLogger() gin.HandlerFunc {
	return gin.RecoveryWithWriter(zerologWriter{})
}

// Start runs the server asynchronously. If the listener fails or stops
// on its own, the error is delivered on Err.
func (s *Server) Start() error {
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.GetLogger().Error().Err(err).Msg("server error")
			s.errc <- err
		}
	}()
	logger.GetLogger().Info().Str("addr", s.addr).Msg("REST server started")
	return nil
}

// Err yields the error that ended the listener. A graceful Shutdown sends nothing.
func (s *Server) Err() <-chan error { return s.errc }

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, s.shutdownDur)
	defer cancel()
	return s.httpServer.Shutdown(ctxTimeout)
}

// RequestLogger logs basic request info
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()
		logger.GetLogger().Info().Int("status", status).Str("method", c.Request.Method).Str("path", c.Request.URL.Path).Dur("latency", latency).Msg("request")
	}
}

type compiledRule struct {
	re      *regexp.Regexp
	headers []config.Header
}

// HeaderRules applies every rule whose source matches the request path.
// A source is an anchored regular expression, e.g. "/api/(.*)".
func HeaderRules(rules []config.HeaderRule) gin.HandlerFunc {
	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		re, err := regexp.Compile("^" + r.Source + "$")
		if err != nil {
			logger.GetLogger().Warn().Err(err).Str("source", r.Source).Msg("skipping header rule")
			continue
		}
		compiled = append(compiled, compiledRule{re: re, headers: r.Headers})
	}
	return func(c *gin.Context) {
		for _, r := range compiled {
			if !r.re.MatchString(c.Request.URL.Path) {
				continue
			}
			for _, h := range r.headers {
				c.Writer.Header().Set(h.Key, h.Value)
			}
		}
		c.Next()
	}
}

// BodyLimit rejects request bodies larger than limit bytes
func BodyLimit(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > limit {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}
