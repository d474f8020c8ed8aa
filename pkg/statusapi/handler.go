package statusapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dbkeeper/pkg/common/database"
	"dbkeeper/pkg/common/worker"
)

// ProbeTimeout bounds a single health ping.
const ProbeTimeout = 2 * time.Second

// Source hands out the shared database client.
type Source interface {
	Client(ctx context.Context) (database.Client, error)
}

// RegisterPoolRoutes registers pool stats endpoints
func RegisterPoolRoutes(rg *gin.RouterGroup) {
	rg.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"pool": worker.StatsSnapshot()})
	})
}

// RegisterDatabaseRoutes registers database health and pool statistics endpoints
func RegisterDatabaseRoutes(rg *gin.RouterGroup, src Source) {
	rg.GET("/health", func(c *gin.Context) { health(c, src) })
	rg.GET("/stats", func(c *gin.Context) { stats(c, src) })
}

func health(c *gin.Context, src Source) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), ProbeTimeout)
	defer cancel()

	start := time.Now()
	err := worker.Run(ctx, func(ctx context.Context) error {
		client, err := src.Client(ctx)
		if err != nil {
			return err
		}
		return client.Ping(ctx)
	})
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "latency_ms": time.Since(start).Milliseconds()})
}

func stats(c *gin.Context, src Source) {
	client, err := src.Client(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	s := client.Stats()
	c.JSON(http.StatusOK, gin.H{
		"max_open_conns":      s.MaxOpenConnections,
		"open_conns":          s.OpenConnections,
		"in_use":              s.InUse,
		"idle":                s.Idle,
		"wait_count":          s.WaitCount,
		"wait_duration_ms":    s.WaitDuration.Milliseconds(),
		"max_idle_closed":     s.MaxIdleClosed,
		"max_lifetime_closed": s.MaxLifetimeClosed,
	})
}
