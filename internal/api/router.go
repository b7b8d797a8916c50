// Package api wires together all HTTP routes for the library version registry.
//
// Route grouping philosophy:
//   - The public lookup route (/api/library-versions) is intentionally
//     unauthenticated: client updaters poll it from unattended machines that
//     cannot hold credentials. It is protected instead by the user-agent
//     denylist, per-IP rate limiting, and the access log.
//   - Admin routes (/api/v1/admin/) always require a valid JWT issued by the
//     login endpoint.
package api

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/library-registry/library-registry/internal/api/admin"
	"github.com/library-registry/library-registry/internal/auth"
	"github.com/library-registry/library-registry/internal/cache"
	"github.com/library-registry/library-registry/internal/config"
	"github.com/library-registry/library-registry/internal/db/repositories"
	"github.com/library-registry/library-registry/internal/lookup"
	"github.com/library-registry/library-registry/internal/middleware"
	"github.com/library-registry/library-registry/internal/version"
)

// BackgroundServices holds references to background goroutines and resources
// that must be stopped during graceful shutdown. The caller (cmd/server) is
// responsible for calling Shutdown() after the HTTP server has drained.
type BackgroundServices struct {
	rateLimiters []*middleware.RateLimiter
	stops        []func()
}

// Shutdown stops all background goroutines.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	for _, rl := range bg.rateLimiters {
		rl.Stop()
	}
	for _, stop := range bg.stops {
		stop()
	}
	slog.Info("all background services stopped")
}

// AddStop registers an extra cleanup function to run on Shutdown.
func (bg *BackgroundServices) AddStop(stop func()) {
	bg.stops = append(bg.stops, stop)
}

// NewRouter creates and configures the Gin router. The cache store is built
// by the caller so its lifecycle (and, for Redis, its client) outlives the
// router.
func NewRouter(cfg *config.Config, db *sql.DB, store cache.Store) (*gin.Engine, *BackgroundServices, error) {
	router := gin.New()
	bg := &BackgroundServices{}

	// Repositories and domain services
	libRepo := repositories.NewLibraryRepository(db)
	versionRepo := repositories.NewVersionRepository(db)
	sqlxDB := sqlx.NewDb(db, "postgres")
	logRepo := repositories.NewRequestLogRepository(sqlxDB)

	resolver := version.NewResolver(versionRepo)
	lookupService := lookup.NewService(libRepo, resolver, store, cfg.Cache.TTL)

	authService, err := auth.NewService(cfg.Admin.JWTSecret, cfg.Admin.TokenTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize auth service: %w", err)
	}

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())

	// Health and readiness probes
	router.GET("/health", healthCheckHandler(db))
	router.GET("/ready", readinessHandler(db, store))

	// Public lookup route
	lookupHandlers := NewLookupHandlers(lookupService)

	blocked := cfg.Security.BlockedUserAgents
	if len(blocked) == 0 {
		blocked = middleware.DefaultBlockedUserAgents
	}

	public := router.Group("/api")
	public.Use(middleware.UserAgentFilterMiddleware(blocked))
	if cfg.Security.RateLimiting.Enabled {
		public.Use(newRateLimitMiddleware(cfg, store, bg))
	}
	public.Use(middleware.AccessLogMiddleware(store, logRepo))
	public.GET("/library-versions", lookupHandlers.LookupHandler())

	// Admin routes
	authHandlers := admin.NewAuthHandlers(&cfg.Admin, authService)
	libraryHandlers := admin.NewLibraryHandlers(db, lookupService)
	versionHandlers := admin.NewVersionHandlers(db, lookupService)
	logHandlers := admin.NewLogHandlers(sqlxDB)

	adminGroup := router.Group("/api/v1/admin")
	adminGroup.POST("/login", authHandlers.LoginHandler())

	protected := adminGroup.Group("")
	protected.Use(authService.Middleware())
	{
		protected.GET("/libraries", libraryHandlers.ListLibrariesHandler())
		protected.POST("/libraries", libraryHandlers.CreateLibraryHandler())
		protected.GET("/libraries/:id", libraryHandlers.GetLibraryHandler())
		protected.PUT("/libraries/:id", libraryHandlers.UpdateLibraryHandler())
		protected.DELETE("/libraries/:id", libraryHandlers.DeleteLibraryHandler())

		protected.GET("/libraries/:id/versions", versionHandlers.ListVersionsHandler())
		protected.POST("/libraries/:id/versions", versionHandlers.CreateVersionHandler())
		protected.PUT("/versions/:id", versionHandlers.UpdateVersionHandler())
		protected.DELETE("/versions/:id", versionHandlers.DeleteVersionHandler())

		protected.GET("/logs/stats", logHandlers.StatsHandler())
		protected.DELETE("/logs", logHandlers.ClearLogsHandler())
	}

	return router, bg, nil
}

// newRateLimitMiddleware picks the rate-limit implementation that matches the
// cache backend: in-process token buckets for the memory backend, a shared
// Redis budget when every replica already talks to the same Redis.
func newRateLimitMiddleware(cfg *config.Config, store cache.Store, bg *BackgroundServices) gin.HandlerFunc {
	if redisStore, ok := store.(*cache.RedisStore); ok {
		return middleware.RedisRateLimitMiddleware(
			redisStore.Client(),
			cfg.Security.RateLimiting.RequestsPerMinute,
			cfg.Security.RateLimiting.Burst,
		)
	}

	limiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		RequestsPerMinute: cfg.Security.RateLimiting.RequestsPerMinute,
		BurstSize:         cfg.Security.RateLimiting.Burst,
		CleanupInterval:   5 * time.Minute,
	})
	bg.rateLimiters = append(bg.rateLimiters, limiter)
	return middleware.RateLimitMiddleware(limiter)
}

// healthCheckHandler returns the health status of the service
func healthCheckHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// readinessHandler returns the readiness status of the service. Unlike the
// liveness probe (/health), this also probes the cache store so a readiness
// gate fails when lookups would error against a dead Redis.
func readinessHandler(db *sql.DB, store cache.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := gin.H{}
		ready := true

		if err := db.PingContext(c.Request.Context()); err != nil {
			checks["database"] = "unreachable"
			ready = false
		} else {
			checks["database"] = "ok"
		}

		if _, err := store.Has(c.Request.Context(), "readiness_probe"); err != nil {
			checks["cache"] = "unreachable"
			ready = false
		} else {
			checks["cache"] = "ok"
		}

		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"ready":  ready,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// LoggerMiddleware provides structured request logging via slog
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		requestID, _ := c.Get(middleware.RequestIDKey)

		slog.LogAttrs(
			c.Request.Context(),
			slog.LevelInfo,
			"http request",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", query),
			slog.Int("status", c.Writer.Status()),
			slog.Int("size", c.Writer.Size()),
			slog.Duration("latency", latency),
			slog.String("ip", c.ClientIP()),
			slog.String("request_id", fmt.Sprintf("%v", requestID)),
			slog.String("user_agent", c.Request.UserAgent()),
		)
	}
}
