// accesslog.go records one APIRequestLog row per request on the public lookup
// path. The write is fire-and-forget: a failing or slow log insert must never
// change the HTTP outcome of the request that triggered it.
package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/library-registry/library-registry/internal/cache"
	"github.com/library-registry/library-registry/internal/db/models"
	"github.com/library-registry/library-registry/internal/safego"
	"github.com/library-registry/library-registry/internal/validation"
)

// LibrariesCountKey is the gin.Context key under which the lookup handler
// stores the number of libraries in its response, so the access log can record
// it without re-parsing the response body.
const LibrariesCountKey = "libraries_count"

// LogSink persists access-log entries. Satisfied by
// repositories.RequestLogRepository.
type LogSink interface {
	Insert(ctx context.Context, entry *models.APIRequestLog) error
}

// insertTimeout bounds the background log write so a hung database cannot
// accumulate goroutines indefinitely.
const insertTimeout = 5 * time.Second

// AccessLogMiddleware returns a Gin handler that captures timing, the
// cache-hit flag, and the normalized scope of each lookup request, then
// persists the entry in the background.
//
// The cache-hit flag is determined by probing the store for the computed key
// BEFORE the handler runs: probing afterwards would always report a hit,
// because a miss populates the cache on the way out.
func AccessLogMiddleware(store cache.Store, sink LogSink) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		rawSystem := c.Query("system")
		rawCNPJ := c.Query("cnpj")
		rawMachine := c.Query("machine_name")

		cnpj := validation.NormalizeCNPJ(rawCNPJ)
		machine := validation.NormalizeMachine(rawMachine)

		key := cache.Key(rawSystem, cnpj, machine)
		cacheHit, err := store.Has(c.Request.Context(), key)
		if err != nil {
			slog.Error("failed to probe cache for access log", "error", err, "key", key)
			cacheHit = false
		}

		c.Next()

		entry := &models.APIRequestLog{
			IPAddress:      c.ClientIP(),
			Endpoint:       c.Request.URL.Path,
			HTTPMethod:     c.Request.Method,
			StatusCode:     c.Writer.Status(),
			RequestParams:  queryParams(c),
			CacheHit:       cacheHit,
			ResponseTimeMs: int(time.Since(start).Milliseconds()),
			LibrariesCount: c.GetInt(LibrariesCountKey),
			UserAgent:      c.Request.UserAgent(),
		}
		if rawSystem != "" {
			entry.System = &rawSystem
		}
		if cnpj != "" {
			entry.CNPJ = &cnpj
		}
		if machine != "" {
			entry.MachineName = &machine
		}

		safego.Go(func() {
			ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
			defer cancel()
			if err := sink.Insert(ctx, entry); err != nil {
				// Swallowed: the triggering request already completed.
				slog.Error("failed to persist access log entry",
					"error", err,
					"endpoint", entry.Endpoint,
					"ip", entry.IPAddress,
				)
			}
		})
	}
}

func queryParams(c *gin.Context) map[string]string {
	values := c.Request.URL.Query()
	if len(values) == 0 {
		return nil
	}
	params := make(map[string]string, len(values))
	for key, vals := range values {
		if len(vals) > 0 {
			params[key] = vals[0]
		}
	}
	return params
}
