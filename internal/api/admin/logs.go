// logs.go implements the access-log dashboard endpoints: aggregated traffic
// statistics over a sliding window and the destructive clear operation.
package admin

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/library-registry/library-registry/internal/db/repositories"
)

// maxStatsWindowHours caps the stats window at 30 days so a typo cannot
// trigger a full-table aggregation.
const maxStatsWindowHours = 24 * 30

// LogHandlers handles access-log dashboard endpoints
type LogHandlers struct {
	logRepo *repositories.RequestLogRepository
}

// NewLogHandlers creates a new LogHandlers instance
func NewLogHandlers(db *sqlx.DB) *LogHandlers {
	return &LogHandlers{logRepo: repositories.NewRequestLogRepository(db)}
}

// StatsHandler returns aggregated access-log statistics over the last N hours
// (default 24).
// GET /api/v1/admin/logs/stats?hours=24
func (h *LogHandlers) StatsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		hours, err := strconv.Atoi(c.DefaultQuery("hours", "24"))
		if err != nil || hours < 1 || hours > maxStatsWindowHours {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Parameter hours must be between 1 and 720",
			})
			return
		}

		since := time.Now().Add(-time.Duration(hours) * time.Hour)
		stats, err := h.logRepo.Stats(c.Request.Context(), since)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to compute request statistics",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"period_hours": hours,
			"stats":        stats,
		})
	}
}

// ClearLogsHandler removes all access-log rows
// DELETE /api/v1/admin/logs
func (h *LogHandlers) ClearLogsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.logRepo.Clear(c.Request.Context()); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to clear request logs",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "Request logs cleared successfully",
		})
	}
}
