// request_log_repository.go implements RequestLogRepository, providing the
// append-only access-log insert, the dashboard aggregation queries, and the
// destructive clear-logs truncate.
package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/library-registry/library-registry/internal/db/models"
)

// RequestLogRepository handles database operations for API request logs
type RequestLogRepository struct {
	db *sqlx.DB
}

// NewRequestLogRepository creates a new request log repository
func NewRequestLogRepository(db *sqlx.DB) *RequestLogRepository {
	return &RequestLogRepository{db: db}
}

// Insert appends one access-log row. Rows are never updated afterwards.
func (r *RequestLogRepository) Insert(ctx context.Context, entry *models.APIRequestLog) error {
	var paramsJSON []byte
	var err error
	if entry.RequestParams != nil {
		paramsJSON, err = json.Marshal(entry.RequestParams)
		if err != nil {
			return fmt.Errorf("failed to marshal request params: %w", err)
		}
	}

	query := `
		INSERT INTO api_request_logs
			(ip_address, endpoint, http_method, status_code, request_params,
			 system, cnpj, machine_name, cache_hit, response_time_ms,
			 libraries_count, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err = r.db.ExecContext(ctx, query,
		entry.IPAddress,
		entry.Endpoint,
		entry.HTTPMethod,
		entry.StatusCode,
		paramsJSON,
		entry.System,
		entry.CNPJ,
		entry.MachineName,
		entry.CacheHit,
		entry.ResponseTimeMs,
		entry.LibrariesCount,
		entry.UserAgent,
	)
	if err != nil {
		return fmt.Errorf("failed to insert request log: %w", err)
	}

	return nil
}

// Clear removes all access-log rows (the admin "clear logs" operation)
func (r *RequestLogRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `TRUNCATE api_request_logs`); err != nil {
		return fmt.Errorf("failed to clear request logs: %w", err)
	}
	return nil
}

// EndpointCount is a per-endpoint aggregate used by the stats view
type EndpointCount struct {
	Endpoint   string `json:"endpoint" db:"endpoint"`
	HTTPMethod string `json:"http_method" db:"http_method"`
	Total      int64  `json:"total" db:"total"`
}

// LabelCount is a generic (label, count) aggregate row
type LabelCount struct {
	Label string `json:"label" db:"label"`
	Total int64  `json:"total" db:"total"`
}

// StatusCount is a per-status-code aggregate row
type StatusCount struct {
	StatusCode int   `json:"status_code" db:"status_code"`
	Total      int64 `json:"total" db:"total"`
}

// HourCount is a per-hour request count used for the traffic chart
type HourCount struct {
	Hour  time.Time `json:"hour" db:"hour"`
	Total int64     `json:"total" db:"total"`
}

// Stats aggregates access-log rows recorded since the given time
type Stats struct {
	TotalRequests   int64            `json:"total_requests"`
	CacheHitRate    float64          `json:"cache_hit_rate"`
	AvgResponseTime float64          `json:"avg_response_time_ms"`
	TopIPs          []*LabelCount    `json:"top_ips"`
	TopEndpoints    []*EndpointCount `json:"top_endpoints"`
	TopSystems      []*LabelCount    `json:"top_systems"`
	StatusCodes     []*StatusCount   `json:"status_codes"`
	Total404        int64            `json:"total_404"`
	Endpoints404    []*EndpointCount `json:"endpoints_404"`
	RequestsPerHour []*HourCount     `json:"requests_per_hour"`
}

// Stats computes the dashboard aggregates over rows created at or after since.
// Each aggregate is an independent query; the dashboard tolerates the slight
// skew between them.
func (r *RequestLogRepository) Stats(ctx context.Context, since time.Time) (*Stats, error) {
	stats := &Stats{}

	err := r.db.GetContext(ctx, &stats.TotalRequests,
		`SELECT COUNT(*) FROM api_request_logs WHERE created_at >= $1`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count requests: %w", err)
	}

	if stats.TotalRequests > 0 {
		var hits int64
		err = r.db.GetContext(ctx, &hits,
			`SELECT COUNT(*) FROM api_request_logs WHERE created_at >= $1 AND cache_hit = TRUE`, since)
		if err != nil {
			return nil, fmt.Errorf("failed to count cache hits: %w", err)
		}
		stats.CacheHitRate = float64(hits) / float64(stats.TotalRequests) * 100

		var avg sql.NullFloat64
		err = r.db.GetContext(ctx, &avg,
			`SELECT AVG(response_time_ms) FROM api_request_logs WHERE created_at >= $1`, since)
		if err != nil {
			return nil, fmt.Errorf("failed to average response time: %w", err)
		}
		stats.AvgResponseTime = avg.Float64
	}

	err = r.db.SelectContext(ctx, &stats.TopIPs, `
		SELECT ip_address AS label, COUNT(*) AS total
		FROM api_request_logs
		WHERE created_at >= $1
		GROUP BY ip_address
		ORDER BY total DESC
		LIMIT 5`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query top IPs: %w", err)
	}

	err = r.db.SelectContext(ctx, &stats.TopEndpoints, `
		SELECT endpoint, http_method, COUNT(*) AS total
		FROM api_request_logs
		WHERE created_at >= $1
		GROUP BY endpoint, http_method
		ORDER BY total DESC
		LIMIT 10`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query top endpoints: %w", err)
	}

	err = r.db.SelectContext(ctx, &stats.TopSystems, `
		SELECT system AS label, COUNT(*) AS total
		FROM api_request_logs
		WHERE created_at >= $1 AND system IS NOT NULL
		GROUP BY system
		ORDER BY total DESC`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query top systems: %w", err)
	}

	err = r.db.SelectContext(ctx, &stats.StatusCodes, `
		SELECT status_code, COUNT(*) AS total
		FROM api_request_logs
		WHERE created_at >= $1
		GROUP BY status_code
		ORDER BY total DESC`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query status codes: %w", err)
	}

	err = r.db.GetContext(ctx, &stats.Total404,
		`SELECT COUNT(*) FROM api_request_logs WHERE created_at >= $1 AND status_code = 404`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count 404s: %w", err)
	}

	err = r.db.SelectContext(ctx, &stats.Endpoints404, `
		SELECT endpoint, http_method, COUNT(*) AS total
		FROM api_request_logs
		WHERE created_at >= $1 AND status_code = 404
		GROUP BY endpoint, http_method
		ORDER BY total DESC
		LIMIT 10`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query 404 endpoints: %w", err)
	}

	err = r.db.SelectContext(ctx, &stats.RequestsPerHour, `
		SELECT DATE_TRUNC('hour', created_at) AS hour, COUNT(*) AS total
		FROM api_request_logs
		WHERE created_at >= $1
		GROUP BY hour
		ORDER BY hour`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests per hour: %w", err)
	}

	return stats, nil
}
