// Package models - api_request_log.go defines the APIRequestLog model for the
// append-only access log written once per public lookup request.
package models

import "time"

// APIRequestLog is one access-log row. Rows are immutable after insert; the
// only destructive operation is the admin "clear logs" truncate.
type APIRequestLog struct {
	ID             string            `json:"id" db:"id"`
	IPAddress      string            `json:"ip_address" db:"ip_address"`
	Endpoint       string            `json:"endpoint" db:"endpoint"`
	HTTPMethod     string            `json:"http_method" db:"http_method"`
	StatusCode     int               `json:"status_code" db:"status_code"`
	RequestParams  map[string]string `json:"request_params,omitempty" db:"-"`
	System         *string           `json:"system,omitempty" db:"system"`
	CNPJ           *string           `json:"cnpj,omitempty" db:"cnpj"`
	MachineName    *string           `json:"machine_name,omitempty" db:"machine_name"`
	CacheHit       bool              `json:"cache_hit" db:"cache_hit"`
	ResponseTimeMs int               `json:"response_time_ms" db:"response_time_ms"`
	LibrariesCount int               `json:"libraries_count" db:"libraries_count"`
	UserAgent      string            `json:"user_agent" db:"user_agent"`
	CreatedAt      time.Time         `json:"created_at" db:"created_at"`
}
