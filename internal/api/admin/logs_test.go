package admin

import (
	"net/http"
	"net/http/httptest"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

func newLogRouter(t *testing.T) (sqlmock.Sqlmock, *gin.Engine) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	h := NewLogHandlers(sqlx.NewDb(db, "postgres"))

	r := gin.New()
	r.GET("/logs/stats", h.StatsHandler())
	r.DELETE("/logs", h.ClearLogsHandler())
	return mock, r
}

func TestStats_EmptyWindow(t *testing.T) {
	mock, r := newLogRouter(t)

	// Zero total requests short-circuits the hit-rate and latency queries.
	mock.ExpectQuery("SELECT COUNT.*FROM api_request_logs WHERE created_at").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("SELECT ip_address AS label").
		WillReturnRows(sqlmock.NewRows([]string{"label", "total"}))
	mock.ExpectQuery("SELECT endpoint, http_method").
		WillReturnRows(sqlmock.NewRows([]string{"endpoint", "http_method", "total"}))
	mock.ExpectQuery("SELECT system AS label").
		WillReturnRows(sqlmock.NewRows([]string{"label", "total"}))
	mock.ExpectQuery("SELECT status_code").
		WillReturnRows(sqlmock.NewRows([]string{"status_code", "total"}))
	mock.ExpectQuery("SELECT COUNT.*status_code = 404").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("SELECT endpoint, http_method.*status_code = 404").
		WillReturnRows(sqlmock.NewRows([]string{"endpoint", "http_method", "total"}))
	mock.ExpectQuery("SELECT DATE_TRUNC").
		WillReturnRows(sqlmock.NewRows([]string{"hour", "total"}))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/logs/stats", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: body=%s", w.Code, w.Body.String())
	}
	resp := getJSON(t, w)
	if resp["stats"] == nil {
		t.Error("response missing 'stats' key")
	}
	if resp["period_hours"] != float64(24) {
		t.Errorf("period_hours = %v, want 24", resp["period_hours"])
	}
}

func TestStats_InvalidHours(t *testing.T) {
	_, r := newLogRouter(t)

	for _, hours := range []string{"0", "-5", "100000", "abc"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("GET", "/logs/stats?hours="+hours, nil))
		if w.Code != http.StatusBadRequest {
			t.Errorf("hours=%s: status = %d, want 400", hours, w.Code)
		}
	}
}

func TestStats_DBError(t *testing.T) {
	mock, r := newLogRouter(t)

	mock.ExpectQuery("SELECT COUNT.*FROM api_request_logs").
		WillReturnError(errDB)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/logs/stats", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestClearLogs_Success(t *testing.T) {
	mock, r := newLogRouter(t)

	mock.ExpectExec("TRUNCATE api_request_logs").
		WillReturnResult(sqlmock.NewResult(0, 0))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("DELETE", "/logs", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200: body=%s", w.Code, w.Body.String())
	}
}

func TestClearLogs_DBError(t *testing.T) {
	mock, r := newLogRouter(t)

	mock.ExpectExec("TRUNCATE api_request_logs").WillReturnError(errDB)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("DELETE", "/logs", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}
