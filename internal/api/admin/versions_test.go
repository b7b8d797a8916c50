package admin

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
)

func newVersionRouter(t *testing.T) (sqlmock.Sqlmock, *flushRecorder, *gin.Engine) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	flusher := &flushRecorder{}
	h := NewVersionHandlers(db, flusher)

	r := gin.New()
	r.GET("/libraries/:id/versions", h.ListVersionsHandler())
	r.POST("/libraries/:id/versions", h.CreateVersionHandler())
	r.PUT("/versions/:id", h.UpdateVersionHandler())
	r.DELETE("/versions/:id", h.DeleteVersionHandler())
	return mock, flusher, r
}

func scopeExistsRow(exists bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"exists"}).AddRow(exists)
}

// ---------------------------------------------------------------------------
// ListVersionsHandler tests
// ---------------------------------------------------------------------------

func TestListVersions_Success(t *testing.T) {
	mock, _, r := newVersionRouter(t)

	mock.ExpectQuery("SELECT.*FROM libraries.*WHERE id").
		WillReturnRows(sampleLibraryRow())
	mock.ExpectQuery("SELECT.*FROM library_versions.*WHERE library_id").
		WillReturnRows(sampleVersionRow())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/libraries/lib-1/versions", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: body=%s", w.Code, w.Body.String())
	}
	resp := getJSON(t, w)
	if resp["library"] == nil || resp["versions"] == nil {
		t.Errorf("response missing keys: %v", resp)
	}
}

func TestListVersions_LibraryNotFound(t *testing.T) {
	mock, _, r := newVersionRouter(t)

	mock.ExpectQuery("SELECT.*FROM libraries.*WHERE id").
		WillReturnRows(emptyLibraryRow())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/libraries/lib-1/versions", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

// ---------------------------------------------------------------------------
// CreateVersionHandler tests
// ---------------------------------------------------------------------------

func TestCreateVersion_Default(t *testing.T) {
	mock, flusher, r := newVersionRouter(t)

	mock.ExpectQuery("SELECT.*FROM libraries.*WHERE id").
		WillReturnRows(sampleLibraryRow())
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("lib-1", nil, nil, "").
		WillReturnRows(scopeExistsRow(false))
	mock.ExpectQuery("INSERT INTO library_versions").
		WillReturnRows(sqlmock.NewRows(createReturningCols).
			AddRow("ver-1", time.Now(), time.Now()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/libraries/lib-1/versions",
		jsonBody(map[string]interface{}{"version": "9.8.0.9"})))

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: body=%s", w.Code, w.Body.String())
	}
	if flusher.flushes != 1 {
		t.Errorf("cache flushes = %d, want 1", flusher.flushes)
	}
}

func TestCreateVersion_NormalizesScopeOnWrite(t *testing.T) {
	mock, flusher, r := newVersionRouter(t)

	mock.ExpectQuery("SELECT.*FROM libraries.*WHERE id").
		WillReturnRows(sampleLibraryRow())
	// The formatted CNPJ and upper-case machine must arrive normalized.
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("lib-1", "06210435000147", "pdv-01", "").
		WillReturnRows(scopeExistsRow(false))
	mock.ExpectQuery("INSERT INTO library_versions").
		WithArgs("lib-1", "06210435000147", "pdv-01", "9.18.0.1", nil, nil, true, nil).
		WillReturnRows(sqlmock.NewRows(createReturningCols).
			AddRow("ver-2", time.Now(), time.Now()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/libraries/lib-1/versions",
		jsonBody(map[string]interface{}{
			"client_cnpj":  "06.210.435/0001-47",
			"machine_name": "PDV-01",
			"version":      "9.18.0.1",
		})))

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: body=%s", w.Code, w.Body.String())
	}
	if flusher.flushes != 1 {
		t.Errorf("cache flushes = %d, want 1", flusher.flushes)
	}
}

func TestCreateVersion_InvalidCNPJ(t *testing.T) {
	mock, flusher, r := newVersionRouter(t)

	mock.ExpectQuery("SELECT.*FROM libraries.*WHERE id").
		WillReturnRows(sampleLibraryRow())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/libraries/lib-1/versions",
		jsonBody(map[string]interface{}{"client_cnpj": "12345", "version": "1.0"})))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400: body=%s", w.Code, w.Body.String())
	}
	if flusher.flushes != 0 {
		t.Error("rejected create must not flush the cache")
	}
}

func TestCreateVersion_ScopeConflict(t *testing.T) {
	mock, flusher, r := newVersionRouter(t)

	mock.ExpectQuery("SELECT.*FROM libraries.*WHERE id").
		WillReturnRows(sampleLibraryRow())
	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(scopeExistsRow(true))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/libraries/lib-1/versions",
		jsonBody(map[string]interface{}{"version": "9.8.0.9"})))

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409: body=%s", w.Code, w.Body.String())
	}
	if flusher.flushes != 0 {
		t.Error("conflicting create must not flush the cache")
	}
}

func TestCreateVersion_LibraryNotFound(t *testing.T) {
	mock, _, r := newVersionRouter(t)

	mock.ExpectQuery("SELECT.*FROM libraries.*WHERE id").
		WillReturnRows(emptyLibraryRow())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/libraries/lib-1/versions",
		jsonBody(map[string]interface{}{"version": "9.8.0.9"})))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

// ---------------------------------------------------------------------------
// UpdateVersionHandler tests
// ---------------------------------------------------------------------------

func TestUpdateVersion_Success(t *testing.T) {
	mock, flusher, r := newVersionRouter(t)

	mock.ExpectQuery("SELECT.*FROM library_versions WHERE id").
		WillReturnRows(sampleVersionRow())
	mock.ExpectQuery("UPDATE library_versions").
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(time.Now()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("PUT", "/versions/ver-1",
		jsonBody(map[string]interface{}{"version": "9.9.0.0"})))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: body=%s", w.Code, w.Body.String())
	}
	if flusher.flushes != 1 {
		t.Errorf("cache flushes = %d, want 1", flusher.flushes)
	}
}

func TestUpdateVersion_ScopeChangeConflict(t *testing.T) {
	mock, flusher, r := newVersionRouter(t)

	mock.ExpectQuery("SELECT.*FROM library_versions WHERE id").
		WillReturnRows(sampleVersionRow())
	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(scopeExistsRow(true))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("PUT", "/versions/ver-1",
		jsonBody(map[string]interface{}{"client_cnpj": "06210435000147"})))

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409: body=%s", w.Code, w.Body.String())
	}
	if flusher.flushes != 0 {
		t.Error("conflicting update must not flush the cache")
	}
}

func TestUpdateVersion_NotFound(t *testing.T) {
	mock, _, r := newVersionRouter(t)

	mock.ExpectQuery("SELECT.*FROM library_versions WHERE id").
		WillReturnRows(sqlmock.NewRows(versionCols))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("PUT", "/versions/ver-1",
		jsonBody(map[string]interface{}{"version": "9.9.0.0"})))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

// ---------------------------------------------------------------------------
// DeleteVersionHandler tests
// ---------------------------------------------------------------------------

func TestDeleteVersion_Success(t *testing.T) {
	mock, flusher, r := newVersionRouter(t)

	mock.ExpectExec("DELETE FROM library_versions").
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("DELETE", "/versions/ver-1", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: body=%s", w.Code, w.Body.String())
	}
	if flusher.flushes != 1 {
		t.Errorf("cache flushes = %d, want 1", flusher.flushes)
	}
}

func TestDeleteVersion_NotFound(t *testing.T) {
	mock, flusher, r := newVersionRouter(t)

	mock.ExpectExec("DELETE FROM library_versions").
		WillReturnResult(sqlmock.NewResult(0, 0))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("DELETE", "/versions/ver-1", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if flusher.flushes != 0 {
		t.Error("failed delete must not flush the cache")
	}
}
