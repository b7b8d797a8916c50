package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func newRequestIDRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestIDMiddleware())
	router.GET("/", func(c *gin.Context) {
		id, _ := c.Get(RequestIDKey)
		c.String(http.StatusOK, "%v", id)
	})
	return router
}

func TestRequestIDGenerated(t *testing.T) {
	router := newRequestIDRouter()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	header := w.Header().Get(RequestIDHeader)
	if header == "" {
		t.Fatal("response missing X-Request-ID")
	}
	if _, err := uuid.Parse(header); err != nil {
		t.Errorf("generated request ID is not a UUID: %q", header)
	}
	if w.Body.String() != header {
		t.Error("context value and response header differ")
	}
}

func TestRequestIDPropagated(t *testing.T) {
	router := newRequestIDRouter()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "upstream-id-42")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get(RequestIDHeader); got != "upstream-id-42" {
		t.Errorf("inbound request ID not reused: %q", got)
	}
}
