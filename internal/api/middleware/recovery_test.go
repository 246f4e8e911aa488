package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/VEEP09/xc-test-apim/internal/logger"
)

func panicRouter(verbose bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID())
	router.Use(Recovery(verbose))
	router.GET("/panic", func(c *gin.Context) {
		panic("test panic")
	})
	return router
}

func TestRecoveryLogsStacktraceVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	logger.Init(true, buf)
	t.Cleanup(func() { logger.Init(false, nil) })

	w := httptest.NewRecorder()
	panicRouter(true).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal server error","inconsistent":false}`, w.Body.String())
	out := buf.String()
	assert.Contains(t, out, "PANIC: test panic")
	assert.Contains(t, out, "Stacktrace:")
	assert.Contains(t, out, "request_id")
}

func TestRecoveryLogsBriefWhenNotVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	logger.Init(false, buf)
	t.Cleanup(func() { logger.Init(false, nil) })

	w := httptest.NewRecorder()
	panicRouter(false).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, buf.String(), "PANIC: test panic")
	assert.NotContains(t, buf.String(), "Stacktrace:")
}

func TestRecoveryRedactsCredentials(t *testing.T) {
	buf := &bytes.Buffer{}
	logger.Init(true, buf)
	t.Cleanup(func() { logger.Init(false, nil) })

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	w := httptest.NewRecorder()
	panicRouter(true).ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, buf.String(), "secret-token")
	assert.Contains(t, buf.String(), "<redacted>")
}
