package mw

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/time/rate"

	"trainer-booking-backend/internal/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func get(r http.Handler, path string, headers ...string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	r.ServeHTTP(w, req)
	return w
}

func TestResponseCache(t *testing.T) {
	rc := NewResponseCache(time.Minute)
	calls := 0
	r := gin.New()
	r.Use(rc.Handler())
	r.GET("/trainers/:trainer_id/availability", func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"calls": calls})
	})
	r.GET("/broken", func(c *gin.Context) {
		calls++
		c.JSON(http.StatusInternalServerError, gin.H{"error": "boom"})
	})

	w := get(r, "/trainers/t1/availability?day=1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"calls":1}`, w.Body.String())

	w = get(r, "/trainers/t1/availability?day=1")
	assert.JSONEq(t, `{"calls":1}`, w.Body.String())
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))

	get(r, "/trainers/t2/availability?day=1")
	assert.Equal(t, 2, rc.Len())

	rc.InvalidateTrainer("t1")
	assert.Equal(t, 1, rc.Len())
	w = get(r, "/trainers/t1/availability?day=1")
	assert.JSONEq(t, `{"calls":3}`, w.Body.String())

	get(r, "/broken")
	get(r, "/broken")
	assert.Equal(t, 5, calls, "errors are never cached")
}

func TestRateLimiter(t *testing.T) {
	r := gin.New()
	r.Use(RateLimiter(rate.Limit(1), 2, "X-Forwarded-For"))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, get(r, "/ping", "X-Forwarded-For", "10.0.0.1, 10.0.0.9").Code)
	assert.Equal(t, http.StatusOK, get(r, "/ping", "X-Forwarded-For", "10.0.0.1").Code)
	w := get(r, "/ping", "X-Forwarded-For", "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"error":"too many requests","code":"rate_limited"}`, w.Body.String())

	assert.Equal(t, http.StatusOK, get(r, "/ping", "X-Forwarded-For", "10.0.0.2").Code, "limits are per client")
}

func TestLoggerAndMetrics(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m := metrics.New()
	r := gin.New()
	r.Use(Logger(zap.New(core)), Metrics(m))
	r.GET("/trainers/:trainer_id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	get(r, "/trainers/t1", "X-Actor-ID", "u1")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, zap.WarnLevel, entries[0].Level)
		fields := entries[0].ContextMap()
		assert.Equal(t, "/trainers/t1", fields["path"])
		assert.Equal(t, "u1", fields["actor_id"])
	}

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.True(t, strings.Contains(w.Body.String(), `route="/trainers/:trainer_id"`))
}
