package metrics

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareLabelsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()
	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/api/orders/:id", func(c *gin.Context) { c.Status(200) })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	for _, id := range []string{"a", "b", "c"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/orders/"+id, nil))
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/nope", nil))

	assert.Equal(t, 3.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/orders/:id", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "unmatched", "404")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.httpInFlight))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), "shirly_http_requests_total")
}

func TestDomainCounters(t *testing.T) {
	m := New()
	m.ChatPublished()
	m.ChatPublished()
	m.RealtimeDropped("order:1")
	m.WSOpened()
	m.WSOpened()
	m.WSClosed()
	m.Webhook("mock", "processed")
	m.Webhook("mock", "duplicate")
	m.RateLimited("auth")
	m.JobRun("expire_checkouts", 10*time.Millisecond, nil)
	m.JobRun("expire_checkouts", time.Millisecond, errors.New("x"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.chatFanout))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.realtimeDrops))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.wsConns))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.webhooks.WithLabelValues("mock", "duplicate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rateLimited.WithLabelValues("auth")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobRuns.WithLabelValues("expire_checkouts", "false")))
}
