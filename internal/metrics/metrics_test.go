package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	c := New()
	c.InventoryMutation("create")
	c.InventoryMutation("create")
	c.ActivityRecorded("inventory")
	c.LoginAttempt(false)
	c.FeedPaused(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.inventoryMutations.WithLabelValues("create")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.activities.WithLabelValues("inventory")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.logins.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.feedPaused))
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.InventoryMutation("delete")
		c.LoginAttempt(true)
		c.DispenseGenerated()
		c.FeedPaused(false)
	})
}

func TestMiddlewareAndHandler(t *testing.T) {
	c := New()
	h := c.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `medinv_http_requests_total{method="GET",status="404"} 1`), body)
}
