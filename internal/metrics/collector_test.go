package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector

	assert.NotPanics(t, func() {
		c.SetActiveSessions(3)
		c.RecordLaunch("ok")
		c.RecordNavigationAttempt(errors.New("boom"))
		c.RecordSessionClosed("closed")
		c.RecordHTTPRequest("GET", "/health", 200, time.Millisecond)
	})
}

func TestCollectorCounts(t *testing.T) {
	c := NewCollector("test")

	c.SetActiveSessions(2)
	c.RecordLaunch("ok")
	c.RecordLaunch("ok")
	c.RecordNavigationAttempt(nil)
	c.RecordNavigationAttempt(errors.New("net::ERR_NAME_NOT_RESOLVED"))
	c.RecordSessionClosed("evicted")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.activeSessions))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.launchesTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.navigationAttempts.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.navigationAttempts.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.sessionsClosed.WithLabelValues("evicted")))
}

func TestMiddlewareAndHandler(t *testing.T) {
	c := NewCollector("test")

	app := fiber.New()
	app.Use(c.Middleware())
	app.Get("/page-html/:sessionId", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{"html": "<html></html>"})
	})
	app.Get("/metrics", c.Handler())

	resp, err := app.Test(httptest.NewRequest("GET", "/page-html/s1_1000", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	assert.Equal(t, 1.0, testutil.ToFloat64(
		c.httpRequestsTotal.WithLabelValues("GET", "/page-html/:sessionId", "200")))

	resp, err = app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.True(t, strings.Contains(string(body), "test_http_requests_total"))
}
