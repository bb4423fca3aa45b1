package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_UsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New("mmh")

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/offers/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, id := range []string{"a", "b"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/offers/"+id, nil))
		require.Equal(t, http.StatusNoContent, w.Code)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/offers/:id", "204")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.HTTPRequestsInFlight))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.OrderCreated()
		m.OrderClosed()
		m.Notification("new_order", true)
		m.RegistryLookup("hit")
		m.EventPublished("order.created", false)
		m.OffersExpired(3)
	})
}

func TestHandler_ExposesBusinessCounters(t *testing.T) {
	m := New("mmh")
	m.OrderCreated()
	m.Notification("status_changed", false)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "mmh_orders_created_total 1")
	assert.Contains(t, string(body), `mmh_notifications_total{event="status_changed",result="failure"} 1`)
}

func TestNew_TwiceDoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		New("mmh")
		New("mmh")
	})
}
