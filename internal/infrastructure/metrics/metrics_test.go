package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/expense-capture/internal/application/dispatcher"
	"github.com/garyjia/expense-capture/internal/domain/event"
)

func TestMiddleware_CountsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/api/bills", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 2; i++ {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/bills?page=2", nil))
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/bills", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "unmatched", "404")))
}

func TestSubscribe_RecordsCommittedBills(t *testing.T) {
	m := New()
	d := dispatcher.NewDispatcher()
	defer d.Close()
	m.Subscribe(d)

	ctx := context.Background()
	require.NoError(t, d.Dispatch(ctx, event.NewEvent(event.TypeBillCommitted, "u1", "b1",
		map[string]interface{}{event.KeySource: "upload", event.KeyTotalAmount: 120.5})))
	require.NoError(t, d.Dispatch(ctx, event.NewEvent(event.TypeBillCommitted, "u1", "b2", nil)))
	require.NoError(t, d.Dispatch(ctx, event.NewEvent(event.TypeFileSwept, "u1", "", nil)))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.events.WithLabelValues(string(event.TypeBillCommitted))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.committed.WithLabelValues("upload")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.committed.WithLabelValues("unknown")))
	assert.Equal(t, 120.5, testutil.ToFloat64(m.amount))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.events.WithLabelValues(string(event.TypeFileSwept))))
}

func TestHandler_Exposes(t *testing.T) {
	m := New()
	m.events.WithLabelValues("file.stored").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `expense_capture_events_total{type="file.stored"} 1`)
}
