package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters_Histograms_InflightAndPathFallback(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())

	// Route with body → positive size (observed)
	r.GET("/resources", func(c *gin.Context) {
		c.String(http.StatusOK, `[{"name":"GBV Hotline","phone":"1195"}]`)
	})

	// Route with status only → size stays -1 (skipped in size histogram)
	r.PUT("/reports/:id/status", func(c *gin.Context) {
		c.Status(http.StatusNoContent) // 204, no body => size -1
	})

	// Baselines before we hit the routes (to avoid interference from other tests)
	baseOK := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/resources", "200"))
	base404 := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/does-not-exist", "404"))

	// 1) Matched route → path label is the route pattern
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/resources", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /resources -> %d", w.Code)
	}

	// 2) Missing route → fallback to raw URL path label
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /does-not-exist -> %d", w.Code)
	}

	// 3) Bodyless 204 exercises the size<0 skip
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPut, "/reports/9f2c4a1b/status", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("PUT /reports/9f2c4a1b/status -> %d", w.Code)
	}

	gotOK := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/resources", "200"))
	if gotOK != baseOK+1 {
		t.Fatalf("counter /resources 200 = %v; want %v", gotOK, baseOK+1)
	}

	got404 := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/does-not-exist", "404"))
	if got404 != base404+1 {
		t.Fatalf("counter 404 fallback = %v; want %v", got404, base404+1)
	}

	// Route params collapse into one label value, keeping cardinality bounded.
	got204 := testutil.ToFloat64(httpReqs.WithLabelValues("PUT", "/reports/:id/status", "204"))
	if got204 < 1 {
		t.Fatalf("counter parameterized route = %v; want >= 1", got204)
	}

	// In-flight gauge should be 0 after requests complete
	if inFlight := testutil.ToFloat64(httpInflight); inFlight != 0 {
		t.Fatalf("httpInflight = %v; want 0", inFlight)
	}
}
