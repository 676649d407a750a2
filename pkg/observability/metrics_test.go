package observability

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	t.Run("metrics are registered with registry", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		metrics := NewMetrics(registry)

		// Initialize some metrics to make them appear in Gather()
		metrics.HTTPRequestsTotal.WithLabelValues("GET", "/test", "200").Add(0)
		metrics.DirectoryRequestsTotal.WithLabelValues("list_licensed_users", "success").Add(0)
		metrics.FeedPagesTotal.WithLabelValues("success").Add(0)
		metrics.CacheHitsTotal.WithLabelValues("user_lookup").Add(0)
		metrics.ActiveUsers.WithLabelValues("30").Set(0)
		metrics.LicensedUsers.Set(0)

		families, err := registry.Gather()
		if err != nil {
			t.Fatalf("Failed to gather metrics: %v", err)
		}

		metricNames := make(map[string]bool)
		for _, family := range families {
			metricNames[family.GetName()] = true
		}

		expectedMetrics := []string{
			"seatlens_http_requests_total",
			"seatlens_directory_requests_total",
			"seatlens_feed_pages_total",
			"seatlens_feed_rows_total",
			"seatlens_feed_truncations_total",
			"seatlens_cache_hits_total",
			"seatlens_active_users",
			"seatlens_licensed_users",
		}

		for _, name := range expectedMetrics {
			if !metricNames[name] {
				t.Errorf("Expected metric %s not found in registry", name)
			}
		}
	})

	t.Run("panics on duplicate registration", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		NewMetrics(registry)

		defer func() {
			if r := recover(); r == nil {
				t.Error("Expected panic on duplicate registration, but didn't panic")
			}
		}()

		NewMetrics(registry)
	})
}

func TestMetrics_ObserveDirectoryRequest(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.ObserveDirectoryRequest("assign_license", time.Now(), nil)
	metrics.ObserveDirectoryRequest("assign_license", time.Now(), errors.New("503"))

	expected := `
# HELP seatlens_directory_requests_total Total number of directory API requests
# TYPE seatlens_directory_requests_total counter
seatlens_directory_requests_total{operation="assign_license",status="error"} 1
seatlens_directory_requests_total{operation="assign_license",status="success"} 1
`
	if err := testutil.CollectAndCompare(metrics.DirectoryRequestsTotal, strings.NewReader(expected)); err != nil {
		t.Errorf("Unexpected metric value: %v", err)
	}

	var nilMetrics *Metrics
	nilMetrics.ObserveDirectoryRequest("noop", time.Now(), nil)
}

func TestMetrics_BusinessGauges(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.ActiveUsers.WithLabelValues("7").Set(12)
	metrics.ActiveUsers.WithLabelValues("30").Set(40)
	metrics.TotalActions.WithLabelValues("30").Set(1250)

	expected := `
# HELP seatlens_active_users Licensed users active within the activity window
# TYPE seatlens_active_users gauge
seatlens_active_users{days="30"} 40
seatlens_active_users{days="7"} 12
`
	if err := testutil.CollectAndCompare(metrics.ActiveUsers, strings.NewReader(expected)); err != nil {
		t.Errorf("Unexpected metric value: %v", err)
	}
	if got := testutil.ToFloat64(metrics.TotalActions.WithLabelValues("30")); got != 1250 {
		t.Errorf("Expected 1250 total actions, got %v", got)
	}
}

func TestResponseWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}

	rw.WriteHeader(http.StatusTeapot)
	n, err := rw.Write([]byte("hello"))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if n != 5 || rw.bytesWritten != 5 {
		t.Errorf("Expected 5 bytes written, got n=%d tracked=%d", n, rw.bytesWritten)
	}
	if rw.statusCode != http.StatusTeapot {
		t.Errorf("Expected status 418, got %d", rw.statusCode)
	}
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	t.Run("labels by route template", func(t *testing.T) {
		metrics := NewMetrics(prometheus.NewRegistry())

		router := mux.NewRouter()
		router.Use(HTTPMetricsMiddleware(metrics))
		router.HandleFunc("/api/copilot/user-analytics/{userId}", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})

		for _, id := range []string{"a", "b", "c"} {
			req := httptest.NewRequest("GET", "/api/copilot/user-analytics/"+id, nil)
			router.ServeHTTP(httptest.NewRecorder(), req)
		}

		expected := `
# HELP seatlens_http_requests_total Total number of HTTP requests
# TYPE seatlens_http_requests_total counter
seatlens_http_requests_total{method="GET",path="/api/copilot/user-analytics/{userId}",status="200"} 3
`
		if err := testutil.CollectAndCompare(metrics.HTTPRequestsTotal, strings.NewReader(expected)); err != nil {
			t.Errorf("Unexpected counter value: %v", err)
		}
		if count := testutil.CollectAndCount(metrics.HTTPResponseSize); count != 1 {
			t.Errorf("Expected 1 response size metric, got %d", count)
		}
	})

	t.Run("outside a router", func(t *testing.T) {
		metrics := NewMetrics(prometheus.NewRegistry())

		handler := HTTPMetricsMiddleware(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/random/path", strings.NewReader("body")))

		if got := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("POST", "unmatched", "404")); got != 1 {
			t.Errorf("Expected 1 unmatched request, got %v", got)
		}
		if count := testutil.CollectAndCount(metrics.HTTPRequestSize); count != 1 {
			t.Errorf("Expected request size to be recorded, got %d", count)
		}
	})
}

func TestRegisterMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	metrics.FeedTruncationsTotal.Inc()

	router := mux.NewRouter()
	RegisterMetricsEndpoint(router, registry)

	server := httptest.NewServer(router)
	defer server.Close()

	resp, err := http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("Failed to get metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "seatlens_feed_truncations_total 1") {
		t.Errorf("Expected truncation counter in output, got:\n%s", body)
	}
}
