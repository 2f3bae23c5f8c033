package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/statute-analyzer/internal/core/domain"
)

func TestPipelineMetricsCountsObservations(t *testing.T) {
	server := NewHTTPServerMetrics("api")
	pipeline := NewPipelineMetrics(server.Registry(), "api")

	pipeline.ObserveEmbeddingLookup(true)
	pipeline.ObserveEmbeddingLookup(false)
	pipeline.ObserveEmbeddingLookup(false)
	pipeline.ObserveEmbeddingCall("success", 16, 20*time.Millisecond)
	pipeline.ObserveComparison("success", 3, time.Second)
	pipeline.ObserveDetection("error", 0, time.Second)

	body := scrape(t, server)
	for _, want := range []string{
		`statute_embedding_cache_lookups_total{result="miss",service="api"} 2`,
		`statute_embedding_provider_items_total{service="api"} 16`,
		`statute_conflicts_jobs_total{outcome="error",service="api"} 1`,
		`statute_compare_changes_count{service="api"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in exposition:\n%s", want, body)
		}
	}
}

func scrape(t *testing.T, server *HTTPServerMetrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("scrape status = %d", rec.Code)
	}
	return rec.Body.String()
}

func TestCacheStatsAreExposed(t *testing.T) {
	server := NewHTTPServerMetrics("api")
	RegisterCacheStats(server.Registry(), "api", func() domain.CacheStats {
		return domain.CacheStats{Size: 7, Capacity: 10, Evictions: 3}
	})

	body := scrape(t, server)
	for _, want := range []string{
		`statute_embedding_cache_entries{service="api"} 7`,
		`statute_embedding_cache_evictions_total{service="api"} 3`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in exposition:\n%s", want, body)
		}
	}
}

func TestMiddlewareNormalizesUnknownPaths(t *testing.T) {
	server := NewHTTPServerMetrics("api")
	handler := server.Middleware("api", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/unknown/123", nil))

	want := `statute_http_requests_total{method="GET",path="other",service="api",status="404"} 1`
	if body := scrape(t, server); !strings.Contains(body, want) {
		t.Fatalf("expected %q in exposition:\n%s", want, body)
	}
}
