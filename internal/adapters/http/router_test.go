package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/statute-analyzer/internal/config"
	"github.com/kirillkom/statute-analyzer/internal/core/domain"
	"github.com/kirillkom/statute-analyzer/internal/observability/metrics"
)

type comparerFake struct {
	err      error
	gotOld   int
	gotNew   int
	gotOpts  domain.CompareOptions
	response *domain.DocumentComparisonResult
}

func (f *comparerFake) Compare(_ context.Context, oldClauses, newClauses []domain.ClauseSegment, opts domain.CompareOptions) (*domain.DocumentComparisonResult, error) {
	f.gotOld, f.gotNew, f.gotOpts = len(oldClauses), len(newClauses), opts
	if f.err != nil {
		return nil, f.err
	}
	if f.response != nil {
		return f.response, nil
	}
	return &domain.DocumentComparisonResult{Summary: "1 change", Verdict: "compatible"}, nil
}

type detectorFake struct {
	err        error
	gotExclude string
}

func (f *detectorFake) DetectConflicts(_ context.Context, _ []domain.ClauseSegment, exclude string, _ domain.DetectOptions) (*domain.ConflictDetectionResult, error) {
	f.gotExclude = exclude
	if f.err != nil {
		return nil, f.err
	}
	return &domain.ConflictDetectionResult{Risk: domain.SeverityLow, Compatibility: 1}, nil
}

type corpusFake struct{ err error }

func (f corpusFake) IndexDocument(_ context.Context, _ domain.CorpusDocument, clauses []domain.ClauseSegment) (int, error) {
	return len(clauses), f.err
}

type cacheFake struct{ cleared bool }

func (f *cacheFake) CacheStats() domain.CacheStats {
	return domain.CacheStats{Size: 3, Capacity: 10, Hits: 5}
}

func (f *cacheFake) ClearCache(context.Context) error {
	f.cleared = true
	return nil
}

func postJSON(t *testing.T, handler http.Handler, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestCompareReturnsResultAndPassesOptions(t *testing.T) {
	comparer := &comparerFake{}
	handler := NewRouter(config.Config{}, comparer, nil, nil, nil).Handler()

	res := postJSON(t, handler, "/v1/compare", map[string]any{
		"old_clauses": []map[string]any{{"text": "Pasal 1 lama", "clause_type": "article", "sequence_order": 0}},
		"new_clauses": []map[string]any{
			{"text": "Pasal 1 baru", "clause_type": "article", "sequence_order": 0},
			{"text": "Pasal 2", "clause_type": "article", "sequence_order": 1},
		},
		"options": map[string]any{"semantic_threshold": 0.6},
	})

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if comparer.gotOld != 1 || comparer.gotNew != 2 {
		t.Fatalf("unexpected clause counts old=%d new=%d", comparer.gotOld, comparer.gotNew)
	}
	if comparer.gotOpts.SemanticThreshold == nil || *comparer.gotOpts.SemanticThreshold != 0.6 {
		t.Fatalf("expected semantic threshold option, got %+v", comparer.gotOpts)
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
	var body map[string]any
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["compatibility_verdict"] != "compatible" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestCompareRejectsMalformedJSON(t *testing.T) {
	handler := NewRouter(config.Config{}, &comparerFake{}, nil, nil, nil).Handler()

	req := httptest.NewRequest(http.MethodPost, "/v1/compare", strings.NewReader(`{"old_clauses": [`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}

	res = postJSON(t, handler, "/v1/compare", map[string]any{"unknown": true})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", res.Code)
	}
}

func TestCompareRejectsWrongMethod(t *testing.T) {
	handler := NewRouter(config.Config{}, &comparerFake{}, nil, nil, nil).Handler()

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/compare", nil))
	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Code)
	}
	if res.Header().Get("Allow") != http.MethodPost {
		t.Fatalf("expected Allow header, got %q", res.Header().Get("Allow"))
	}
}

func TestErrorsMapToStatusCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
		kind string
	}{
		{
			name: "validation",
			err:  domain.NewValidationError("compare", "clause %d text is empty", 2),
			want: http.StatusBadRequest,
			kind: "validation",
		},
		{
			name: "job failed by outage",
			err: &domain.OperationError{
				Kind:        domain.ErrJobFailed,
				Operation:   "embed",
				ClauseIndex: -1,
				Attempts:    3,
				Err:         domain.WrapError(domain.ErrTransientRemote, "ollama.embed", errors.New("connection refused")),
			},
			want: http.StatusServiceUnavailable,
			kind: "job_failed",
		},
		{
			name: "quota",
			err:  domain.WrapTerminal(domain.ErrQuotaExhausted, "openai.embed", errors.New("429 insufficient_quota")),
			want: http.StatusBadGateway,
			kind: "terminal_remote",
		},
		{
			name: "upstream credentials rejected",
			err:  domain.WrapTerminal(domain.ErrAuthRejected, "openai.embed", errors.New("401")),
			want: http.StatusBadGateway,
			kind: "terminal_remote",
		},
		{
			name: "caller unauthorized",
			err:  domain.WrapError(domain.ErrUnauthorized, "compare", errors.New("missing token")),
			want: http.StatusUnauthorized,
			kind: "unauthorized",
		},
		{
			name: "deadline",
			err:  context.DeadlineExceeded,
			want: http.StatusGatewayTimeout,
		},
		{
			name: "unknown",
			err:  errors.New("boom"),
			want: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewRouter(config.Config{}, nil, &detectorFake{err: tt.err}, nil, nil).Handler()
			res := postJSON(t, handler, "/v1/conflicts", map[string]any{
				"clauses": []map[string]any{{"text": "Setiap orang dilarang", "clause_type": "article"}},
			})
			if res.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, res.Code)
			}
			var body errorResponse
			if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if body.Kind != tt.kind {
				t.Fatalf("expected kind %q, got %q", tt.kind, body.Kind)
			}
			if body.RequestID == "" {
				t.Fatalf("expected request id in error body")
			}
		})
	}
}

func TestErrorBodyCarriesOperationContext(t *testing.T) {
	err := &domain.OperationError{
		Kind:        domain.ErrJobFailed,
		Operation:   "corpus.search",
		ClauseIndex: -1,
		Attempts:    2,
		Err:         domain.ErrTransientRemote,
	}
	handler := NewRouter(config.Config{}, nil, &detectorFake{err: err}, nil, nil).Handler()

	res := postJSON(t, handler, "/v1/conflicts", map[string]any{"clauses": []map[string]any{{"text": "x"}}})
	var body errorResponse
	if decodeErr := json.Unmarshal(res.Body.Bytes(), &body); decodeErr != nil {
		t.Fatalf("decode error body: %v", decodeErr)
	}
	if body.Operation != "corpus.search" || body.Attempts != 2 || body.ClauseIndex != nil {
		t.Fatalf("unexpected error body %+v", body)
	}
}

func TestDetectConflictsTrimsExcludedDocument(t *testing.T) {
	detector := &detectorFake{}
	handler := NewRouter(config.Config{}, nil, detector, nil, nil).Handler()

	res := postJSON(t, handler, "/v1/conflicts", map[string]any{
		"clauses":             []map[string]any{{"text": "Pasal 1"}},
		"exclude_document_id": "  uu-7-2014 ",
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if detector.gotExclude != "uu-7-2014" {
		t.Fatalf("expected trimmed exclude id, got %q", detector.gotExclude)
	}
}

func TestIndexCorpusDocumentReturnsCount(t *testing.T) {
	handler := NewRouter(config.Config{}, nil, nil, corpusFake{}, nil).Handler()

	res := postJSON(t, handler, "/v1/corpus/documents", map[string]any{
		"document": map[string]any{"id": "uu-7-2014", "title": "UU 7/2014", "document_type": "statute"},
		"clauses":  []map[string]any{{"text": "a"}, {"text": "b"}},
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", res.Code)
	}
	var body map[string]any
	_ = json.Unmarshal(res.Body.Bytes(), &body)
	if body["indexed_clauses"] != float64(2) {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestUnconfiguredOperationReturns501(t *testing.T) {
	handler := NewRouter(config.Config{}, nil, nil, nil, nil).Handler()

	res := postJSON(t, handler, "/v1/corpus/documents", map[string]any{})
	if res.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", res.Code)
	}
}

func TestCacheEndpoints(t *testing.T) {
	cache := &cacheFake{}
	handler := NewRouter(config.Config{}, nil, nil, nil, cache).Handler()

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/cache/stats", nil))
	var stats domain.CacheStats
	if err := json.Unmarshal(res.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Size != 3 || stats.Hits != 5 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodDelete, "/v1/cache", nil))
	if res.Code != http.StatusNoContent || !cache.cleared {
		t.Fatalf("expected cache cleared with 204, got %d cleared=%v", res.Code, cache.cleared)
	}
}

func TestMetricsEndpointExposesRequestCounters(t *testing.T) {
	m := metrics.NewHTTPServerMetrics(serviceName)
	handler := NewRouter(config.Config{}, &comparerFake{}, nil, nil, nil).WithMetrics(m).Handler()

	postJSON(t, handler, "/v1/compare", map[string]any{"old_clauses": []any{}, "new_clauses": []any{}})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	want := `statute_http_requests_total{method="POST",path="/v1/compare",service="api",status="200"} 1`
	if !strings.Contains(res.Body.String(), want) {
		t.Fatalf("expected %q in metrics output:\n%s", want, res.Body.String())
	}
}
