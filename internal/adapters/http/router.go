package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/statute-analyzer/internal/config"
	"github.com/kirillkom/statute-analyzer/internal/core/domain"
	"github.com/kirillkom/statute-analyzer/internal/core/ports"
	"github.com/kirillkom/statute-analyzer/internal/observability/metrics"
)

const (
	serviceName     = "api"
	maxRequestBytes = 16 << 20
)

// CacheAdmin exposes the embedding cache to operators.
type CacheAdmin interface {
	CacheStats() domain.CacheStats
	ClearCache(ctx context.Context) error
}

type Router struct {
	cfg       config.Config
	comparer  ports.DocumentComparer
	detector  ports.ConflictDetector
	corpus    ports.CorpusLoader
	cache     CacheAdmin
	metrics   *metrics.HTTPServerMetrics
	logger    *slog.Logger
	startedAt time.Time
}

func NewRouter(
	cfg config.Config,
	comparer ports.DocumentComparer,
	detector ports.ConflictDetector,
	corpus ports.CorpusLoader,
	cache CacheAdmin,
) *Router {
	return &Router{
		cfg:       cfg,
		comparer:  comparer,
		detector:  detector,
		corpus:    corpus,
		cache:     cache,
		logger:    slog.Default(),
		startedAt: time.Now(),
	}
}

func (rt *Router) WithMetrics(m *metrics.HTTPServerMetrics) *Router {
	rt.metrics = m
	return rt
}

func (rt *Router) WithLogger(logger *slog.Logger) *Router {
	if logger != nil {
		rt.logger = logger
	}
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/compare", rt.compare)
	mux.HandleFunc("/v1/conflicts", rt.detectConflicts)
	mux.HandleFunc("/v1/corpus/documents", rt.indexCorpusDocument)
	mux.HandleFunc("/v1/cache/stats", rt.cacheStats)
	mux.HandleFunc("/v1/cache", rt.clearCache)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight,
		time.Duration(rt.cfg.APIBackpressureWaitMS)*time.Millisecond, rt.rejected("backpressure"))
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, rt.rejected("rate_limit"))
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) rejected(reason string) func() {
	if rt.metrics == nil {
		return nil
	}
	return func() { rt.metrics.RecordRejected(serviceName, reason) }
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": int(time.Since(rt.startedAt).Seconds()),
	})
}

type compareRequest struct {
	OldClauses []domain.ClauseSegment `json:"old_clauses"`
	NewClauses []domain.ClauseSegment `json:"new_clauses"`
	Options    domain.CompareOptions  `json:"options"`
}

func (rt *Router) compare(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	if rt.comparer == nil {
		writeJSON(w, http.StatusNotImplemented, errorResponse{Error: "comparison is not configured"})
		return
	}
	var req compareRequest
	if !rt.decode(w, r, &req) {
		return
	}

	result, err := rt.comparer.Compare(r.Context(), req.OldClauses, req.NewClauses, req.Options)
	if err != nil {
		rt.writeError(w, r, "compare", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type detectRequest struct {
	Clauses           []domain.ClauseSegment `json:"clauses"`
	ExcludeDocumentID string                 `json:"exclude_document_id"`
	Options           domain.DetectOptions   `json:"options"`
}

func (rt *Router) detectConflicts(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	if rt.detector == nil {
		writeJSON(w, http.StatusNotImplemented, errorResponse{Error: "conflict detection is not configured"})
		return
	}
	var req detectRequest
	if !rt.decode(w, r, &req) {
		return
	}

	result, err := rt.detector.DetectConflicts(r.Context(), req.Clauses, strings.TrimSpace(req.ExcludeDocumentID), req.Options)
	if err != nil {
		rt.writeError(w, r, "detect_conflicts", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type indexRequest struct {
	Document domain.CorpusDocument  `json:"document"`
	Clauses  []domain.ClauseSegment `json:"clauses"`
}

func (rt *Router) indexCorpusDocument(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	if rt.corpus == nil {
		writeJSON(w, http.StatusNotImplemented, errorResponse{Error: "corpus indexing is not configured"})
		return
	}
	var req indexRequest
	if !rt.decode(w, r, &req) {
		return
	}

	indexed, err := rt.corpus.IndexDocument(r.Context(), req.Document, req.Clauses)
	if err != nil {
		rt.writeError(w, r, "index_document", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"document_id":     req.Document.ID,
		"indexed_clauses": indexed,
	})
}

func (rt *Router) cacheStats(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	if rt.cache == nil {
		writeJSON(w, http.StatusOK, domain.CacheStats{})
		return
	}
	writeJSON(w, http.StatusOK, rt.cache.CacheStats())
}

func (rt *Router) clearCache(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodDelete) {
		return
	}
	if rt.cache != nil {
		if err := rt.cache.ClearCache(r.Context()); err != nil {
			rt.writeError(w, r, "clear_cache", err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, status, errorResponse{
			Error:     "invalid json: " + err.Error(),
			Kind:      "validation",
			RequestID: requestIDFromContext(r.Context()),
		})
		return false
	}
	return true
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
	return false
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
