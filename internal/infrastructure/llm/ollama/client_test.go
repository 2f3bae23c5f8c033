package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/statute-analyzer/internal/core/domain"
)

func TestEmbedTextsReturnsVectorsAndTokens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			http.NotFound(w, r)
			return
		}
		var payload struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if payload.Model != "embed" || len(payload.Input) != 2 {
			t.Fatalf("unexpected payload %+v", payload)
		}
		_, _ = w.Write([]byte(`{"embeddings":[[0.1,0.2],[0.3,0.4]],"prompt_eval_count":7}`))
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "gen", "embed"), 0)
	batch, err := embedder.EmbedTexts(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("EmbedTexts() error = %v", err)
	}
	if len(batch.Vectors) != 2 || batch.TokenCount != 7 {
		t.Fatalf("unexpected batch %+v", batch)
	}
	if embedder.ModelID() != "ollama/embed" || embedder.MaxBatchSize() != defaultMaxBatch {
		t.Fatalf("unexpected provider metadata")
	}
}

func TestEmbedIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "gen", "embed"), 0)
	_, err := embedder.EmbedTexts(context.Background(), []string{"hello"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
	if !errors.Is(err, domain.ErrTransientRemote) {
		t.Fatalf("expected transient kind, got %v", err)
	}
}

func TestStatusClassification(t *testing.T) {
	cases := []struct {
		status int
		kind   error
	}{
		{http.StatusTooManyRequests, domain.ErrTransientRemote},
		{http.StatusServiceUnavailable, domain.ErrTransientRemote},
		{http.StatusUnauthorized, domain.ErrAuthRejected},
		{http.StatusPaymentRequired, domain.ErrQuotaExhausted},
		{http.StatusBadRequest, domain.ErrContentRejected},
		{http.StatusNotFound, domain.ErrTerminalRemote},
	}
	for _, tc := range cases {
		err := classifyOllamaError("embed", &HTTPStatusError{Operation: "embed", StatusCode: tc.status, Status: http.StatusText(tc.status)})
		if !errors.Is(err, tc.kind) {
			t.Fatalf("status %d: expected %v, got %v", tc.status, tc.kind, err)
		}
	}
}

func TestExplainConflictDecodesJSON(t *testing.T) {
	var capturedPrompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		capturedPrompt, _ = payload["prompt"].(string)
		if payload["format"] != "json" {
			t.Fatalf("expected json format, got %v", payload["format"])
		}
		_, _ = w.Write([]byte(`{"response":"{\"explanation\":\"bertentangan\",\"legal_implications\":\"batal\",\"resolution_suggestions\":[\"harmonisasi\"],\"severity_factors\":[\"modal\"]}"}`))
	}))
	defer server.Close()

	explainer := NewExplainer(New(server.URL, "gen", "embed"))
	got, err := explainer.ExplainConflict(context.Background(),
		domain.ClauseSegment{Text: "Setiap orang dilarang membangun.", Reference: "Pasal 4", Order: 1},
		domain.CorpusMatch{Title: "UU 1/2020", Text: "Setiap orang diperbolehkan membangun."},
		domain.ConflictContradiction)
	if err != nil {
		t.Fatalf("ExplainConflict() error = %v", err)
	}
	if got.Explanation != "bertentangan" || len(got.ResolutionSuggestions) != 1 {
		t.Fatalf("unexpected explanation %+v", got)
	}
	if !strings.Contains(capturedPrompt, "dilarang") || !strings.Contains(capturedPrompt, "contradiction") {
		t.Fatalf("unexpected prompt: %s", capturedPrompt)
	}
}
