package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/statute-analyzer/internal/core/domain"
	"github.com/kirillkom/statute-analyzer/internal/infrastructure/llm/prompt"
)

const defaultMaxBatch = 64

type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
}

func New(baseURL, genModel, embedModel string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

type Embedder struct {
	client   *Client
	maxBatch int
}

func NewEmbedder(client *Client, maxBatch int) *Embedder {
	if maxBatch <= 0 {
		maxBatch = defaultMaxBatch
	}
	return &Embedder{client: client, maxBatch: maxBatch}
}

func (e *Embedder) ModelID() string { return "ollama/" + e.client.embedModel }

func (e *Embedder) MaxBatchSize() int { return e.maxBatch }

func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) (domain.ProviderBatch, error) {
	if len(texts) == 0 {
		return domain.ProviderBatch{}, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	var response struct {
		Embeddings      [][]float32 `json:"embeddings"`
		PromptEvalCount int         `json:"prompt_eval_count"`
	}
	if err := e.client.postJSON(ctx, "/api/embed", request, &response, "embed"); err != nil {
		return domain.ProviderBatch{}, err
	}
	if len(response.Embeddings) != len(texts) {
		return domain.ProviderBatch{}, domain.WrapTerminal(nil, "embed",
			fmt.Errorf("expected %d embeddings, got %d", len(texts), len(response.Embeddings)))
	}
	return domain.ProviderBatch{Vectors: response.Embeddings, TokenCount: response.PromptEvalCount}, nil
}

// Explainer produces change and conflict explanations via /api/generate.
type Explainer struct {
	client *Client
}

func NewExplainer(client *Client) *Explainer {
	return &Explainer{client: client}
}

func (x *Explainer) ExplainChange(ctx context.Context, diff domain.DocumentDiff) (domain.ChangeExplanation, error) {
	raw, err := x.client.generateJSON(ctx, prompt.ChangeExplanation(diff))
	if err != nil {
		return domain.ChangeExplanation{}, err
	}
	return prompt.DecodeChange(raw)
}

func (x *Explainer) ExplainConflict(ctx context.Context, clause domain.ClauseSegment, match domain.CorpusMatch, kind domain.ConflictType) (domain.ConflictExplanation, error) {
	raw, err := x.client.generateJSON(ctx, prompt.ConflictExplanation(clause, match, kind))
	if err != nil {
		return domain.ConflictExplanation{}, err
	}
	return prompt.DecodeConflict(raw)
}

func (c *Client) generateJSON(ctx context.Context, text string) (string, error) {
	reqBody := map[string]any{
		"model":  c.genModel,
		"prompt": text,
		"stream": false,
		"format": "json",
	}
	var response struct {
		Response string `json:"response"`
	}
	if err := c.postJSON(ctx, "/api/generate", reqBody, &response, "generate"); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}
