// Package openai adapts OpenAI-compatible embedding and chat endpoints.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/kirillkom/statute-analyzer/internal/core/domain"
	"github.com/kirillkom/statute-analyzer/internal/infrastructure/llm/prompt"
)

// OpenAI accepts up to 2048 inputs per embedding request.
const defaultMaxBatch = 2048

type Config struct {
	APIKey     string
	BaseURL    string
	EmbedModel string
	GenModel   string
	MaxBatch   int
}

// NewClient builds an SDK client. Retries are owned by the caller's
// resilience policy, so SDK-level retries are disabled.
func NewClient(cfg Config) *openai.Client {
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)
	return &client
}

type Embedder struct {
	client   *openai.Client
	model    string
	maxBatch int
}

func NewEmbedder(client *openai.Client, model string, maxBatch int) *Embedder {
	if maxBatch <= 0 || maxBatch > defaultMaxBatch {
		maxBatch = defaultMaxBatch
	}
	return &Embedder{client: client, model: model, maxBatch: maxBatch}
}

func (e *Embedder) ModelID() string { return "openai/" + e.model }

func (e *Embedder) MaxBatchSize() int { return e.maxBatch }

func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) (domain.ProviderBatch, error) {
	if len(texts) == 0 {
		return domain.ProviderBatch{}, nil
	}
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return domain.ProviderBatch{}, classifyError("embed", err)
	}
	if len(resp.Data) != len(texts) {
		return domain.ProviderBatch{}, domain.WrapTerminal(nil, "embed",
			fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data)))
	}

	vectors := make([][]float32, len(texts))
	for _, data := range resp.Data {
		idx := int(data.Index)
		if idx < 0 || idx >= len(vectors) {
			return domain.ProviderBatch{}, domain.WrapTerminal(nil, "embed", fmt.Errorf("embedding index %d out of range", idx))
		}
		vectors[idx] = toFloat32(data.Embedding)
	}
	return domain.ProviderBatch{Vectors: vectors, TokenCount: int(resp.Usage.PromptTokens)}, nil
}

// Explainer produces explanations with JSON-mode chat completions.
type Explainer struct {
	client *openai.Client
	model  string
}

func NewExplainer(client *openai.Client, model string) *Explainer {
	return &Explainer{client: client, model: model}
}

func (x *Explainer) ExplainChange(ctx context.Context, diff domain.DocumentDiff) (domain.ChangeExplanation, error) {
	raw, err := x.complete(ctx, prompt.ChangeExplanation(diff))
	if err != nil {
		return domain.ChangeExplanation{}, err
	}
	return prompt.DecodeChange(raw)
}

func (x *Explainer) ExplainConflict(ctx context.Context, clause domain.ClauseSegment, match domain.CorpusMatch, kind domain.ConflictType) (domain.ConflictExplanation, error) {
	raw, err := x.complete(ctx, prompt.ConflictExplanation(clause, match, kind))
	if err != nil {
		return domain.ConflictExplanation{}, err
	}
	return prompt.DecodeConflict(raw)
}

func (x *Explainer) complete(ctx context.Context, text string) (string, error) {
	resp, err := x.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(text),
		},
		Model: openai.ChatModel(x.model),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{
				Type: "json_object",
			},
		},
	})
	if err != nil {
		return "", classifyError("explain", err)
	}
	if len(resp.Choices) == 0 {
		return "", domain.WrapTerminal(nil, "explain", errors.New("empty completion"))
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func classifyError(operation string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == "insufficient_quota" || apiErr.StatusCode == http.StatusPaymentRequired:
			return domain.WrapTerminal(domain.ErrQuotaExhausted, operation, err)
		case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
			return domain.WrapTerminal(domain.ErrAuthRejected, operation, err)
		case apiErr.Code == "content_policy_violation" || apiErr.Code == "content_filter":
			return domain.WrapTerminal(domain.ErrContentRejected, operation, err)
		case isRetryableHTTPStatus(apiErr.StatusCode):
			return domain.WrapError(domain.ErrTransientRemote, operation, err)
		case apiErr.StatusCode == http.StatusBadRequest:
			return domain.WrapTerminal(domain.ErrContentRejected, operation, err)
		default:
			return domain.WrapTerminal(nil, operation, err)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return domain.WrapError(domain.ErrTransientRemote, operation, err)
	}
	return err
}

func isRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
