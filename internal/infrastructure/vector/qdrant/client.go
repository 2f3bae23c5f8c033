package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/statute-analyzer/internal/core/domain"
)

// pointNamespace derives stable point ids so re-indexing a document
// overwrites its previous points.
var pointNamespace = uuid.MustParse("6f1c2b5e-8a43-4c1e-9d7a-3b2f0e5a9c11")

type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

func New(baseURL, collection string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// StatusError is a non-2xx answer from Qdrant.
type StatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("qdrant %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("qdrant %s status: %s: %s", e.Operation, e.Status, strings.TrimSpace(e.Body))
}

func (c *Client) IndexClauses(ctx context.Context, doc domain.CorpusDocument, clauses []domain.ClauseSegment, vectors [][]float32) error {
	if len(clauses) == 0 || len(vectors) == 0 {
		return nil
	}
	if len(clauses) != len(vectors) {
		return domain.WrapError(domain.ErrValidation, "qdrant index", fmt.Errorf("clauses/vectors mismatch: %d != %d", len(clauses), len(vectors)))
	}

	if err := c.ensureCollection(ctx, len(vectors[0])); err != nil {
		return err
	}
	if err := c.deleteDocument(ctx, doc.ID); err != nil {
		return err
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  []float32      `json:"vector"`
		Payload map[string]any `json:"payload"`
	}

	points := make([]point, 0, len(clauses))
	for i, clause := range clauses {
		points = append(points, point{
			ID:     pointID(doc.ID, i),
			Vector: vectors[i],
			Payload: map[string]any{
				"doc_id":        doc.ID,
				"title":         doc.Title,
				"jurisdiction":  doc.Jurisdiction,
				"document_type": doc.DocumentType,
				"status":        doc.Status,
				"reference":     clause.Reference,
				"clause_type":   string(clause.Type),
				"clause_index":  i,
				"text":          clause.Text,
			},
		})
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, c.collection)
	return c.do(ctx, "upsert", http.MethodPut, url, map[string]any{"points": points}, nil)
}

func (c *Client) SearchSimilar(ctx context.Context, vector []float32, query domain.CorpusQuery) ([]domain.CorpusMatch, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = 5
	}
	reqBody := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	if query.MinScore > 0 {
		reqBody["score_threshold"] = query.MinScore
	}
	if filter := searchFilter(query); filter != nil {
		reqBody["filter"] = filter
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	if err := c.do(ctx, "search", http.MethodPost, url, reqBody, &searchResp); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	out := make([]domain.CorpusMatch, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		out = append(out, domain.CorpusMatch{
			DocumentID:   getStringPayload(r.Payload, "doc_id"),
			Title:        getStringPayload(r.Payload, "title"),
			Reference:    getStringPayload(r.Payload, "reference"),
			Text:         getStringPayload(r.Payload, "text"),
			Jurisdiction: getStringPayload(r.Payload, "jurisdiction"),
			DocumentType: getStringPayload(r.Payload, "document_type"),
			Status:       getStringPayload(r.Payload, "status"),
			Similarity:   r.Score,
		})
	}
	return out, nil
}

// CountDocuments counts first clauses, one per indexed document.
func (c *Client) CountDocuments(ctx context.Context) (int, error) {
	reqBody := map[string]any{
		"exact":  true,
		"filter": map[string]any{"must": []map[string]any{matchValue("clause_index", 0)}},
	}
	var countResp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/count", c.baseURL, c.collection)
	if err := c.do(ctx, "count", http.MethodPost, url, reqBody, &countResp); err != nil {
		if isNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	return countResp.Result.Count, nil
}

func (c *Client) deleteDocument(ctx context.Context, docID string) error {
	reqBody := map[string]any{
		"filter": map[string]any{"must": []map[string]any{matchValue("doc_id", docID)}},
	}
	url := fmt.Sprintf("%s/collections/%s/points/delete?wait=true", c.baseURL, c.collection)
	return c.do(ctx, "delete", http.MethodPost, url, reqBody, nil)
}

func searchFilter(q domain.CorpusQuery) map[string]any {
	var must, mustNot []map[string]any
	if q.Jurisdiction != "" {
		must = append(must, matchValue("jurisdiction", q.Jurisdiction))
	}
	if len(q.DocumentTypes) > 0 {
		must = append(must, map[string]any{
			"key":   "document_type",
			"match": map[string]any{"any": q.DocumentTypes},
		})
	}
	if q.ExcludeDocumentID != "" {
		mustNot = append(mustNot, matchValue("doc_id", q.ExcludeDocumentID))
	}
	if len(must) == 0 && len(mustNot) == 0 {
		return nil
	}
	filter := map[string]any{}
	if len(must) > 0 {
		filter["must"] = must
	}
	if len(mustNot) > 0 {
		filter["must_not"] = mustNot
	}
	return filter
}

func matchValue(key string, value any) map[string]any {
	return map[string]any{"key": key, "match": map[string]any{"value": value}}
}

func pointID(docID string, clauseIndex int) string {
	return uuid.NewSHA1(pointNamespace, []byte(fmt.Sprintf("%s#%d", docID, clauseIndex))).String()
}

func (c *Client) do(ctx context.Context, operation, method, url string, reqBody, out any) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", operation, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyError(operation, fmt.Errorf("qdrant %s request: %w", operation, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return classifyError(operation, &StatusError{
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(msg),
		})
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.WrapTerminal(nil, "qdrant "+operation, fmt.Errorf("decode %s response: %w", operation, err))
	}
	return nil
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}
	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	err := c.do(ctx, "ensure collection", http.MethodPut, url, reqBody, nil)

	// 409 when the collection already exists, depending on version.
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusConflict {
		err = nil
	}
	if err != nil {
		return err
	}

	for _, field := range []struct{ name, schema string }{
		{"doc_id", "keyword"},
		{"jurisdiction", "keyword"},
		{"document_type", "keyword"},
		{"clause_index", "integer"},
	} {
		idx := map[string]any{"field_name": field.name, "field_schema": field.schema}
		indexURL := fmt.Sprintf("%s/collections/%s/index?wait=true", c.baseURL, c.collection)
		if err := c.do(ctx, "ensure payload index", http.MethodPut, indexURL, idx, nil); err != nil {
			return err
		}
	}

	c.ensureMu.Lock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
	c.ensureMu.Unlock()
	return nil
}

// classifyError attaches a domain error kind to a raw client failure.
func classifyError(operation string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	op := "qdrant " + operation
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return domain.WrapError(domain.ErrTransientRemote, op, err)
		case http.StatusUnauthorized, http.StatusForbidden:
			return domain.WrapTerminal(domain.ErrAuthRejected, op, err)
		default:
			return domain.WrapTerminal(nil, op, err)
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return domain.WrapError(domain.ErrTransientRemote, op, err)
	}
	return err
}

func isNotFound(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
