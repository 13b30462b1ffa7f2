package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Reranker calls the cross-encoder scoring service. A nil *Reranker is a
// valid disabled reranker.
type Reranker struct {
	httpClient *http.Client
	baseURL    string
}

// NewReranker returns nil when no URL is configured, which disables the
// relevance pass without branching at every call site.
func NewReranker(baseURL string) *Reranker {
	if baseURL == "" {
		return nil
	}
	return &Reranker{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    baseURL,
	}
}

func (r *Reranker) Enabled() bool {
	return r != nil
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type rerankResponse struct {
	Scores []float64 `json:"scores"`
	Error  string    `json:"error,omitempty"`
}

// Score returns one relevance score per document, in input order.
func (r *Reranker) Score(ctx context.Context, query string, documents []string) ([]float64, error) {
	if len(documents) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(rerankRequest{Query: query, Documents: documents})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/rerank", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("rerank failed with status %d: %s", res.StatusCode, string(raw))
	}

	var parsed rerankResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode rerank response: %w", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("rerank service error: %s", parsed.Error)
	}
	if len(parsed.Scores) != len(documents) {
		return nil, fmt.Errorf("rerank returned %d scores for %d documents", len(parsed.Scores), len(documents))
	}

	return parsed.Scores, nil
}
