package ai

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"

	"discourse-search-platform/internal/config"
)

// EmbeddingClient produces fixed-dimension, L2-normalized vectors via the
// Google Generative AI embedding models. Calls go through a circuit breaker
// and a token-bucket rate limiter shared across workers.
type EmbeddingClient struct {
	client      *genai.Client
	model       string
	dim         int
	maxRetries  int
	breaker     *gobreaker.CircuitBreaker
	rateLimiter *rate.Limiter
}

func NewEmbeddingClient(ctx context.Context, cfg *config.Config) (*EmbeddingClient, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY for embeddings")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, err
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "EmbeddingsAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("Circuit breaker %s: %s -> %s", name, from, to)
		},
	})

	// Free-tier embedding RPM with some buffer
	rateLimiter := rate.NewLimiter(rate.Limit(100.0*0.9/60.0), 10)

	return &EmbeddingClient{
		client:      client,
		model:       cfg.EmbeddingsModel,
		dim:         cfg.VectorDim,
		maxRetries:  cfg.EmbedMaxRetries,
		breaker:     breaker,
		rateLimiter: rateLimiter,
	}, nil
}

// Close releases the underlying API client.
func (ec *EmbeddingClient) Close() error {
	return ec.client.Close()
}

// Dimension returns the declared vector dimension.
func (ec *EmbeddingClient) Dimension() int {
	return ec.dim
}

// Embed returns a normalized vector for a single text.
func (ec *EmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := ec.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch returns normalized vectors for a batch of texts, in order.
// Transient failures are retried with capped exponential backoff.
func (ec *EmbeddingClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var lastErr error
	backoffDelay := time.Second

	for attempt := 0; attempt <= ec.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoffDelay):
			}
			backoffDelay *= 2
			if backoffDelay > 30*time.Second {
				backoffDelay = 30 * time.Second
			}
		}

		if err := ec.rateLimiter.Wait(ctx); err != nil {
			return nil, err
		}

		result, err := ec.breaker.Execute(func() (interface{}, error) {
			return ec.embedOnce(ctx, texts)
		})
		if err == nil {
			return result.([][]float32), nil
		}

		if err == gobreaker.ErrOpenState || ctx.Err() != nil {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("embedding failed after %d retries: %w", ec.maxRetries, lastErr)
}

func (ec *EmbeddingClient) embedOnce(ctx context.Context, texts []string) ([][]float32, error) {
	model := ec.client.EmbeddingModel(ec.model)

	batch := model.NewBatch()
	for _, text := range texts {
		batch.AddContent(genai.Text(text))
	}

	resp, err := model.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, err
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Embeddings))
	}

	vectors := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("no embedding returned for text %d", i)
		}
		if len(emb.Values) != ec.dim {
			return nil, fmt.Errorf("embedding dimension %d does not match configured %d", len(emb.Values), ec.dim)
		}
		vectors[i] = Normalize(emb.Values)
	}

	return vectors, nil
}

// Normalize scales a vector to unit L2 norm. Zero vectors pass through.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}

	norm := math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
